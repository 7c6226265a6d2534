package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE items (id TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func TestWithTx_Commit(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO items (id, value) VALUES ('a', 'x')`)
		return err
	})
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM items`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := WithTx(ctx, db, nil, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO items (id, value) VALUES ('a', 'x')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM items`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil))

	err := MapError(errors.New("constraint failed: FOREIGN KEY constraint failed (787)"))
	assert.ErrorIs(t, err, common.ErrConstraintViolation)

	err = MapError(errors.New("database or disk is full (13)"))
	assert.ErrorIs(t, err, common.ErrStorageExhausted)

	plain := errors.New("some other failure")
	assert.Equal(t, plain, MapError(plain))
}

func TestMapError_RealConstraint(t *testing.T) {
	db := setupDB(t)
	_, err := db.Exec(`INSERT INTO items (id, value) VALUES ('a', 'x')`)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO items (id, value) VALUES ('a', 'y')`)
	require.Error(t, err)
	assert.ErrorIs(t, MapError(err), common.ErrConstraintViolation)
}
