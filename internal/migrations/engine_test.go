package migrations

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/dbx"
	"github.com/dmitrijs2005/healthvault/internal/logging"
	"github.com/dmitrijs2005/healthvault/internal/repositories/schemaversion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openFileDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, path
}

// seedAtVersion applies the historical chain up to v and records it, giving
// us a database as an old app build would have left it.
func seedAtVersion(t *testing.T, db *sql.DB, v int) {
	t.Helper()
	ctx := context.Background()

	versions := schemaversion.NewSQLiteRepository(db)
	require.NoError(t, versions.EnsureTable(ctx))

	for _, step := range Chain() {
		if step.Version > v {
			break
		}
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return step.Apply(ctx, tx)
		})
		require.NoError(t, err)
	}
	require.NoError(t, versions.Record(ctx, v))
}

func backups(t *testing.T, dbPath string) []string {
	t.Helper()
	matches, err := filepath.Glob(dbPath + ".backup-*")
	require.NoError(t, err)
	return matches
}

func TestRun_FreshDatabase(t *testing.T) {
	db, path := openFileDB(t)
	ctx := context.Background()

	applied, err := NewEngine(db, path, logging.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "fresh database needs no migration steps")
	assert.Empty(t, backups(t, path), "fresh database needs no backup")

	v, err := schemaversion.NewSQLiteRepository(db).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, TargetVersion, v)

	// the full current schema exists
	for _, table := range []string{"health_records", "documents", "conversations", "messages"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT count(*) FROM `+table).Scan(&n))
	}
	var prio int
	require.NoError(t, db.QueryRow(`SELECT COALESCE(MAX(priority), 0) FROM documents`).Scan(&prio))
}

func TestRun_MonotonicFromEveryHistoricalVersion(t *testing.T) {
	for from := 1; from < TargetVersion; from++ {
		db, path := openFileDB(t)
		ctx := context.Background()
		seedAtVersion(t, db, from)

		applied, err := NewEngine(db, path, logging.Discard()).Run(ctx)
		require.NoError(t, err, "from version %d", from)
		assert.Equal(t, TargetVersion-from, applied)

		v, err := schemaversion.NewSQLiteRepository(db).Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, TargetVersion, v, "from version %d", from)
	}
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	db, path := openFileDB(t)
	ctx := context.Background()
	seedAtVersion(t, db, 1)

	_, err := NewEngine(db, path, logging.Discard()).Run(ctx)
	require.NoError(t, err)
	firstBackups := backups(t, path)
	require.Len(t, firstBackups, 1)

	applied, err := NewEngine(db, path, logging.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, applied, "already at target: zero steps")
	assert.Equal(t, firstBackups, backups(t, path), "already at target: zero new backups")
}

func TestRun_NewerOnDiskVersionRefused(t *testing.T) {
	db, path := openFileDB(t)
	ctx := context.Background()

	versions := schemaversion.NewSQLiteRepository(db)
	require.NoError(t, versions.EnsureTable(ctx))
	require.NoError(t, versions.Record(ctx, TargetVersion+3))

	_, err := NewEngine(db, path, logging.Discard()).Run(ctx)
	require.ErrorIs(t, err, common.ErrIncompatibleVersion)
	assert.Empty(t, backups(t, path), "must not attempt migration")
}

func TestRun_FailedStepPreservesBackupAndVersion(t *testing.T) {
	db, path := openFileDB(t)
	ctx := context.Background()
	seedAtVersion(t, db, 1)

	snapshot, err := os.ReadFile(path)
	require.NoError(t, err)

	boom := errors.New("forced failure")
	e := NewEngine(db, path, logging.Discard())
	e.Steps = append([]Migration{}, Chain()...)
	e.Steps[2].Apply = func(ctx context.Context, tx dbx.DBTX) error { return boom }

	_, err = e.Run(ctx)
	require.ErrorIs(t, err, common.ErrMigrationFailed)

	bs := backups(t, path)
	require.Len(t, bs, 1, "backup must be left in place")

	got, err := os.ReadFile(bs[0])
	require.NoError(t, err)
	assert.Equal(t, snapshot, got, "backup must byte-match the pre-migration file")

	// version table still reads the pre-migration value
	v, err := schemaversion.NewSQLiteRepository(db).Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestRun_StepsAreIndependentlyApplicable(t *testing.T) {
	// each historical step runs on its own against a database at the
	// preceding version
	for i, step := range Chain() {
		db, _ := openFileDB(t)
		ctx := context.Background()
		if i > 0 {
			seedAtVersion(t, db, i)
		}
		err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return step.Apply(ctx, tx)
		})
		require.NoError(t, err, "step %d (%s)", step.Version, step.Name)
	}
}
