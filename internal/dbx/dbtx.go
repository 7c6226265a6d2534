// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, and mapping of SQLite
// driver errors onto the store's sentinel errors.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/healthvault/internal/common"
)

// TimeFormat is the storage layout for every timestamp column. Unlike
// RFC3339Nano it never drops trailing fractional-second zeros, so values are
// fixed-width and SQLite's lexical ORDER BY and range comparisons agree with
// time ordering. Reads still parse with time.RFC3339Nano, which accepts this
// layout as well as older variable-width values.
const TimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// MapError translates driver-level failures into the sentinel taxonomy so
// callers can match with errors.Is. The modernc sqlite driver reports
// constraint and disk-full conditions only through its message text.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "constraint failed"), strings.Contains(msg, "FOREIGN KEY"):
		return fmt.Errorf("%w: %v", common.ErrConstraintViolation, err)
	case strings.Contains(msg, "database or disk is full"):
		return fmt.Errorf("%w: %v", common.ErrStorageExhausted, err)
	default:
		return err
	}
}
