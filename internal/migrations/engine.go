// Package migrations advances the on-disk schema forward, one version at a
// time, with a file-level backup taken before any step runs. Migration is
// strictly forward: a database written by a newer build is refused.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/dbx"
	"github.com/dmitrijs2005/healthvault/internal/filex"
	"github.com/dmitrijs2005/healthvault/internal/logging"
	"github.com/dmitrijs2005/healthvault/internal/repositories/schemaversion"
)

// Engine runs the migration chain against one database.
type Engine struct {
	// DBPath is the database file to back up before migrating. Empty
	// disables the backup (in-memory databases).
	DBPath string

	// Target and Steps default to the compiled-in chain; tests override them
	// to exercise partial chains and forced failures.
	Target int
	Steps  []Migration

	db  *sql.DB
	log logging.Logger
}

func NewEngine(db *sql.DB, dbPath string, log logging.Logger) *Engine {
	return &Engine{
		DBPath: dbPath,
		Target: TargetVersion,
		Steps:  Chain(),
		db:     db,
		log:    log,
	}
}

// Run brings the schema to e.Target and returns the number of steps applied.
//
// The version table is bumped exactly once, after the whole chain succeeds,
// so a crash mid-chain never exposes a partially-applied version number. On
// a step failure the pre-migration backup stays in place and
// common.ErrMigrationFailed is returned; the live file is not silently
// reused.
func (e *Engine) Run(ctx context.Context) (int, error) {
	versions := schemaversion.NewSQLiteRepository(e.db)
	if err := versions.EnsureTable(ctx); err != nil {
		return 0, err
	}

	current, err := versions.Current(ctx)
	if err != nil {
		return 0, err
	}

	switch {
	case current == e.Target:
		return 0, nil

	case current > e.Target:
		// e.g. the user reinstalled an older app build; guessing forward is unsafe
		return 0, fmt.Errorf("%w: on-disk version %d, build supports %d",
			common.ErrIncompatibleVersion, current, e.Target)

	case current == 0:
		// fresh database: create the current schema directly, nothing to migrate
		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			if err := applyCurrentSchema(ctx, tx); err != nil {
				return err
			}
			return schemaversion.NewSQLiteRepository(tx).Record(ctx, e.Target)
		})
		if err != nil {
			return 0, fmt.Errorf("%w: initializing fresh schema: %v", common.ErrMigrationFailed, err)
		}
		e.log.Info(ctx, "initialized fresh schema", "version", e.Target)
		return 0, nil
	}

	backupPath, err := e.backup()
	if err != nil {
		return 0, fmt.Errorf("%w: creating backup: %v", common.ErrMigrationFailed, err)
	}
	if backupPath != "" {
		e.log.Info(ctx, "created pre-migration backup", "path", backupPath)
	}

	applied := 0
	for _, step := range e.Steps {
		if step.Version <= current || step.Version > e.Target {
			continue
		}
		err := dbx.WithTx(ctx, e.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
			return step.Apply(ctx, tx)
		})
		if err != nil {
			e.log.Error(ctx, "migration step failed; backup preserved",
				"step", step.Name, "version", step.Version, "backup", backupPath)
			return applied, fmt.Errorf("%w: step %d (%s): %v",
				common.ErrMigrationFailed, step.Version, step.Name, err)
		}
		applied++
		e.log.Info(ctx, "applied migration step", "step", step.Name, "version", step.Version)
	}

	if err := versions.Record(ctx, e.Target); err != nil {
		return applied, fmt.Errorf("%w: recording version %d: %v",
			common.ErrMigrationFailed, e.Target, err)
	}

	e.log.Info(ctx, "schema migrated", "from", current, "to", e.Target, "steps", applied)
	return applied, nil
}

func (e *Engine) backup() (string, error) {
	if e.DBPath == "" {
		return "", nil
	}
	path := fmt.Sprintf("%s.backup-%s", e.DBPath, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := filex.CopyFile(e.DBPath, path); err != nil {
		return "", err
	}
	return path, nil
}
