// Package store is the process-wide persistence facade: one encrypted SQLite
// database fronted by a single serialized connection, plus the blob store
// for imported document bytes.
//
// A Store is constructed once via Open and passed by handle to whichever
// layer needs persistence; there is no package-level singleton. The
// underlying connection is not safe for concurrent unsynchronized use, so
// every public operation takes the store mutex and runs alone; callers
// block for the duration of a local disk write, which is acceptable since
// no operation performs network I/O. Blob operations are independent of
// this lock.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/healthvault/internal/blob"
	"github.com/dmitrijs2005/healthvault/internal/common"
	"github.com/dmitrijs2005/healthvault/internal/config"
	"github.com/dmitrijs2005/healthvault/internal/filex"
	"github.com/dmitrijs2005/healthvault/internal/keyring"
	"github.com/dmitrijs2005/healthvault/internal/logging"
	"github.com/dmitrijs2005/healthvault/internal/migrations"
	"github.com/dmitrijs2005/healthvault/internal/repositories/conversations"
	"github.com/dmitrijs2005/healthvault/internal/repositories/documents"
	"github.com/dmitrijs2005/healthvault/internal/repositories/healthrecords"
	"github.com/dmitrijs2005/healthvault/internal/repositories/schemaversion"
)

// Store owns the database connection, the device key and the blob store.
type Store struct {
	mu     sync.Mutex
	closed bool

	db    *sql.DB
	key   []byte
	log   logging.Logger
	blobs *blob.Store

	records healthrecords.Repository
	docs    documents.Repository
	convs   conversations.Repository
}

// Open obtains the device key, opens (or creates) the database, brings the
// schema to the compiled-in version and wires the repositories. Migration
// runs before any other operation is serviced; a migration or version
// failure aborts the open and propagates to the caller.
func Open(ctx context.Context, cfg *config.Config, keys keyring.Provider, log logging.Logger) (*Store, error) {
	key, err := keys.GetOrCreateKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("obtaining key: %w", err)
	}

	if cfg.DatabasePath != ":memory:" {
		if _, err := filex.EnsureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
			return nil, err
		}
	}

	// foreign_keys is per-connection state, so it goes in the DSN: the driver
	// reapplies it on every connection the pool hands out, including any
	// replacement after a dropped one.
	db, err := sql.Open("sqlite", cfg.DatabasePath+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// single connection: the serialization point for all SQL
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrConnectionUnavailable, err)
	}

	backupPath := cfg.DatabasePath
	if backupPath == ":memory:" {
		backupPath = ""
	}
	if _, err := migrations.NewEngine(db, backupPath, log).Run(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	blobs, err := blob.NewStore(cfg.BlobDir, key, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{
		db:      db,
		key:     key,
		log:     log,
		blobs:   blobs,
		records: healthrecords.NewSQLiteRepository(db),
		docs:    documents.NewSQLiteRepository(db),
		convs:   conversations.NewSQLiteRepository(db),
	}, nil
}

// Blobs exposes the blob store for callers that stream document bytes
// directly (import pipeline, thumbnail rendering). Its operations do not
// take the store lock.
func (s *Store) Blobs() *blob.Store {
	return s.blobs
}

// SchemaVersion reports the current on-disk schema version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	if err := s.acquire(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	return schemaversion.NewSQLiteRepository(s.db).Current(ctx)
}

// Close releases the connection. Subsequent operations return
// common.ErrConnectionUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// acquire takes the store mutex and verifies the connection is usable.
// The caller must unlock.
func (s *Store) acquire() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return common.ErrConnectionUnavailable
	}
	return nil
}
