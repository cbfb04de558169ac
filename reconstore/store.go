// Package reconstore is the local cache store (§4.2): a single embedded
// SQLite database holding per-source caches and the reconciliation
// table. Every exported function here is a repository function — no
// other package in this module opens a *gorm.DB of its own.
package reconstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/reconsvc/config"
	"bitbucket.org/mmdatafocus/reconsvc/reconmodel"
)

// Store wraps the process-wide *gorm.DB. Its methods are the only
// sanctioned way to touch the embedded database.
type Store struct {
	db *gorm.DB
}

// Open connects to the SQLite file at path with retry, runs the additive
// migrations (including the one-time funding_*->payment_* rename), and
// installs the audit-column guard plugin.
func Open(path string, maxRetries int) (*Store, error) {
	db := config.ConnectDatabaseWithRetry(path, maxRetries)
	if db == nil {
		return nil, fmt.Errorf("reconstore: could not connect to %s", path)
	}
	if err := reconmodel.MigrateTables(db); err != nil {
		return nil, fmt.Errorf("reconstore: migrate: %w", err)
	}
	if err := db.Use(NewAuditGuardPlugin()); err != nil {
		return nil, fmt.Errorf("reconstore: install audit guard: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an already-open, already-migrated *gorm.DB — used by tests
// that open an in-memory database directly.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB returns the underlying handle for callers (engine transactions) that
// need direct gorm access beyond the repository methods below.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// WithContext scopes the underlying DB to ctx's deadline/cancellation,
// mirroring how every blocking call in this codebase is context-aware.
func (s *Store) WithContext(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
