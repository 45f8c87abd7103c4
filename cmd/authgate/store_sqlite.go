//go:build sqlite && !postgres

package main

import (
	"authgate/internal/config"
	"authgate/internal/observability"
	"authgate/internal/storage"
	sqlitestore "authgate/internal/storage/sqlite"
)

// selectStore returns a SQLite-backed registration store, falling back to the
// in-memory store when the database cannot be opened.
func selectStore(logger observability.Logger, cfg *config.Config) storage.RegistrationStore {
	dsn := cfg.Storage.SQLiteDSN
	if dsn == "" {
		dsn = "file:authgate.db?cache=shared&_fk=1"
	}
	st, err := sqlitestore.New(dsn)
	if err != nil {
		logger.Error("failed to open sqlite store; using in-memory store", "dsn", dsn, "error", err)
		return storage.NewMemoryRegistrationStore()
	}
	logger.Info("using sqlite registration store", "dsn", dsn)
	return st
}
