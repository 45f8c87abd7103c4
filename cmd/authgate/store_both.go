//go:build sqlite && postgres

package main

import (
	"authgate/internal/config"
	"authgate/internal/observability"
	"authgate/internal/storage"
	pgstore "authgate/internal/storage/postgres"
	sqlitestore "authgate/internal/storage/sqlite"
)

// selectStore prefers postgres when a DSN is configured, then sqlite, then
// the in-memory store.
func selectStore(logger observability.Logger, cfg *config.Config) storage.RegistrationStore {
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		st, err := pgstore.New(dsn)
		if err == nil {
			logger.Info("using postgres registration store")
			return st
		}
		logger.Error("failed to connect to postgres; trying sqlite", "error", err)
	}
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
