//go:build postgres && !sqlite

package main

import (
	"authgate/internal/config"
	"authgate/internal/observability"
	"authgate/internal/storage"
	pgstore "authgate/internal/storage/postgres"
)

// selectStore returns a PostgreSQL-backed registration store, falling back to
// the in-memory store when no DSN is configured or the pool cannot be built.
func selectStore(logger observability.Logger, cfg *config.Config) storage.RegistrationStore {
	dsn := cfg.Storage.PostgresDSN
	if dsn == "" {
		logger.Warn("binary built with postgres support but no DSN configured; using in-memory store",
			"hint", "set AUTHGATE_POSTGRES_DSN or storage.postgres_dsn",
		)
		return storage.NewMemoryRegistrationStore()
	}
	st, err := pgstore.New(dsn)
	if err != nil {
		logger.Error("failed to connect to postgres; using in-memory store", "error", err)
		return storage.NewMemoryRegistrationStore()
	}
	logger.Info("using postgres registration store")
	return st
}
