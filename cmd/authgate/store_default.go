//go:build !sqlite && !postgres

package main

import (
	"authgate/internal/config"
	"authgate/internal/observability"
	"authgate/internal/storage"
)

// selectStore returns the in-memory registration store. Persistent backends
// require building with the sqlite or postgres tags.
func selectStore(logger observability.Logger, cfg *config.Config) storage.RegistrationStore {
	if cfg.Storage.SQLiteDSN != "" {
		logger.Warn("sqlite DSN configured but binary built without sqlite support; using in-memory store",
			"hint", "rebuild with -tags sqlite",
		)
	}
	if cfg.Storage.PostgresDSN != "" {
		logger.Warn("postgres DSN configured but binary built without postgres support; using in-memory store",
			"hint", "rebuild with -tags postgres",
		)
	}
	logger.Info("using in-memory registration store")
	return storage.NewMemoryRegistrationStore()
}
