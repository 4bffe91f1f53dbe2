package handlers

import (
	"context"
	"fmt"

	"polarity/internal/config"
	"polarity/internal/persistence"
	"polarity/internal/store"
)

// openStore picks the persistence backend: PostgreSQL when a database URL is
// configured, otherwise the local SQLite store under the data directory.
func openStore(cfg *config.Config) (persistence.Store, error) {
	if cfg.Storage.DatabaseURL != "" {
		pg, err := persistence.NewPostgresStore(cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			pg.Close()
			return nil, err
		}
		return pg, nil
	}

	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		dataDir = cfg.App.DataDir
	}
	return store.NewStore(dataDir)
}
