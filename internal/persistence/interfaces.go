// Package persistence defines the storage abstraction for themes and run
// statistics, with a PostgreSQL implementation. A SQLite implementation of
// the same interfaces lives in internal/store for single-machine use.
package persistence

import (
	"context"

	"polarity/internal/core"
)

// ThemeRepository handles the long-lived theme registry.
type ThemeRepository interface {
	// Upsert inserts the theme or, when a theme with the same name exists,
	// replaces it in a single atomic statement.
	Upsert(ctx context.Context, theme *core.Theme) error

	// GetByName retrieves a theme by its name. Returns (nil, nil) when no
	// theme with that name exists.
	GetByName(ctx context.Context, name string) (*core.Theme, error)

	// List retrieves all themes ordered by confidence score descending.
	List(ctx context.Context) ([]core.Theme, error)
}

// RunStatsRepository handles the append-only run audit log.
type RunStatsRepository interface {
	// Create inserts one run record. Runs are keyed by run date; a rerun on
	// the same date replaces the earlier record.
	Create(ctx context.Context, stats *core.RunStats) error

	// List retrieves the most recent runs, newest first.
	List(ctx context.Context, limit int) ([]core.RunStats, error)
}

// Store bundles the repositories behind one connection.
type Store interface {
	Themes() ThemeRepository
	RunStats() RunStatsRepository

	// Migrate creates the schema if it does not exist.
	Migrate(ctx context.Context) error

	Ping(ctx context.Context) error
	Close() error
}
