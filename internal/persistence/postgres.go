package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"polarity/internal/core"
)

// PostgresStore implements Store backed by PostgreSQL (Supabase-compatible).
type PostgresStore struct {
	db       *sql.DB
	themes   ThemeRepository
	runStats RunStatsRepository
}

// NewPostgresStore opens a PostgreSQL connection and verifies it.
func NewPostgresStore(connectionString string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{
		db:       db,
		themes:   &postgresThemeRepo{db: db},
		runStats: &postgresRunStatsRepo{db: db},
	}, nil
}

func (p *PostgresStore) Themes() ThemeRepository      { return p.themes }
func (p *PostgresStore) RunStats() RunStatsRepository { return p.runStats }

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *PostgresStore) Close() error {
	return p.db.Close()
}

// Migrate creates the themes and run_stats tables if missing.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS themes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			sentiment TEXT NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			industries TEXT[] NOT NULL DEFAULT '{}',
			citations JSONB NOT NULL DEFAULT '[]',
			confidence TEXT NOT NULL,
			confidence_score INTEGER NOT NULL DEFAULT 0,
			first_detected TIMESTAMPTZ NOT NULL,
			last_updated TIMESTAMPTZ NOT NULL,
			mention_count INTEGER NOT NULL DEFAULT 1,
			trend_status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_stats (
			run_date TEXT PRIMARY KEY,
			started_at TIMESTAMPTZ NOT NULL,
			collected_count INTEGER NOT NULL DEFAULT 0,
			unique_count INTEGER NOT NULL DEFAULT 0,
			candidate_count INTEGER NOT NULL DEFAULT 0,
			selected_count INTEGER NOT NULL DEFAULT 0,
			cluster_count INTEGER NOT NULL DEFAULT 0,
			valid_cluster_count INTEGER NOT NULL DEFAULT 0,
			theme_count INTEGER NOT NULL DEFAULT 0,
			selection_calls INTEGER NOT NULL DEFAULT 0,
			extraction_calls INTEGER NOT NULL DEFAULT 0,
			embedding_calls INTEGER NOT NULL DEFAULT 0,
			failed_extractions INTEGER NOT NULL DEFAULT 0,
			estimated_cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
			is_low_signal_day BOOLEAN NOT NULL DEFAULT FALSE,
			low_signal_reasons TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_themes_last_updated ON themes (last_updated)`,
	}
	for _, stmt := range statements {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// postgresThemeRepo implements ThemeRepository for PostgreSQL.
type postgresThemeRepo struct {
	db *sql.DB
}

func (r *postgresThemeRepo) Upsert(ctx context.Context, theme *core.Theme) error {
	citations, err := json.Marshal(theme.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	query := `
		INSERT INTO themes (id, name, sentiment, reasoning, industries, citations,
			confidence, confidence_score, first_detected, last_updated, mention_count, trend_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (name) DO UPDATE SET
			sentiment = EXCLUDED.sentiment,
			reasoning = EXCLUDED.reasoning,
			industries = EXCLUDED.industries,
			citations = EXCLUDED.citations,
			confidence = EXCLUDED.confidence,
			confidence_score = EXCLUDED.confidence_score,
			last_updated = EXCLUDED.last_updated,
			mention_count = EXCLUDED.mention_count,
			trend_status = EXCLUDED.trend_status
	`
	_, err = r.db.ExecContext(ctx, query,
		theme.ID,
		theme.Name,
		string(theme.Sentiment),
		theme.Reasoning,
		pq.Array(theme.Industries),
		citations,
		string(theme.Confidence),
		theme.ConfidenceScore,
		theme.FirstDetected.UTC(),
		theme.LastUpdated.UTC(),
		theme.MentionCount,
		string(theme.TrendStatus),
	)
	return err
}

func (r *postgresThemeRepo) GetByName(ctx context.Context, name string) (*core.Theme, error) {
	query := themeSelect + ` WHERE name = $1`
	theme, err := scanTheme(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return theme, err
}

func (r *postgresThemeRepo) List(ctx context.Context) ([]core.Theme, error) {
	query := themeSelect + ` ORDER BY confidence_score DESC, name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []core.Theme
	for rows.Next() {
		theme, err := scanTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *theme)
	}
	return themes, rows.Err()
}

const themeSelect = `
	SELECT id, name, sentiment, reasoning, industries, citations,
		confidence, confidence_score, first_detected, last_updated, mention_count, trend_status
	FROM themes`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTheme(row scanner) (*core.Theme, error) {
	var theme core.Theme
	var sentiment, confidence, trendStatus string
	var citations []byte
	err := row.Scan(
		&theme.ID,
		&theme.Name,
		&sentiment,
		&theme.Reasoning,
		pq.Array(&theme.Industries),
		&citations,
		&confidence,
		&theme.ConfidenceScore,
		&theme.FirstDetected,
		&theme.LastUpdated,
		&theme.MentionCount,
		&trendStatus,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(citations, &theme.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations for theme %s: %w", theme.ID, err)
	}
	theme.Sentiment = core.Sentiment(sentiment)
	theme.Confidence = core.ConfidenceLabel(confidence)
	theme.TrendStatus = core.TrendStatus(trendStatus)
	return &theme, nil
}

// postgresRunStatsRepo implements RunStatsRepository for PostgreSQL.
type postgresRunStatsRepo struct {
	db *sql.DB
}

func (r *postgresRunStatsRepo) Create(ctx context.Context, stats *core.RunStats) error {
	query := `
		INSERT INTO run_stats (run_date, started_at, collected_count, unique_count,
			candidate_count, selected_count, cluster_count, valid_cluster_count,
			theme_count, selection_calls, extraction_calls, embedding_calls,
			failed_extractions, estimated_cost_usd, is_low_signal_day, low_signal_reasons)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (run_date) DO UPDATE SET
			started_at = EXCLUDED.started_at,
			collected_count = EXCLUDED.collected_count,
			unique_count = EXCLUDED.unique_count,
			candidate_count = EXCLUDED.candidate_count,
			selected_count = EXCLUDED.selected_count,
			cluster_count = EXCLUDED.cluster_count,
			valid_cluster_count = EXCLUDED.valid_cluster_count,
			theme_count = EXCLUDED.theme_count,
			selection_calls = EXCLUDED.selection_calls,
			extraction_calls = EXCLUDED.extraction_calls,
			embedding_calls = EXCLUDED.embedding_calls,
			failed_extractions = EXCLUDED.failed_extractions,
			estimated_cost_usd = EXCLUDED.estimated_cost_usd,
			is_low_signal_day = EXCLUDED.is_low_signal_day,
			low_signal_reasons = EXCLUDED.low_signal_reasons
	`
	_, err := r.db.ExecContext(ctx, query,
		stats.RunDate,
		stats.StartedAt.UTC(),
		stats.CollectedCount,
		stats.UniqueCount,
		stats.CandidateCount,
		stats.SelectedCount,
		stats.ClusterCount,
		stats.ValidClusterCount,
		stats.ThemeCount,
		stats.SelectionCalls,
		stats.ExtractionCalls,
		stats.EmbeddingCalls,
		stats.FailedExtractions,
		stats.EstimatedCostUSD,
		stats.IsLowSignalDay,
		pq.Array(stats.LowSignalReasons),
	)
	return err
}

func (r *postgresRunStatsRepo) List(ctx context.Context, limit int) ([]core.RunStats, error) {
	query := `
		SELECT run_date, started_at, collected_count, unique_count,
			candidate_count, selected_count, cluster_count, valid_cluster_count,
			theme_count, selection_calls, extraction_calls, embedding_calls,
			failed_extractions, estimated_cost_usd, is_low_signal_day, low_signal_reasons
		FROM run_stats
		ORDER BY run_date DESC
		LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []core.RunStats
	for rows.Next() {
		var s core.RunStats
		if err := rows.Scan(
			&s.RunDate,
			&s.StartedAt,
			&s.CollectedCount,
			&s.UniqueCount,
			&s.CandidateCount,
			&s.SelectedCount,
			&s.ClusterCount,
			&s.ValidClusterCount,
			&s.ThemeCount,
			&s.SelectionCalls,
			&s.ExtractionCalls,
			&s.EmbeddingCalls,
			&s.FailedExtractions,
			&s.EstimatedCostUSD,
			&s.IsLowSignalDay,
			pq.Array(&s.LowSignalReasons),
		); err != nil {
			return nil, err
		}
		all = append(all, s)
	}
	return all, rows.Err()
}
