// Package store is the SQLite implementation of the persistence interfaces,
// for single-machine runs without a PostgreSQL instance.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"polarity/internal/core"
	"polarity/internal/persistence"
)

// Store is the SQLite-backed persistence.Store.
type Store struct {
	db   *sql.DB
	path string
}

var _ persistence.Store = (*Store)(nil)

// NewStore opens (creating if necessary) the SQLite database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "polarity.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, path: dbPath}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *Store) Themes() persistence.ThemeRepository      { return &sqliteThemeRepo{db: s.db} }
func (s *Store) RunStats() persistence.RunStatsRepository { return &sqliteRunStatsRepo{db: s.db} }

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the themes and run_stats tables if missing. Timestamps are
// stored as RFC 3339 text; list columns as JSON text.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS themes (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			sentiment TEXT NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			industries TEXT NOT NULL DEFAULT '[]',
			citations TEXT NOT NULL DEFAULT '[]',
			confidence TEXT NOT NULL,
			confidence_score INTEGER NOT NULL DEFAULT 0,
			first_detected TEXT NOT NULL,
			last_updated TEXT NOT NULL,
			mention_count INTEGER NOT NULL DEFAULT 1,
			trend_status TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS run_stats (
			run_date TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
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
			estimated_cost_usd REAL NOT NULL DEFAULT 0,
			is_low_signal_day INTEGER NOT NULL DEFAULT 0,
			low_signal_reasons TEXT NOT NULL DEFAULT '[]'
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

type sqliteThemeRepo struct {
	db *sql.DB
}

func (r *sqliteThemeRepo) Upsert(ctx context.Context, theme *core.Theme) error {
	industries, err := json.Marshal(theme.Industries)
	if err != nil {
		return fmt.Errorf("failed to encode industries: %w", err)
	}
	citations, err := json.Marshal(theme.Citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	query := `
		INSERT INTO themes (id, name, sentiment, reasoning, industries, citations,
			confidence, confidence_score, first_detected, last_updated, mention_count, trend_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			sentiment = excluded.sentiment,
			reasoning = excluded.reasoning,
			industries = excluded.industries,
			citations = excluded.citations,
			confidence = excluded.confidence,
			confidence_score = excluded.confidence_score,
			last_updated = excluded.last_updated,
			mention_count = excluded.mention_count,
			trend_status = excluded.trend_status
	`
	_, err = r.db.ExecContext(ctx, query,
		theme.ID,
		theme.Name,
		string(theme.Sentiment),
		theme.Reasoning,
		string(industries),
		string(citations),
		string(theme.Confidence),
		theme.ConfidenceScore,
		theme.FirstDetected.UTC().Format(time.RFC3339Nano),
		theme.LastUpdated.UTC().Format(time.RFC3339Nano),
		theme.MentionCount,
		string(theme.TrendStatus),
	)
	return err
}

func (r *sqliteThemeRepo) GetByName(ctx context.Context, name string) (*core.Theme, error) {
	query := sqliteThemeSelect + ` WHERE name = ?`
	theme, err := scanSQLiteTheme(r.db.QueryRowContext(ctx, query, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return theme, err
}

func (r *sqliteThemeRepo) List(ctx context.Context) ([]core.Theme, error) {
	query := sqliteThemeSelect + ` ORDER BY confidence_score DESC, name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var themes []core.Theme
	for rows.Next() {
		theme, err := scanSQLiteTheme(rows)
		if err != nil {
			return nil, err
		}
		themes = append(themes, *theme)
	}
	return themes, rows.Err()
}

const sqliteThemeSelect = `
	SELECT id, name, sentiment, reasoning, industries, citations,
		confidence, confidence_score, first_detected, last_updated, mention_count, trend_status
	FROM themes`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanSQLiteTheme(row scanner) (*core.Theme, error) {
	var theme core.Theme
	var sentiment, confidence, trendStatus string
	var industries, citations, firstDetected, lastUpdated string
	err := row.Scan(
		&theme.ID,
		&theme.Name,
		&sentiment,
		&theme.Reasoning,
		&industries,
		&citations,
		&confidence,
		&theme.ConfidenceScore,
		&firstDetected,
		&lastUpdated,
		&theme.MentionCount,
		&trendStatus,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(industries), &theme.Industries); err != nil {
		return nil, fmt.Errorf("failed to decode industries for theme %s: %w", theme.ID, err)
	}
	if err := json.Unmarshal([]byte(citations), &theme.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations for theme %s: %w", theme.ID, err)
	}
	if theme.FirstDetected, err = parseStoredTime(firstDetected); err != nil {
		return nil, err
	}
	if theme.LastUpdated, err = parseStoredTime(lastUpdated); err != nil {
		return nil, err
	}
	theme.Sentiment = core.Sentiment(sentiment)
	theme.Confidence = core.ConfidenceLabel(confidence)
	theme.TrendStatus = core.TrendStatus(trendStatus)
	return &theme, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

type sqliteRunStatsRepo struct {
	db *sql.DB
}

func (r *sqliteRunStatsRepo) Create(ctx context.Context, stats *core.RunStats) error {
	reasons, err := json.Marshal(stats.LowSignalReasons)
	if err != nil {
		return fmt.Errorf("failed to encode low-signal reasons: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO run_stats (run_date, started_at, collected_count, unique_count,
			candidate_count, selected_count, cluster_count, valid_cluster_count,
			theme_count, selection_calls, extraction_calls, embedding_calls,
			failed_extractions, estimated_cost_usd, is_low_signal_day, low_signal_reasons)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	lowSignal := 0
	if stats.IsLowSignalDay {
		lowSignal = 1
	}
	_, err = r.db.ExecContext(ctx, query,
		stats.RunDate,
		stats.StartedAt.UTC().Format(time.RFC3339Nano),
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
		lowSignal,
		string(reasons),
	)
	return err
}

func (r *sqliteRunStatsRepo) List(ctx context.Context, limit int) ([]core.RunStats, error) {
	query := `
		SELECT run_date, started_at, collected_count, unique_count,
			candidate_count, selected_count, cluster_count, valid_cluster_count,
			theme_count, selection_calls, extraction_calls, embedding_calls,
			failed_extractions, estimated_cost_usd, is_low_signal_day, low_signal_reasons
		FROM run_stats
		ORDER BY run_date DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var all []core.RunStats
	for rows.Next() {
		var s core.RunStats
		var startedAt, reasons string
		var lowSignal int
		if err := rows.Scan(
			&s.RunDate,
			&startedAt,
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
			&lowSignal,
			&reasons,
		); err != nil {
			return nil, err
		}
		if s.StartedAt, err = parseStoredTime(startedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(reasons), &s.LowSignalReasons); err != nil {
			return nil, fmt.Errorf("failed to decode low-signal reasons for run %s: %w", s.RunDate, err)
		}
		s.IsLowSignalDay = lowSignal != 0
		all = append(all, s)
	}
	return all, rows.Err()
}
