// Package postgres persists listings and run summaries to Postgres.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Default table names.
const (
	DefaultTable     = "job_listings"
	DefaultRunsTable = "crawl_runs"
)

// Config controls the Postgres connection pool and target tables.
type Config struct {
	DSN             string
	Table           string
	RunsTable       string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// Store writes listings (first write wins per id) and run summaries.
type Store struct {
	pool      execCloser
	table     string
	runsTable string
	runID     string
}

// New connects to Postgres using cfg.
func New(ctx context.Context, cfg Config, runID string) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	if err := validateTables(&cfg); err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: cfg.Table, runsTable: cfg.RunsTable, runID: runID}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool execCloser, cfg Config, runID string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if err := validateTables(&cfg); err != nil {
		return nil, err
	}
	return &Store{pool: pool, table: cfg.Table, runsTable: cfg.RunsTable, runID: runID}, nil
}

func validateTables(cfg *Config) error {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.RunsTable == "" {
		cfg.RunsTable = DefaultRunsTable
	}
	for _, name := range []string{cfg.Table, cfg.RunsTable} {
		if !validTableName.MatchString(name) {
			return fmt.Errorf("invalid table name %q", name)
		}
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveListing inserts listing. An existing row with the same id is kept.
func (s *Store) SaveListing(ctx context.Context, listing crawler.JobListingFull) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("listing store is not configured")
	}
	if listing.ID == "" {
		return fmt.Errorf("listing id is required")
	}
	payload, err := json.Marshal(listing)
	if err != nil {
		return fmt.Errorf("marshal listing: %w", err)
	}
	var postedAt *time.Time
	if listing.PostedDateTimestamp != nil {
		t := time.UnixMilli(*listing.PostedDateTimestamp).UTC()
		postedAt = &t
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	run_id,
	url,
	title,
	company,
	location,
	source,
	posted_at,
	scraped_at,
	payload
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)
ON CONFLICT (id) DO NOTHING`, s.table)

	args := []any{
		listing.ID,
		s.runID,
		listing.URL,
		listing.Title,
		listing.Company,
		listing.Location,
		string(listing.Source),
		postedAt,
		listing.ScrapedAt,
		payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// WriteStats upserts the run summary row.
func (s *Store) WriteStats(ctx context.Context, summary stats.Summary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("run store is not configured")
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, started_at, finished_at, duration_ms, requests, errors, listings_persisted, summary)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	finished_at = EXCLUDED.finished_at,
	duration_ms = EXCLUDED.duration_ms,
	requests = EXCLUDED.requests,
	errors = EXCLUDED.errors,
	listings_persisted = EXCLUDED.listings_persisted,
	summary = EXCLUDED.summary`, s.runsTable)

	if _, err := s.pool.Exec(ctx, query,
		summary.RunID,
		summary.StartedAt,
		summary.FinishedAt,
		summary.DurationMs,
		summary.Requests,
		summary.Errors,
		summary.ListingsPersisted,
		raw,
	); err != nil {
		return fmt.Errorf("upsert run summary: %w", err)
	}
	return nil
}
