// Package postgres provides Postgres-backed persistence for run and page
// summaries.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dsmetrics/tplscan/internal/scan"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for summary rows.
type Config struct {
	DSN             string
	SummaryTable    string
	PageTable       string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type querierCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes run and page summary rows into Postgres.
type Store struct {
	pool         querierCloser
	summaryTable string
	pageTable    string
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool, cfg.SummaryTable, cfg.PageTable)
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(pool querierCloser, summaryTable, pageTable string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if summaryTable == "" {
		summaryTable = "daily_summaries"
	}
	if pageTable == "" {
		pageTable = "page_summaries"
	}
	for _, table := range []string{summaryTable, pageTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return &Store{pool: pool, summaryTable: summaryTable, pageTable: pageTable}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// SaveRun inserts one summary row plus one row per successful (page,
// viewport) unit. The full report is kept in a JSON payload column so
// LatestRun can reconstruct it without joins.
func (s *Store) SaveRun(ctx context.Context, run scan.RunSummary) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres store is not configured")
	}
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run payload: %w", err)
	}
	topComponents, err := json.Marshal(run.TopComponents)
	if err != nil {
		return fmt.Errorf("marshal top components: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	run_date,
	started_at,
	finished_at,
	pages_scanned,
	pages_failed,
	average_coverage,
	high_count,
	medium_count,
	low_count,
	top_components,
	payload
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)`, s.summaryTable)

	args := []any{
		run.RunID,
		run.Date,
		run.StartedAt,
		run.FinishedAt,
		run.PagesScanned,
		run.PagesFailed,
		run.AverageCoverage,
		run.HighCoverage,
		run.MediumCoverage,
		run.LowCoverage,
		topComponents,
		payload,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}

	for _, page := range run.Pages {
		if err := s.insertPageRows(ctx, run, page); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) insertPageRows(ctx context.Context, run scan.RunSummary, page scan.PageReport) error {
	viewportNames := make([]string, 0, len(page.Viewports))
	for name := range page.Viewports {
		viewportNames = append(viewportNames, name)
	}
	sort.Strings(viewportNames)

	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	run_date,
	page_name,
	viewport,
	url,
	page_type,
	section,
	tpl_coverage,
	element_count,
	top_components
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, s.pageTable)

	for _, name := range viewportNames {
		vr := page.Viewports[name]
		if !vr.Succeeded() {
			continue
		}
		topComponents, err := json.Marshal(vr.Summary.TopComponents)
		if err != nil {
			return fmt.Errorf("marshal page top components: %w", err)
		}
		args := []any{
			run.RunID,
			run.Date,
			page.Page.Name,
			name,
			vr.Summary.URL,
			vr.Summary.PageType,
			vr.Summary.Section,
			vr.Summary.TPLCoverage,
			vr.Summary.ElementCount,
			topComponents,
		}
		if _, err := s.pool.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert page summary: %w", err)
		}
	}
	return nil
}

// LatestRun reconstructs the most recent run from its payload column.
func (s *Store) LatestRun(ctx context.Context) (scan.RunSummary, error) {
	if s == nil || s.pool == nil {
		return scan.RunSummary{}, fmt.Errorf("postgres store is not configured")
	}
	query := fmt.Sprintf(`SELECT payload FROM %s ORDER BY finished_at DESC LIMIT 1`, s.summaryTable)

	var payload []byte
	if err := s.pool.QueryRow(ctx, query).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return scan.RunSummary{}, scan.ErrNoRuns
		}
		return scan.RunSummary{}, fmt.Errorf("query latest run: %w", err)
	}
	var run scan.RunSummary
	if err := json.Unmarshal(payload, &run); err != nil {
		return scan.RunSummary{}, fmt.Errorf("decode run payload: %w", err)
	}
	return run, nil
}
