// Package postgres provides the Postgres-backed page store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists crawl runs, pages, and issue rollups in Postgres.
type Store struct {
	pool querier
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
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
	return &Store{pool: pool}, nil
}

// NewStoreWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool querier) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateRun inserts a new run row.
func (s *Store) CreateRun(ctx context.Context, run audit.CrawlRun) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	query := `
INSERT INTO crawl_runs (id, seed_url, status, started_at)
VALUES ($1, $2, $3, $4)`
	if _, err := s.pool.Exec(ctx, query, run.ID, run.SeedURL, string(run.Status), run.Started); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun writes the terminal state of a run.
func (s *Store) FinishRun(ctx context.Context, run audit.CrawlRun) error {
	countsJSON, err := json.Marshal(run.IssueCounts)
	if err != nil {
		return fmt.Errorf("marshal issue counts: %w", err)
	}
	query := `
UPDATE crawl_runs
SET status = $2,
    finished_at = $3,
    total_pages = $4,
    crawled_pages = $5,
    indexable_pages = $6,
    site_score = $7,
    issue_counts = $8,
    reason = $9
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		run.ID,
		string(run.Status),
		run.Finished,
		run.TotalPages,
		run.CrawledPages,
		run.IndexablePages,
		run.SiteScore,
		countsJSON,
		run.Reason,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("run %s: %w", run.ID, audit.ErrNotFound)
	}
	return nil
}

// SavePages inserts one row per page record.
func (s *Store) SavePages(ctx context.Context, runID string, pages []audit.PageRecord) error {
	query := `
INSERT INTO pages (
	run_id,
	url,
	status_code,
	title,
	meta_description,
	h1,
	canonical_url,
	meta_robots,
	content_type,
	size_bytes,
	word_count,
	indexable,
	score,
	internal_links,
	external_links,
	issues,
	fetched_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`
	for _, page := range pages {
		h1JSON, err := json.Marshal(emptyIfNilStrings(page.H1))
		if err != nil {
			return fmt.Errorf("marshal h1 for %s: %w", page.URL, err)
		}
		internalJSON, err := json.Marshal(emptyIfNilLinks(page.InternalLinks))
		if err != nil {
			return fmt.Errorf("marshal internal links for %s: %w", page.URL, err)
		}
		externalJSON, err := json.Marshal(emptyIfNilLinks(page.ExternalLinks))
		if err != nil {
			return fmt.Errorf("marshal external links for %s: %w", page.URL, err)
		}
		issuesJSON, err := json.Marshal(emptyIfNilIssues(page.Issues))
		if err != nil {
			return fmt.Errorf("marshal issues for %s: %w", page.URL, err)
		}
		_, err = s.pool.Exec(ctx, query,
			runID,
			page.URL,
			page.StatusCode,
			page.Title,
			page.MetaDescription,
			h1JSON,
			page.CanonicalURL,
			page.MetaRobots,
			page.ContentType,
			page.SizeBytes,
			page.WordCount,
			page.Indexable,
			page.Score,
			internalJSON,
			externalJSON,
			issuesJSON,
			page.FetchedAt,
		)
		if err != nil {
			return fmt.Errorf("insert page %s: %w", page.URL, err)
		}
	}
	return nil
}

// SaveIssues inserts the aggregated sitewide issue rows for a run.
func (s *Store) SaveIssues(ctx context.Context, runID string, issues []audit.Issue) error {
	query := `
INSERT INTO site_issues (run_id, type, severity, category, description, affected_pages)
VALUES ($1, $2, $3, $4, $5, $6)`
	for _, issue := range issues {
		_, err := s.pool.Exec(ctx, query,
			runID,
			issue.Type,
			string(issue.Severity),
			issue.Category,
			issue.Description,
			issue.AffectedPages,
		)
		if err != nil {
			return fmt.Errorf("insert issue %s: %w", issue.Type, err)
		}
	}
	return nil
}

// LatestCompletedRun returns the most recently started completed run for the
// given seed URL.
func (s *Store) LatestCompletedRun(ctx context.Context, seedURL string) (audit.CrawlRun, error) {
	query := `
SELECT id, seed_url, status, started_at, finished_at,
       total_pages, crawled_pages, indexable_pages, site_score, issue_counts, reason
FROM crawl_runs
WHERE seed_url = $1 AND status = $2
ORDER BY started_at DESC
LIMIT 1`
	row := s.pool.QueryRow(ctx, query, seedURL, string(audit.RunCompleted))

	var (
		run        audit.CrawlRun
		status     string
		countsJSON []byte
	)
	err := row.Scan(
		&run.ID,
		&run.SeedURL,
		&status,
		&run.Started,
		&run.Finished,
		&run.TotalPages,
		&run.CrawledPages,
		&run.IndexablePages,
		&run.SiteScore,
		&countsJSON,
		&run.Reason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.CrawlRun{}, fmt.Errorf("completed run for %s: %w", seedURL, audit.ErrNotFound)
	}
	if err != nil {
		return audit.CrawlRun{}, fmt.Errorf("select latest run: %w", err)
	}
	run.Status = audit.RunStatus(status)
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &run.IssueCounts); err != nil {
			return audit.CrawlRun{}, fmt.Errorf("unmarshal issue counts: %w", err)
		}
	}
	return run, nil
}

// TopPages returns up to limit pages for a run, indexable pages first,
// larger pages before smaller ones.
func (s *Store) TopPages(ctx context.Context, runID string, limit int) ([]audit.PageRecord, error) {
	query := `
SELECT url, status_code, title, meta_description, h1, canonical_url, meta_robots,
       content_type, size_bytes, word_count, indexable, score,
       internal_links, external_links, issues, fetched_at
FROM pages
WHERE run_id = $1
ORDER BY indexable DESC, word_count DESC, url ASC
LIMIT $2`
	rows, err := s.pool.Query(ctx, query, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("select top pages: %w", err)
	}
	defer rows.Close()

	var pages []audit.PageRecord
	for rows.Next() {
		var (
			page         audit.PageRecord
			h1JSON       []byte
			internalJSON []byte
			externalJSON []byte
			issuesJSON   []byte
		)
		err := rows.Scan(
			&page.URL,
			&page.StatusCode,
			&page.Title,
			&page.MetaDescription,
			&h1JSON,
			&page.CanonicalURL,
			&page.MetaRobots,
			&page.ContentType,
			&page.SizeBytes,
			&page.WordCount,
			&page.Indexable,
			&page.Score,
			&internalJSON,
			&externalJSON,
			&issuesJSON,
			&page.FetchedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan page row: %w", err)
		}
		if err := unmarshalInto(h1JSON, &page.H1); err != nil {
			return nil, fmt.Errorf("unmarshal h1 for %s: %w", page.URL, err)
		}
		if err := unmarshalInto(internalJSON, &page.InternalLinks); err != nil {
			return nil, fmt.Errorf("unmarshal internal links for %s: %w", page.URL, err)
		}
		if err := unmarshalInto(externalJSON, &page.ExternalLinks); err != nil {
			return nil, fmt.Errorf("unmarshal external links for %s: %w", page.URL, err)
		}
		if err := unmarshalInto(issuesJSON, &page.Issues); err != nil {
			return nil, fmt.Errorf("unmarshal issues for %s: %w", page.URL, err)
		}
		pages = append(pages, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page rows: %w", err)
	}
	return pages, nil
}

func unmarshalInto[T any](data []byte, dst *T) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func emptyIfNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIfNilLinks(l []audit.Link) []audit.Link {
	if l == nil {
		return []audit.Link{}
	}
	return l
}

func emptyIfNilIssues(i []audit.Issue) []audit.Issue {
	if i == nil {
		return []audit.Issue{}
	}
	return i
}
