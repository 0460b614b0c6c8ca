package monitor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Analyzer turns a fetch outcome into a page record.
type Analyzer interface {
	Analyze(url string, resp audit.FetchResponse, fetchErr error) audit.PageRecord
}

// Report is the result of one monitoring check across a site's top pages.
type Report struct {
	SeedURL   string       `json:"seed_url"`
	RunID     string       `json:"run_id"`
	CheckedAt time.Time    `json:"checked_at"`
	Status    SiteStatus   `json:"status"`
	Pages     []PageDiff   `json:"pages"`
}

// Service re-fetches the highest-impact pages of the latest completed run
// and diffs them against their stored baselines.
type Service struct {
	store    audit.PageStore
	fetcher  audit.Fetcher
	analyzer Analyzer
	clock    audit.Clock
	logger   *zap.Logger

	pageLimit    int
	fetchTimeout time.Duration
}

// NewService creates a monitoring service. pageLimit bounds how many pages a
// single check touches; fetchTimeout bounds each individual fetch.
func NewService(
	store audit.PageStore,
	fetcher audit.Fetcher,
	analyzer Analyzer,
	clock audit.Clock,
	logger *zap.Logger,
	pageLimit int,
	fetchTimeout time.Duration,
) *Service {
	if pageLimit <= 0 {
		pageLimit = 10
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Service{
		store:        store,
		fetcher:      fetcher,
		analyzer:     analyzer,
		clock:        clock,
		logger:       logger,
		pageLimit:    pageLimit,
		fetchTimeout: fetchTimeout,
	}
}

// Check loads the latest completed run for seedURL, re-fetches its top pages
// sequentially, and returns the aggregated report. Pages that changed are
// logged as they are found.
func (s *Service) Check(ctx context.Context, seedURL string) (Report, error) {
	run, err := s.store.LatestCompletedRun(ctx, seedURL)
	if err != nil {
		return Report{}, fmt.Errorf("load latest run for %s: %w", seedURL, err)
	}

	baselines, err := s.store.TopPages(ctx, run.ID, s.pageLimit)
	if err != nil {
		return Report{}, fmt.Errorf("load top pages for run %s: %w", run.ID, err)
	}

	report := Report{
		SeedURL:   seedURL,
		RunID:     run.ID,
		CheckedAt: s.clock.Now(),
		Pages:     make([]PageDiff, 0, len(baselines)),
	}

	for _, baseline := range baselines {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		diff := s.checkPage(ctx, baseline)
		if diff.Changed() {
			s.logger.Info("page changed",
				zap.String("url", diff.URL),
				zap.Bool("status_change", diff.Status != nil),
				zap.Int("meta_changes", len(diff.Meta)),
				zap.Bool("content_change", diff.Content != nil),
			)
		}
		report.Pages = append(report.Pages, diff)
	}

	report.Status = DeriveStatus(report.Pages)
	s.logger.Info("monitoring check complete",
		zap.String("seed_url", seedURL),
		zap.String("run_id", run.ID),
		zap.String("status", string(report.Status)),
		zap.Int("pages", len(report.Pages)),
	)
	return report, nil
}

func (s *Service) checkPage(ctx context.Context, baseline audit.PageRecord) PageDiff {
	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	resp, err := s.fetcher.Fetch(fetchCtx, baseline.URL)
	fresh := s.analyzer.Analyze(baseline.URL, resp, err)
	return Diff(baseline, fresh)
}
