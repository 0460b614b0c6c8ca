package audit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Service orchestrates one audit: crawl, aggregate, persist, notify. The
// crawler produces plain data; the store and notifier collaborators decide
// what persistence and delivery look like.
type Service struct {
	crawler  Crawler
	store    PageStore
	notifier Notifier
	logger   *zap.Logger
}

// NewService constructs a Service. The notifier may be nil when no
// notification collaborator is configured.
func NewService(crawler Crawler, store PageStore, notifier Notifier, logger *zap.Logger) *Service {
	return &Service{
		crawler:  crawler,
		store:    store,
		notifier: notifier,
		logger:   logger,
	}
}

// RunAudit executes a full audit and blocks until it reaches a terminal
// state. A page-level failure never fails the audit; a persistence failure
// marks the run failed but still returns the partial results.
func (s *Service) RunAudit(ctx context.Context, settings CrawlSettings) (CrawlRun, AuditSummary, []PageRecord, error) {
	handle, err := s.crawler.Start(ctx, settings)
	if err != nil {
		return CrawlRun{}, AuditSummary{}, nil, fmt.Errorf("start crawl: %w", err)
	}

	run := handle.Run()
	if err := s.store.CreateRun(ctx, run); err != nil {
		handle.Cancel()
		return run, AuditSummary{}, nil, fmt.Errorf("create run %s: %w", run.ID, err)
	}
	s.logger.Info("audit started",
		zap.String("run_id", run.ID),
		zap.String("seed", run.SeedURL),
		zap.Int("max_pages", settings.MaxPages),
	)

	run, pages, err := handle.Wait(ctx)
	if err != nil {
		run = s.failRun(ctx, run, err.Error())
		return run, AuditSummary{}, pages, fmt.Errorf("crawl run %s: %w", run.ID, err)
	}

	summary := Aggregate(pages)
	if run.Status == RunCompleted {
		run.ApplySummary(summary)
	}

	if err := s.persist(ctx, run, summary, pages); err != nil {
		run = s.failRun(ctx, run, err.Error())
		return run, summary, pages, err
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		return run, summary, pages, fmt.Errorf("finish run %s: %w", run.ID, err)
	}

	s.notify(ctx, run, summary)
	s.logger.Info("audit finished",
		zap.String("run_id", run.ID),
		zap.String("status", string(run.Status)),
		zap.Int("pages", len(pages)),
		zap.Int("site_score", run.SiteScore),
	)
	return run, summary, pages, nil
}

func (s *Service) persist(ctx context.Context, run CrawlRun, summary AuditSummary, pages []PageRecord) error {
	if err := s.store.SavePages(ctx, run.ID, pages); err != nil {
		return fmt.Errorf("save pages for run %s: %w", run.ID, err)
	}
	if err := s.store.SaveIssues(ctx, run.ID, summary.Issues); err != nil {
		return fmt.Errorf("save issues for run %s: %w", run.ID, err)
	}
	return nil
}

// failRun records a terminal failure on the run row. Best effort: an error
// while marking the failure is logged, not propagated, so the original
// failure stays visible to the caller.
func (s *Service) failRun(ctx context.Context, run CrawlRun, reason string) CrawlRun {
	run.Status = RunFailed
	if run.Reason == "" {
		run.Reason = reason
	}
	if err := s.store.FinishRun(ctx, run); err != nil {
		s.logger.Error("mark run failed",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
	return run
}

func (s *Service) notify(ctx context.Context, run CrawlRun, summary AuditSummary) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, Notification{Run: run, Summary: summary}); err != nil {
		s.logger.Warn("notify run completion",
			zap.String("run_id", run.ID),
			zap.Error(err),
		)
	}
}
