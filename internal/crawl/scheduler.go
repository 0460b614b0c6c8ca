// Package crawl implements the crawl scheduler: a bounded worker pool
// driving fetch and analysis across a synchronized URL frontier.
package crawl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/audit"
	"github.com/seoscope/siteaudit/internal/metrics"
	"github.com/seoscope/siteaudit/internal/urlutil"
)

// Analyzer turns one fetch outcome into a page record.
type Analyzer interface {
	Analyze(url string, resp audit.FetchResponse, fetchErr error) audit.PageRecord
}

// Scheduler owns the crawl loop. Workers are fixed at the run's
// MaxConcurrent regardless of how many links are discovered; the frontier
// guarantees each unique URL is fetched at most once per run.
type Scheduler struct {
	fetcher  audit.Fetcher
	analyzer Analyzer
	clock    audit.Clock
	ids      audit.IDGenerator
	logger   *zap.Logger
}

// NewScheduler constructs a Scheduler.
func NewScheduler(
	fetcher audit.Fetcher,
	analyzer Analyzer,
	clock audit.Clock,
	ids audit.IDGenerator,
	logger *zap.Logger,
) *Scheduler {
	metrics.Init()
	return &Scheduler{
		fetcher:  fetcher,
		analyzer: analyzer,
		clock:    clock,
		ids:      ids,
		logger:   logger,
	}
}

// Start validates the settings, seeds the frontier, and launches the worker
// pool. It returns immediately with a handle; the run terminates on frontier
// drain, budget exhaustion, cancellation, or a fatal setup error.
func (s *Scheduler) Start(ctx context.Context, settings audit.CrawlSettings) (audit.RunHandle, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	seed, err := urlutil.Normalize(settings.SeedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: seed: %v", audit.ErrInvalidSettings, err)
	}
	baseDomain := urlutil.Domain(seed)

	id, err := s.ids.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate run id: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	handle := &Run{
		run: audit.CrawlRun{
			ID:      id,
			SeedURL: seed,
			Status:  audit.RunInProgress,
			Started: s.clock.Now(),
		},
		done:   make(chan struct{}),
		cancel: cancel,
	}

	fr := newFrontier(settings.MaxPages)
	fr.Admit(seed)
	robots := NewRobotsPolicy(settings.RespectRobots, settings.UserAgent, s.logger)

	go func() {
		<-runCtx.Done()
		fr.Close()
	}()

	var wg sync.WaitGroup
	for i := 0; i < settings.MaxConcurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(runCtx, handle, fr, settings, baseDomain, robots)
		}()
	}

	go func() {
		wg.Wait()
		handle.finalize(runCtx.Err(), s.clock.Now())
		cancel()
		metrics.ObserveRun(string(handle.Run().Status))
		s.logger.Info("crawl finished",
			zap.String("run_id", id),
			zap.String("seed", seed),
			zap.Int("pages", handle.Run().CrawledPages),
			zap.String("status", string(handle.Run().Status)),
		)
		close(handle.done)
	}()

	return handle, nil
}

func (s *Scheduler) worker(
	ctx context.Context,
	handle *Run,
	fr *frontier,
	settings audit.CrawlSettings,
	baseDomain string,
	robots RobotsPolicy,
) {
	for {
		url, ok := fr.Next()
		if !ok {
			return
		}

		pause(ctx, settings.Delay)
		if ctx.Err() != nil {
			fr.Finish(url)
			return
		}

		metrics.IncActiveWorkers()
		rec, completed := s.process(ctx, url, settings, robots)
		metrics.DecActiveWorkers()
		if !completed {
			// Run cancelled mid-fetch; the record is abandoned.
			fr.Finish(url)
			return
		}

		for _, link := range discoveries(rec, settings) {
			fr.Admit(link)
		}
		handle.addPage(rec)

		metrics.ObservePage(baseDomain, rec.StatusCode)
		for _, is := range rec.Issues {
			metrics.ObserveIssue(string(is.Severity))
		}
		metrics.SetFrontierSize(fr.QueueLen())

		fr.Finish(url)
	}
}

// process fetches and analyzes one URL. A per-page failure yields a failed
// record rather than an error; only run cancellation aborts the worker.
func (s *Scheduler) process(
	ctx context.Context,
	url string,
	settings audit.CrawlSettings,
	robots RobotsPolicy,
) (audit.PageRecord, bool) {
	if !robots.Allowed(ctx, url) {
		s.logger.Debug("robots disallow", zap.String("url", url))
		return audit.PageRecord{
			URL:       url,
			FetchedAt: s.clock.Now(),
			Issues: []audit.Issue{{
				Type:        "robots_blocked",
				Severity:    audit.SeverityNotice,
				Category:    "availability",
				Description: "fetch skipped: disallowed by robots.txt",
			}},
		}, true
	}

	fetchCtx, cancel := context.WithTimeout(ctx, settings.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := s.fetcher.Fetch(fetchCtx, url)
	metrics.ObserveFetchDuration(time.Since(start))
	if err != nil && ctx.Err() != nil {
		return audit.PageRecord{}, false
	}
	if err != nil {
		s.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
	}
	return s.analyzer.Analyze(url, resp, err), true
}

// discoveries lists the normalized link targets eligible for admission.
func discoveries(rec audit.PageRecord, settings audit.CrawlSettings) []string {
	out := make([]string, 0, len(rec.InternalLinks))
	for _, link := range rec.InternalLinks {
		out = append(out, link.URL)
	}
	if settings.FollowExternal {
		for _, link := range rec.ExternalLinks {
			out = append(out, link.URL)
		}
	}
	return out
}
