package audit

import (
	"context"
	"time"
)

// Fetcher performs one bounded HTTP GET. Retry and scheduling policy belong
// to the caller, not the fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Crawler starts a crawl run and hands back an explicit handle. Implemented
// by the crawl scheduler.
type Crawler interface {
	Start(ctx context.Context, settings CrawlSettings) (RunHandle, error)
}

// RunHandle tracks one in-flight crawl run. Wait blocks until the run
// reaches a terminal state and returns the final metadata plus one page
// record per unique URL; records produced before a cancellation are
// retained, so Wait returns them even for failed runs.
type RunHandle interface {
	Run() CrawlRun
	Wait(ctx context.Context) (CrawlRun, []PageRecord, error)
	Cancel()
}

// PageStore is the persistence collaborator. The core computes values; the
// store owns tables, IDs, and the affected-page-count backfill.
type PageStore interface {
	CreateRun(ctx context.Context, run CrawlRun) error
	FinishRun(ctx context.Context, run CrawlRun) error
	SavePages(ctx context.Context, runID string, pages []PageRecord) error
	SaveIssues(ctx context.Context, runID string, issues []Issue) error
	LatestCompletedRun(ctx context.Context, seedURL string) (CrawlRun, error)
	TopPages(ctx context.Context, runID string, limit int) ([]PageRecord, error)
}

// Notifier receives the terminal state of a run. Delivery transport (email,
// webhook, pubsub) is the collaborator's concern.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Clock returns the current time (swappable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
