package crawl

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/analyzer"
	"github.com/seoscope/siteaudit/internal/audit"
)

type fixedClock struct {
	at time.Time
}

func (c fixedClock) Now() time.Time {
	return c.at
}

type staticIDs struct{}

func (staticIDs) NewID() (string, error) {
	return "run-test", nil
}

// fakeFetcher serves canned HTML keyed by normalized URL. Unknown URLs get
// a 404. URLs listed in blocks park until the context ends.
type fakeFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	calls  map[string]int
	blocks map[string]bool
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		pages:  make(map[string]string),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
		blocks: make(map[string]bool),
	}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (audit.FetchResponse, error) {
	f.mu.Lock()
	f.calls[url]++
	blocked := f.blocks[url]
	f.mu.Unlock()

	if blocked {
		<-ctx.Done()
		return audit.FetchResponse{}, ctx.Err()
	}
	if err := f.errs[url]; err != nil {
		return audit.FetchResponse{}, err
	}
	body, ok := f.pages[url]
	status := http.StatusOK
	if !ok {
		status = http.StatusNotFound
		body = "<html><body>not found</body></html>"
	}
	return audit.FetchResponse{
		URL:        url,
		StatusCode: status,
		Headers:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		Body:       []byte(body),
	}, nil
}

func (f *fakeFetcher) callCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func pageWithLinks(title string, hrefs ...string) string {
	links := ""
	for i, href := range hrefs {
		links += fmt.Sprintf(`<a href="%s">link %d</a>`, href, i)
	}
	return fmt.Sprintf(
		`<html><head><title>%s</title></head><body><h1>%s</h1>%s</body></html>`,
		title, title, links,
	)
}

func newTestScheduler(fetcher audit.Fetcher) *Scheduler {
	clk := fixedClock{at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewScheduler(fetcher, analyzer.New(clk, zap.NewNop()), clk, staticIDs{}, zap.NewNop())
}

func testSettings(maxPages int) audit.CrawlSettings {
	return audit.CrawlSettings{
		SeedURL:       "https://example.com",
		MaxPages:      maxPages,
		MaxConcurrent: 2,
		Timeout:       5 * time.Second,
		UserAgent:     "siteaudit-test",
	}
}

func TestStartRejectsInvalidSettings(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(newFakeFetcher())

	settings := testSettings(10)
	settings.MaxPages = 0
	_, err := s.Start(context.Background(), settings)
	assert.ErrorIs(t, err, audit.ErrInvalidSettings)

	settings = testSettings(10)
	settings.SeedURL = "ftp://example.com/file"
	_, err = s.Start(context.Background(), settings)
	assert.ErrorIs(t, err, audit.ErrInvalidSettings)
}

func TestCrawlRespectsPageBudget(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/"] = pageWithLinks("A good page title",
		"/p1", "/p2", "/p3", "/p4", "/p5")
	for i := 1; i <= 5; i++ {
		url := fmt.Sprintf("https://example.com/p%d", i)
		fetcher.pages[url] = pageWithLinks("Another page title")
	}

	s := newTestScheduler(fetcher)
	handle, err := s.Start(context.Background(), testSettings(2))
	require.NoError(t, err)

	run, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.RunCompleted, run.Status)
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, run.TotalPages)
}

func TestCrawlFetchesEachURLOnce(t *testing.T) {
	t.Parallel()

	// Page A links to B twice with different anchors: B is fetched once but
	// both anchors survive on A's record.
	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/"] = `<html><head><title>A good page title</title></head><body><h1>A</h1>
<a href="/b">first anchor</a>
<a href="https://example.com/b">second anchor</a>
</body></html>`
	fetcher.pages["https://example.com/b"] = pageWithLinks("B page good title", "/")

	s := newTestScheduler(fetcher)
	handle, err := s.Start(context.Background(), testSettings(10))
	require.NoError(t, err)

	run, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.RunCompleted, run.Status)
	require.Len(t, pages, 2)
	assert.Equal(t, 1, fetcher.callCount("https://example.com/b"))
	assert.Equal(t, 1, fetcher.callCount("https://example.com/"))

	var seedRecord audit.PageRecord
	for _, page := range pages {
		if page.URL == "https://example.com/" {
			seedRecord = page
		}
	}
	require.Len(t, seedRecord.InternalLinks, 2)
}

func TestCrawlSeedTimeoutCompletesRun(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.errs["https://example.com/"] = context.DeadlineExceeded

	s := newTestScheduler(fetcher)
	handle, err := s.Start(context.Background(), testSettings(10))
	require.NoError(t, err)

	run, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.RunCompleted, run.Status, "a page failure never fails the run")
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].StatusCode)
	assert.False(t, pages[0].Indexable)
	require.Len(t, pages[0].Issues, 1)
	assert.Equal(t, "timeout", pages[0].Issues[0].Type)
	assert.Equal(t, audit.SeverityCritical, pages[0].Issues[0].Severity)
}

func TestCrawlCancellationKeepsPartialResults(t *testing.T) {
	t.Parallel()

	// The seed resolves normally; every discovered page parks until the run
	// is cancelled.
	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/"] = pageWithLinks("A good page title", "/p1", "/p2")
	fetcher.blocks["https://example.com/p1"] = true
	fetcher.blocks["https://example.com/p2"] = true

	s := newTestScheduler(fetcher)
	settings := testSettings(10)
	settings.MaxConcurrent = 1
	handle, err := s.Start(context.Background(), settings)
	require.NoError(t, err)

	require.Eventuallyf(t, func() bool {
		return handle.Run().CrawledPages >= 1
	}, 2*time.Second, 5*time.Millisecond, "seed page never completed")

	handle.Cancel()
	run, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)

	assert.Equal(t, audit.RunFailed, run.Status)
	assert.Equal(t, "cancelled", run.Reason)
	assert.GreaterOrEqual(t, len(pages), 1, "records produced before cancellation are retained")
	assert.False(t, run.Finished.IsZero())
}

func TestCrawlNonHTMLAndErrorPages(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/"] = pageWithLinks("A good page title", "/missing")

	s := newTestScheduler(fetcher)
	handle, err := s.Start(context.Background(), testSettings(10))
	require.NoError(t, err)

	run, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, audit.RunCompleted, run.Status)
	require.Len(t, pages, 2)

	var missing audit.PageRecord
	for _, page := range pages {
		if page.URL == "https://example.com/missing" {
			missing = page
		}
	}
	require.Len(t, missing.Issues, 1)
	assert.Equal(t, "http_error:404", missing.Issues[0].Type)
	assert.Equal(t, 1, run.IndexablePages, "only the seed is indexable")
}

func TestCrawlSkipsExternalLinksByDefault(t *testing.T) {
	t.Parallel()

	fetcher := newFakeFetcher()
	fetcher.pages["https://example.com/"] = pageWithLinks("A good page title", "https://other.com/x")

	s := newTestScheduler(fetcher)
	handle, err := s.Start(context.Background(), testSettings(10))
	require.NoError(t, err)

	_, pages, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, 0, fetcher.callCount("https://other.com/x"))
}
