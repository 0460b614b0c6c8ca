package crawl

import (
	"context"
	"sync"
	"time"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Run is the handle for one crawl execution. Page records are appended in
// completion order and are write-once; the handle hands out copies only.
type Run struct {
	mu     sync.Mutex
	run    audit.CrawlRun
	pages  []audit.PageRecord
	done   chan struct{}
	cancel context.CancelFunc
}

// Run returns a snapshot of the run metadata with live progress counters.
func (r *Run) Run() audit.CrawlRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.run
	snap.CrawledPages = len(r.pages)
	return snap
}

// Pages returns a copy of the records produced so far.
func (r *Run) Pages() []audit.PageRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.PageRecord, len(r.pages))
	copy(out, r.pages)
	return out
}

// Wait blocks until the run reaches a terminal state or ctx ends. Records
// produced before a cancellation are retained and returned either way.
func (r *Run) Wait(ctx context.Context) (audit.CrawlRun, []audit.PageRecord, error) {
	select {
	case <-r.done:
		return r.Run(), r.Pages(), nil
	case <-ctx.Done():
		return r.Run(), r.Pages(), ctx.Err()
	}
}

// Cancel aborts the run. In-flight fetches are abandoned best-effort.
func (r *Run) Cancel() {
	r.cancel()
}

// Done exposes completion for select-based callers.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

func (r *Run) addPage(rec audit.PageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, rec)
}

// finalize records the terminal state exactly once, after every worker has
// exited.
func (r *Run) finalize(cause error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.run.Finished = now
	r.run.TotalPages = len(r.pages)
	r.run.CrawledPages = len(r.pages)
	indexable := 0
	for _, page := range r.pages {
		if page.Indexable {
			indexable++
		}
	}
	r.run.IndexablePages = indexable
	if cause != nil {
		r.run.Status = audit.RunFailed
		r.run.Reason = "cancelled"
		return
	}
	r.run.Status = audit.RunCompleted
}
