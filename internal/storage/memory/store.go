// Package memory provides an in-memory page store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Store keeps crawl runs and pages in process memory.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]audit.CrawlRun
	pages  map[string][]audit.PageRecord
	issues map[string][]audit.Issue
}

// NewStore constructs a Store.
func NewStore() *Store {
	return &Store{
		runs:   make(map[string]audit.CrawlRun),
		pages:  make(map[string][]audit.PageRecord),
		issues: make(map[string][]audit.Issue),
	}
}

// CreateRun stores a new run.
func (s *Store) CreateRun(_ context.Context, run audit.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run %s already exists", run.ID)
	}
	s.runs[run.ID] = run
	return nil
}

// FinishRun overwrites the run with its terminal state.
func (s *Store) FinishRun(_ context.Context, run audit.CrawlRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; !exists {
		return fmt.Errorf("run %s: %w", run.ID, audit.ErrNotFound)
	}
	s.runs[run.ID] = run
	return nil
}

// SavePages records the page collection for a run.
func (s *Store) SavePages(_ context.Context, runID string, pages []audit.PageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]audit.PageRecord, len(pages))
	copy(stored, pages)
	s.pages[runID] = stored
	return nil
}

// SaveIssues records the aggregated issue rollup for a run.
func (s *Store) SaveIssues(_ context.Context, runID string, issues []audit.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]audit.Issue, len(issues))
	copy(stored, issues)
	s.issues[runID] = stored
	return nil
}

// LatestCompletedRun returns the most recently started completed run for the
// given seed URL.
func (s *Store) LatestCompletedRun(_ context.Context, seedURL string) (audit.CrawlRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest audit.CrawlRun
	found := false
	for _, run := range s.runs {
		if run.SeedURL != seedURL || run.Status != audit.RunCompleted {
			continue
		}
		if !found || run.Started.After(latest.Started) {
			latest = run
			found = true
		}
	}
	if !found {
		return audit.CrawlRun{}, fmt.Errorf("completed run for %s: %w", seedURL, audit.ErrNotFound)
	}
	return latest, nil
}

// TopPages returns up to limit pages for a run, indexable pages first,
// larger pages before smaller ones.
func (s *Store) TopPages(_ context.Context, runID string, limit int) ([]audit.PageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pages, ok := s.pages[runID]
	if !ok {
		return nil, fmt.Errorf("pages for run %s: %w", runID, audit.ErrNotFound)
	}
	sorted := make([]audit.PageRecord, len(pages))
	copy(sorted, pages)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Indexable != sorted[j].Indexable {
			return sorted[i].Indexable
		}
		if sorted[i].WordCount != sorted[j].WordCount {
			return sorted[i].WordCount > sorted[j].WordCount
		}
		return sorted[i].URL < sorted[j].URL
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// Issues returns the saved issue rollup for a run.
func (s *Store) Issues(_ context.Context, runID string) ([]audit.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	issues, ok := s.issues[runID]
	if !ok {
		return nil, fmt.Errorf("issues for run %s: %w", runID, audit.ErrNotFound)
	}
	out := make([]audit.Issue, len(issues))
	copy(out, issues)
	return out, nil
}

// Run returns a run by ID.
func (s *Store) Run(_ context.Context, runID string) (audit.CrawlRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return audit.CrawlRun{}, fmt.Errorf("run %s: %w", runID, audit.ErrNotFound)
	}
	return run, nil
}
