// Package audit defines the core types shared across the crawl and audit
// subsystems, plus the sitewide aggregation logic.
package audit

import (
	"fmt"
	"net/http"
	"time"
)

// Severity ranks how urgent an SEO issue is.
type Severity string

// Issue severities, from most to least urgent.
const (
	SeverityCritical    Severity = "critical"
	SeverityWarning     Severity = "warning"
	SeverityOpportunity Severity = "opportunity"
	SeverityNotice      Severity = "notice"
)

// Issue is one SEO finding on a page. AffectedPages is zero while crawling
// and filled in during aggregation.
type Issue struct {
	Type          string   `json:"type"`
	Severity      Severity `json:"severity"`
	Category      string   `json:"category"`
	Description   string   `json:"description"`
	AffectedPages int      `json:"affected_pages,omitempty"`
}

// Link is one outbound anchor discovered on a page.
type Link struct {
	URL      string `json:"url"`
	Text     string `json:"text,omitempty"`
	NoFollow bool   `json:"nofollow,omitempty"`
}

// PageRecord is the immutable result of fetching and analyzing one URL.
// StatusCode 0 means the fetch itself failed. Exactly one record is produced
// per unique normalized URL per run.
type PageRecord struct {
	URL             string    `json:"url"`
	StatusCode      int       `json:"status_code"`
	Title           string    `json:"title,omitempty"`
	MetaDescription string    `json:"meta_description,omitempty"`
	H1              []string  `json:"h1,omitempty"`
	CanonicalURL    string    `json:"canonical_url,omitempty"`
	MetaRobots      string    `json:"meta_robots,omitempty"`
	ContentType     string    `json:"content_type,omitempty"`
	SizeBytes       int       `json:"size_bytes"`
	WordCount       int       `json:"word_count"`
	Indexable       bool      `json:"indexable"`
	Score           int       `json:"score"`
	InternalLinks   []Link    `json:"internal_links,omitempty"`
	ExternalLinks   []Link    `json:"external_links,omitempty"`
	Issues          []Issue   `json:"issues,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}

// FirstH1 returns the first H1 heading, or "" when the page has none.
func (p PageRecord) FirstH1() string {
	if len(p.H1) == 0 {
		return ""
	}
	return p.H1[0]
}

// HasSeverity reports whether any issue on the page carries the severity.
func (p PageRecord) HasSeverity(sev Severity) bool {
	for _, is := range p.Issues {
		if is.Severity == sev {
			return true
		}
	}
	return false
}

// CrawlSettings configures one crawl run. The struct is immutable for the
// duration of the run.
type CrawlSettings struct {
	SeedURL        string
	MaxPages       int
	MaxConcurrent  int
	Timeout        time.Duration
	Delay          time.Duration
	UserAgent      string
	RespectRobots  bool
	FollowExternal bool
}

// Validate rejects settings that would produce a degenerate run.
func (s CrawlSettings) Validate() error {
	if s.SeedURL == "" {
		return fmt.Errorf("%w: seed url must be set", ErrInvalidSettings)
	}
	if s.MaxPages <= 0 {
		return fmt.Errorf("%w: max pages must be > 0", ErrInvalidSettings)
	}
	if s.MaxConcurrent <= 0 {
		return fmt.Errorf("%w: max concurrent fetches must be > 0", ErrInvalidSettings)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be > 0", ErrInvalidSettings)
	}
	if s.Delay < 0 {
		return fmt.Errorf("%w: delay must be >= 0", ErrInvalidSettings)
	}
	return nil
}

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

// Run status values.
const (
	RunInProgress RunStatus = "in_progress"
	RunCompleted  RunStatus = "completed"
	RunFailed     RunStatus = "failed"
)

// CrawlRun is the metadata for one execution of the scheduler, created at
// crawl start and finalized exactly once at crawl end.
type CrawlRun struct {
	ID             string           `json:"id"`
	SeedURL        string           `json:"seed_url"`
	Status         RunStatus        `json:"status"`
	Started        time.Time        `json:"started_at"`
	Finished       time.Time        `json:"finished_at,omitzero"`
	TotalPages     int              `json:"total_pages"`
	CrawledPages   int              `json:"crawled_pages"`
	IndexablePages int              `json:"indexable_pages"`
	SiteScore      int              `json:"site_score"`
	IssueCounts    map[Severity]int `json:"issue_counts,omitempty"`
	Reason         string           `json:"reason,omitempty"`
}

// AuditSummary is the sitewide roll-up over one run's page records. Issues
// holds every distinct (category, type) pair ranked by urgency and reach;
// TopIssues is the first ten of those.
type AuditSummary struct {
	SiteScore      int                         `json:"site_score"`
	CrawledPages   int                         `json:"crawled_pages"`
	IndexablePages int                         `json:"indexable_pages"`
	IssuesCount    map[Severity]int            `json:"issues_count"`
	Categories     map[string]map[Severity]int `json:"categories"`
	Issues         []Issue                     `json:"-"`
	TopIssues      []Issue                     `json:"top_issues"`
}

// FetchResponse is the raw outcome of one successful HTTP fetch. URL holds
// the final location after redirects.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentType returns the response Content-Type header.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}

// Notification is handed to the notification collaborator when a run
// reaches a terminal state.
type Notification struct {
	Run     CrawlRun     `json:"run"`
	Summary AuditSummary `json:"summary"`
}
