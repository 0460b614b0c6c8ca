// Package analyzer turns one fetch outcome into a structured page record:
// extracted SEO signals, the outbound link graph, an issue list, and a
// per-page score.
package analyzer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/seoscope/siteaudit/internal/audit"
	"github.com/seoscope/siteaudit/internal/urlutil"
)

// Issue thresholds preserved from the product's original heuristics.
const (
	titleMinLen    = 10
	titleMaxLen    = 60
	metaDescMinLen = 50
	metaDescMaxLen = 160
)

// Issue categories emitted by the analyzer.
const (
	categoryContent      = "content"
	categoryAvailability = "availability"
)

const scorePerIssue = 5

// Analyzer computes page records. It holds no per-page state and is safe
// for concurrent use by crawl workers.
type Analyzer struct {
	clock  audit.Clock
	logger *zap.Logger
}

// New constructs an Analyzer.
func New(clock audit.Clock, logger *zap.Logger) *Analyzer {
	return &Analyzer{clock: clock, logger: logger}
}

// Analyze builds the PageRecord for one URL. A fetch failure or non-2xx
// status yields a non-indexable record with exactly one critical issue; a
// non-HTML body yields a notice and skips link extraction. The result is
// deterministic for identical input.
func (a *Analyzer) Analyze(pageURL string, resp audit.FetchResponse, fetchErr error) audit.PageRecord {
	rec := audit.PageRecord{
		URL:       pageURL,
		FetchedAt: a.clock.Now(),
	}

	if fetchErr != nil {
		issueType := classifyFetchError(fetchErr)
		rec.Issues = []audit.Issue{{
			Type:        issueType,
			Severity:    audit.SeverityCritical,
			Category:    categoryAvailability,
			Description: fmt.Sprintf("fetching %s failed: %v", pageURL, fetchErr),
		}}
		return rec
	}

	rec.StatusCode = resp.StatusCode
	rec.ContentType = resp.ContentType()
	rec.SizeBytes = len(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rec.Issues = []audit.Issue{{
			Type:        fmt.Sprintf("http_error:%d", resp.StatusCode),
			Severity:    audit.SeverityCritical,
			Category:    categoryAvailability,
			Description: fmt.Sprintf("page returned HTTP status %d", resp.StatusCode),
		}}
		return rec
	}

	if !strings.Contains(strings.ToLower(rec.ContentType), "text/html") {
		rec.Issues = []audit.Issue{{
			Type:        "not_html",
			Severity:    audit.SeverityNotice,
			Category:    categoryContent,
			Description: fmt.Sprintf("not an HTML page: %s", rec.ContentType),
		}}
		return rec
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		// Conservative fallback: keep the page out of the index rather
		// than guessing at its structure.
		a.logger.Warn("html parse failed", zap.String("url", pageURL), zap.Error(err))
		rec.Issues = []audit.Issue{{
			Type:        "invalid_html",
			Severity:    audit.SeverityNotice,
			Category:    categoryContent,
			Description: "page body could not be parsed as HTML",
		}}
		return rec
	}

	rec.Title = strings.TrimSpace(doc.Find("title").First().Text())
	rec.MetaDescription = attrContent(doc, `meta[name="description"]`)
	rec.MetaRobots = attrContent(doc, `meta[name="robots"]`)
	rec.CanonicalURL = strings.TrimSpace(doc.Find(`link[rel="canonical"]`).First().AttrOr("href", ""))
	doc.Find("h1").Each(func(_ int, h *goquery.Selection) {
		rec.H1 = append(rec.H1, strings.TrimSpace(h.Text()))
	})

	base := resolveBase(resp.URL, pageURL)
	rec.InternalLinks, rec.ExternalLinks = extractLinks(doc, base)
	rec.WordCount = countWords(doc)
	rec.Indexable = isIndexable(rec.MetaRobots, rec.CanonicalURL, base, pageURL)
	rec.Issues = contentIssues(rec)

	score := 100 - scorePerIssue*len(rec.Issues)
	if score < 0 {
		score = 0
	}
	rec.Score = score
	return rec
}

// contentIssues applies the fixed per-field rules. Each condition produces
// at most one issue, so a page yields a deterministic issue list.
func contentIssues(rec audit.PageRecord) []audit.Issue {
	var issues []audit.Issue
	add := func(issueType string, sev audit.Severity, desc string) {
		issues = append(issues, audit.Issue{
			Type:        issueType,
			Severity:    sev,
			Category:    categoryContent,
			Description: desc,
		})
	}

	switch titleLen := len(rec.Title); {
	case titleLen == 0:
		add("missing_title", audit.SeverityCritical, "page has no title tag")
	case titleLen < titleMinLen:
		add("title_too_short", audit.SeverityWarning,
			fmt.Sprintf("page title is shorter than %d characters", titleMinLen))
	case titleLen > titleMaxLen:
		add("title_too_long", audit.SeverityWarning,
			fmt.Sprintf("page title is longer than %d characters", titleMaxLen))
	}

	switch descLen := len(rec.MetaDescription); {
	case descLen == 0:
		add("missing_meta_description", audit.SeverityWarning, "page has no meta description")
	case descLen < metaDescMinLen:
		add("meta_description_too_short", audit.SeverityNotice,
			fmt.Sprintf("meta description is shorter than %d characters", metaDescMinLen))
	case descLen > metaDescMaxLen:
		add("meta_description_too_long", audit.SeverityNotice,
			fmt.Sprintf("meta description is longer than %d characters", metaDescMaxLen))
	}

	switch h1Count := len(rec.H1); {
	case h1Count == 0:
		add("missing_h1", audit.SeverityWarning, "page has no H1 heading")
	case h1Count > 1:
		add("multiple_h1", audit.SeverityWarning,
			fmt.Sprintf("page has %d H1 headings", h1Count))
	}

	return issues
}

func attrContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}

// resolveBase prefers the post-redirect URL so relative links and canonical
// hrefs resolve against the page the server actually delivered.
func resolveBase(finalURL, pageURL string) *url.URL {
	if u, err := url.Parse(finalURL); err == nil && u.Host != "" {
		return u
	}
	u, err := url.Parse(pageURL)
	if err != nil {
		return &url.URL{}
	}
	return u
}

func extractLinks(doc *goquery.Document, base *url.URL) (internal, external []audit.Link) {
	pageDomain := strings.TrimPrefix(strings.ToLower(base.Hostname()), "www.")

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		normalized, err := urlutil.Normalize(base.ResolveReference(ref).String())
		if err != nil {
			return
		}
		link := audit.Link{
			URL:      normalized,
			Text:     strings.TrimSpace(sel.Text()),
			NoFollow: strings.Contains(sel.AttrOr("rel", ""), "nofollow"),
		}
		if urlutil.IsInternal(normalized, pageDomain) {
			internal = append(internal, link)
		} else {
			external = append(external, link)
		}
	})
	return internal, external
}

// countWords counts visible words, with script and style text excluded.
func countWords(doc *goquery.Document) int {
	visible := doc.Selection.Clone()
	visible.Find("script, style").Remove()
	return len(strings.Fields(visible.Text()))
}

func isIndexable(metaRobots, canonical string, base *url.URL, pageURL string) bool {
	if strings.Contains(strings.ToLower(metaRobots), "noindex") {
		return false
	}
	if canonical == "" {
		return true
	}
	ref, err := url.Parse(canonical)
	if err != nil {
		return true
	}
	canonicalNorm, err := urlutil.Normalize(base.ResolveReference(ref).String())
	if err != nil {
		return true
	}
	pageNorm, err := urlutil.Normalize(pageURL)
	if err != nil {
		return true
	}
	return canonicalNorm == pageNorm
}

// classifyFetchError distinguishes a timeout from every other transport
// failure for issue typing.
func classifyFetchError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout"
	}
	return "fetch_error"
}
