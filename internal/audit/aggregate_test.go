package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexablePage(url string, score int, issues ...Issue) PageRecord {
	return PageRecord{URL: url, StatusCode: 200, Indexable: true, Score: score, Issues: issues}
}

func TestAggregateSiteScore(t *testing.T) {
	t.Parallel()

	// 10 indexable pages averaging 80, 2 with a critical issue, 3 with a
	// warning issue: 80 - 30*0.2 - 15*0.3 = 69.5 rounds to 70.
	critical := Issue{Type: "missing_title", Severity: SeverityCritical, Category: "content"}
	warning := Issue{Type: "missing_h1", Severity: SeverityWarning, Category: "content"}

	var pages []PageRecord
	for i := 0; i < 2; i++ {
		pages = append(pages, indexablePage(fmt.Sprintf("https://example.com/c%d", i), 80, critical))
	}
	for i := 0; i < 3; i++ {
		pages = append(pages, indexablePage(fmt.Sprintf("https://example.com/w%d", i), 80, warning))
	}
	for i := 0; i < 5; i++ {
		pages = append(pages, indexablePage(fmt.Sprintf("https://example.com/p%d", i), 80))
	}

	summary := Aggregate(pages)
	assert.Equal(t, 70, summary.SiteScore)
	assert.Equal(t, 10, summary.CrawledPages)
	assert.Equal(t, 10, summary.IndexablePages)
	assert.Equal(t, 2, summary.IssuesCount[SeverityCritical])
	assert.Equal(t, 3, summary.IssuesCount[SeverityWarning])
	assert.Equal(t, 0, summary.IssuesCount[SeverityNotice])
}

func TestAggregateEmpty(t *testing.T) {
	t.Parallel()

	summary := Aggregate(nil)
	assert.Equal(t, 0, summary.SiteScore)
	assert.Equal(t, 0, summary.CrawledPages)
	assert.Empty(t, summary.TopIssues)
	assert.Equal(t, 0, summary.IssuesCount[SeverityCritical])
}

func TestAggregateNoIndexablePages(t *testing.T) {
	t.Parallel()

	pages := []PageRecord{
		{URL: "https://example.com/a", StatusCode: 404, Issues: []Issue{
			{Type: "http_error:404", Severity: SeverityCritical, Category: "availability"},
		}},
	}
	summary := Aggregate(pages)
	assert.Equal(t, 0, summary.SiteScore)
	assert.Equal(t, 0, summary.IndexablePages)
}

func TestAggregateTopIssueOrdering(t *testing.T) {
	t.Parallel()

	notice := Issue{Type: "meta_description_too_short", Severity: SeverityNotice, Category: "content"}
	warning := Issue{Type: "missing_h1", Severity: SeverityWarning, Category: "content"}
	critical := Issue{Type: "missing_title", Severity: SeverityCritical, Category: "content"}

	// The notice touches the most pages but urgent severities still rank
	// ahead of it; within urgent, reach decides.
	pages := []PageRecord{
		indexablePage("https://example.com/1", 85, notice, warning),
		indexablePage("https://example.com/2", 85, notice, warning),
		indexablePage("https://example.com/3", 85, notice, warning),
		indexablePage("https://example.com/4", 90, notice, critical),
		indexablePage("https://example.com/5", 95, notice),
	}
	summary := Aggregate(pages)

	require.Len(t, summary.TopIssues, 3)
	assert.Equal(t, "missing_h1", summary.TopIssues[0].Type)
	assert.Equal(t, 3, summary.TopIssues[0].AffectedPages)
	assert.Equal(t, "missing_title", summary.TopIssues[1].Type)
	assert.Equal(t, 1, summary.TopIssues[1].AffectedPages)
	assert.Equal(t, "meta_description_too_short", summary.TopIssues[2].Type)
	assert.Equal(t, 5, summary.TopIssues[2].AffectedPages)
}

func TestAggregateTopIssueLimit(t *testing.T) {
	t.Parallel()

	var page PageRecord
	page.URL = "https://example.com/"
	page.Indexable = true
	for i := 0; i < 15; i++ {
		page.Issues = append(page.Issues, Issue{
			Type:     fmt.Sprintf("issue_%d", i),
			Severity: SeverityNotice,
			Category: "content",
		})
	}
	summary := Aggregate([]PageRecord{page})

	assert.Len(t, summary.Issues, 15)
	assert.Len(t, summary.TopIssues, 10)
}

func TestAggregateCategories(t *testing.T) {
	t.Parallel()

	pages := []PageRecord{
		indexablePage("https://example.com/a", 90,
			Issue{Type: "missing_title", Severity: SeverityCritical, Category: "content"}),
		{URL: "https://example.com/b", Issues: []Issue{
			{Type: "timeout", Severity: SeverityCritical, Category: "availability"},
		}},
	}
	summary := Aggregate(pages)

	assert.Equal(t, 1, summary.Categories["content"][SeverityCritical])
	assert.Equal(t, 1, summary.Categories["availability"][SeverityCritical])
}

func TestApplySummary(t *testing.T) {
	t.Parallel()

	run := CrawlRun{ID: "run-1", Status: RunCompleted}
	summary := AuditSummary{
		SiteScore:      82,
		CrawledPages:   4,
		IndexablePages: 3,
		IssuesCount:    map[Severity]int{SeverityWarning: 2},
	}
	run.ApplySummary(summary)

	assert.Equal(t, 4, run.TotalPages)
	assert.Equal(t, 4, run.CrawledPages)
	assert.Equal(t, 3, run.IndexablePages)
	assert.Equal(t, 82, run.SiteScore)
	assert.Equal(t, 2, run.IssueCounts[SeverityWarning])
}
