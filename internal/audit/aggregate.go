package audit

import (
	"math"
	"sort"
)

const topIssueLimit = 10

// Penalty weights for the share of pages carrying critical or warning
// issues. Kept from the product's original scoring model.
const (
	criticalPenaltyWeight = 30
	warningPenaltyWeight  = 15
)

// Aggregate rolls one run's page records up into a sitewide summary. It is a
// pure single-threaded computation over an already-closed collection.
func Aggregate(pages []PageRecord) AuditSummary {
	summary := AuditSummary{
		CrawledPages: len(pages),
		IssuesCount: map[Severity]int{
			SeverityCritical:    0,
			SeverityWarning:     0,
			SeverityOpportunity: 0,
			SeverityNotice:      0,
		},
		Categories: make(map[string]map[Severity]int),
	}

	type rollupKey struct {
		category  string
		issueType string
	}
	rollups := make(map[rollupKey]*Issue)
	var order []rollupKey

	for _, page := range pages {
		if page.Indexable {
			summary.IndexablePages++
		}
		for _, is := range page.Issues {
			summary.IssuesCount[is.Severity]++

			if summary.Categories[is.Category] == nil {
				summary.Categories[is.Category] = make(map[Severity]int)
			}
			summary.Categories[is.Category][is.Severity]++

			key := rollupKey{category: is.Category, issueType: is.Type}
			if existing, ok := rollups[key]; ok {
				existing.AffectedPages++
				continue
			}
			rolled := is
			rolled.AffectedPages = 1
			rollups[key] = &rolled
			order = append(order, key)
		}
	}

	// Rank critical/warning issues ahead of the rest, then by reach. The
	// sort is stable so ties keep first-seen order and output stays
	// reproducible across runs over the same pages.
	top := make([]Issue, 0, len(order))
	for _, key := range order {
		top = append(top, *rollups[key])
	}
	sort.SliceStable(top, func(i, j int) bool {
		ui, uj := isUrgent(top[i].Severity), isUrgent(top[j].Severity)
		if ui != uj {
			return ui
		}
		return top[i].AffectedPages > top[j].AffectedPages
	})
	summary.Issues = top
	if len(top) > topIssueLimit {
		top = top[:topIssueLimit]
	}
	summary.TopIssues = top

	summary.SiteScore = siteScore(pages, summary.IndexablePages)
	return summary
}

// ApplySummary copies the aggregate results into the run metadata.
func (r *CrawlRun) ApplySummary(s AuditSummary) {
	r.TotalPages = s.CrawledPages
	r.CrawledPages = s.CrawledPages
	r.IndexablePages = s.IndexablePages
	r.SiteScore = s.SiteScore
	r.IssueCounts = s.IssuesCount
}

func isUrgent(sev Severity) bool {
	return sev == SeverityCritical || sev == SeverityWarning
}

// siteScore averages indexable page scores, then penalizes by the fraction
// of pages carrying critical or warning issues. Result is clamped to
// [0,100] and rounded to the nearest integer.
func siteScore(pages []PageRecord, indexable int) int {
	if len(pages) == 0 || indexable == 0 {
		return 0
	}

	var scoreSum, criticalPages, warningPages int
	for _, page := range pages {
		if page.Indexable {
			scoreSum += page.Score
		}
		if page.HasSeverity(SeverityCritical) {
			criticalPages++
		}
		if page.HasSeverity(SeverityWarning) {
			warningPages++
		}
	}

	avg := float64(scoreSum) / float64(indexable)
	total := float64(len(pages))
	score := avg -
		criticalPenaltyWeight*float64(criticalPages)/total -
		warningPenaltyWeight*float64(warningPages)/total

	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
