// Package monitor compares a previously audited page against a fresh fetch
// and reports what changed.
package monitor

import (
	"math"

	"github.com/seoscope/siteaudit/internal/audit"
)

// Word counts may drift slightly between fetches (ads, timestamps); only
// swings beyond this fraction of the baseline count as a content change.
const contentChangeThreshold = 0.10

// SiteStatus summarizes the health of a monitored site.
type SiteStatus string

const (
	// StatusUp means no monitored page changed.
	StatusUp SiteStatus = "up"
	// StatusIssues means at least one page changed but the site is serving.
	StatusIssues SiteStatus = "issues"
	// StatusDown means at least one page started returning a 5xx status.
	StatusDown SiteStatus = "down"
)

// StatusChange records an HTTP status transition between checks.
type StatusChange struct {
	Old int `json:"old"`
	New int `json:"new"`
}

// MetaChange records a difference in one extracted page field.
type MetaChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// ContentChange records a word-count swing beyond the change threshold.
type ContentChange struct {
	OldWordCount int     `json:"old_word_count"`
	NewWordCount int     `json:"new_word_count"`
	ChangePct    float64 `json:"change_pct"`
}

// PageDiff is the set of changes observed for one monitored URL.
type PageDiff struct {
	URL     string         `json:"url"`
	Status  *StatusChange  `json:"status,omitempty"`
	Meta    []MetaChange   `json:"meta,omitempty"`
	Content *ContentChange `json:"content,omitempty"`
}

// Changed reports whether any difference was recorded.
func (d PageDiff) Changed() bool {
	return d.Status != nil || len(d.Meta) > 0 || d.Content != nil
}

// Diff compares a baseline page record against a fresh analysis of the same
// URL. Meta fields are only reported when the fresh value is non-empty, so a
// failed fetch does not read as a mass content wipe.
func Diff(baseline, fresh audit.PageRecord) PageDiff {
	d := PageDiff{URL: baseline.URL}

	if fresh.StatusCode != baseline.StatusCode {
		d.Status = &StatusChange{Old: baseline.StatusCode, New: fresh.StatusCode}
	}

	d.Meta = appendMetaChange(d.Meta, "title", baseline.Title, fresh.Title)
	d.Meta = appendMetaChange(d.Meta, "meta_description", baseline.MetaDescription, fresh.MetaDescription)
	d.Meta = appendMetaChange(d.Meta, "h1", baseline.FirstH1(), fresh.FirstH1())

	if delta := fresh.WordCount - baseline.WordCount; baseline.WordCount > 0 &&
		math.Abs(float64(delta)) > contentChangeThreshold*float64(baseline.WordCount) {
		pct := float64(delta) / float64(baseline.WordCount) * 100
		d.Content = &ContentChange{
			OldWordCount: baseline.WordCount,
			NewWordCount: fresh.WordCount,
			ChangePct:    math.Round(pct*100) / 100,
		}
	}

	return d
}

func appendMetaChange(changes []MetaChange, field, old, fresh string) []MetaChange {
	if fresh == "" || fresh == old {
		return changes
	}
	return append(changes, MetaChange{Field: field, Old: old, New: fresh})
}

// DeriveStatus collapses a set of page diffs into a single site status.
func DeriveStatus(diffs []PageDiff) SiteStatus {
	status := StatusUp
	for _, d := range diffs {
		if d.Status != nil && d.Status.New >= 500 {
			return StatusDown
		}
		if d.Changed() {
			status = StatusIssues
		}
	}
	return status
}
