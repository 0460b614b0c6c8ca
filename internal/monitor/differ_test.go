package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seoscope/siteaudit/internal/audit"
)

func baselinePage(wordCount int) audit.PageRecord {
	return audit.PageRecord{
		URL:             "https://example.com/page",
		StatusCode:      200,
		Title:           "A good page title",
		MetaDescription: "The original meta description of the monitored page.",
		H1:              []string{"Heading"},
		WordCount:       wordCount,
	}
}

func TestDiffContentThreshold(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(1000)

	// 5% drop stays under the 10% threshold.
	fresh := baseline
	fresh.WordCount = 950
	diff := Diff(baseline, fresh)
	assert.Nil(t, diff.Content)
	assert.False(t, diff.Changed())

	// 20% drop is reported with the signed percentage.
	fresh.WordCount = 800
	diff = Diff(baseline, fresh)
	require.NotNil(t, diff.Content)
	assert.Equal(t, 1000, diff.Content.OldWordCount)
	assert.Equal(t, 800, diff.Content.NewWordCount)
	assert.InDelta(t, -20.0, diff.Content.ChangePct, 0.001)
	assert.True(t, diff.Changed())
}

func TestDiffContentGrowth(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(400)
	fresh := baseline
	fresh.WordCount = 500
	diff := Diff(baseline, fresh)
	require.NotNil(t, diff.Content)
	assert.InDelta(t, 25.0, diff.Content.ChangePct, 0.001)
}

func TestDiffPercentageRounding(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(300)
	fresh := baseline
	fresh.WordCount = 200
	diff := Diff(baseline, fresh)
	require.NotNil(t, diff.Content)
	assert.InDelta(t, -33.33, diff.Content.ChangePct, 0.0001)
}

func TestDiffZeroBaselineNeverReportsContent(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(0)
	fresh := baseline
	fresh.WordCount = 500
	diff := Diff(baseline, fresh)
	assert.Nil(t, diff.Content)
}

func TestDiffStatusChange(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(100)
	fresh := baseline
	fresh.StatusCode = 503
	diff := Diff(baseline, fresh)
	require.NotNil(t, diff.Status)
	assert.Equal(t, 200, diff.Status.Old)
	assert.Equal(t, 503, diff.Status.New)
}

func TestDiffMetaChanges(t *testing.T) {
	t.Parallel()

	baseline := baselinePage(100)
	fresh := baseline
	fresh.Title = "A different page title"
	fresh.H1 = []string{"New heading"}
	diff := Diff(baseline, fresh)

	require.Len(t, diff.Meta, 2)
	assert.Equal(t, "title", diff.Meta[0].Field)
	assert.Equal(t, "A good page title", diff.Meta[0].Old)
	assert.Equal(t, "A different page title", diff.Meta[0].New)
	assert.Equal(t, "h1", diff.Meta[1].Field)
}

func TestDiffIgnoresEmptyFreshValues(t *testing.T) {
	t.Parallel()

	// A failed fetch produces empty fields; that must not read as a wipe
	// of every meta value.
	baseline := baselinePage(100)
	fresh := audit.PageRecord{URL: baseline.URL, StatusCode: 0}
	diff := Diff(baseline, fresh)

	assert.Empty(t, diff.Meta)
	require.NotNil(t, diff.Status)
	assert.Equal(t, 0, diff.Status.New)
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		diffs []PageDiff
		want  SiteStatus
	}{
		{"no diffs", nil, StatusUp},
		{"unchanged pages", []PageDiff{{URL: "https://example.com/"}}, StatusUp},
		{
			"meta change only",
			[]PageDiff{{URL: "https://example.com/", Meta: []MetaChange{{Field: "title"}}}},
			StatusIssues,
		},
		{
			"server error",
			[]PageDiff{
				{URL: "https://example.com/a", Meta: []MetaChange{{Field: "title"}}},
				{URL: "https://example.com/b", Status: &StatusChange{Old: 200, New: 500}},
			},
			StatusDown,
		},
		{
			"client error is an issue not an outage",
			[]PageDiff{{URL: "https://example.com/", Status: &StatusChange{Old: 200, New: 404}}},
			StatusIssues,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, DeriveStatus(tc.diffs))
		})
	}
}
