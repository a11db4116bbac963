package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotFound(t *testing.T) {
	snap := NotFound(SourceSearch, "exhausted", 7)

	assert.Equal(t, SourceSearch, snap.Source)
	assert.False(t, snap.Found)
	assert.Equal(t, 7, snap.Attempts)
	assert.Equal(t, "exhausted", snap.Reason)
	assert.False(t, snap.CapturedAt.IsZero())
	assert.Empty(t, snap.Values())
}

func TestNormalize_NotFoundDropsMetrics(t *testing.T) {
	snap := Snapshot{
		Source:   SourceBehavior,
		Found:    false,
		Behavior: &BehaviorMetrics{Sessions: 10},
		Queries:  []QueryRow{{Query: "x"}},
		Previous: &Snapshot{Found: true},
	}

	got := snap.Normalize()

	assert.Nil(t, got.Behavior)
	assert.Nil(t, got.Queries)
	assert.Nil(t, got.Previous)
}

func TestNormalize_CapsQueries(t *testing.T) {
	rows := make([]QueryRow, MaxQueryRows+10)
	snap := Snapshot{
		Found:    true,
		Search:   &SearchMetrics{Clicks: 1},
		Queries:  rows,
		Previous: &Snapshot{Search: &SearchMetrics{Clicks: 2}, Queries: rows, Previous: &Snapshot{}},
	}

	got := snap.Normalize()

	assert.Len(t, got.Queries, MaxQueryRows)
	require.NotNil(t, got.Previous)
	assert.True(t, got.Previous.Found)
	assert.Nil(t, got.Previous.Previous)
	assert.Len(t, got.Previous.Queries, MaxQueryRows)
}

func TestValues(t *testing.T) {
	search := Snapshot{Found: true, Search: &SearchMetrics{Clicks: 50, Impressions: 2000, CTR: 0.025, Position: 12}}
	behavior := Snapshot{Found: true, Behavior: &BehaviorMetrics{Sessions: 30, PageViews: 45, BounceRate: 0.4}}

	sv := search.Values()
	assert.Len(t, sv, 4)
	assert.Equal(t, 50.0, sv[MetricClicks])
	assert.Equal(t, 12.0, sv[MetricPosition])

	bv := behavior.Values()
	assert.Len(t, bv, 7)
	assert.Equal(t, 45.0, bv[MetricPageViews])
	assert.Equal(t, 0.4, bv[MetricBounceRate])

	assert.True(t, search.HasSearch())
	assert.False(t, search.HasBehavior())
	assert.True(t, behavior.HasBehavior())
}
