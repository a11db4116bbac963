// Package scoring folds search and behavior snapshots into composite quality
// scores, a priority score, benchmark classes and anomaly flags.
//
// Every function degrades on absent data: a component whose inputs are
// missing contributes NeutralScore instead of failing the report.
package scoring

import (
	"math"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
)

// NeutralScore is the contribution of any component whose snapshot is absent
// or not found.
const NeutralScore = 50.0

const (
	// ReferenceSessionDuration is the session length, in seconds, that earns a
	// full duration term.
	ReferenceSessionDuration = 180.0
	// ReferencePagesPerSession earns a full pages-per-session term.
	ReferencePagesPerSession = 3.0
)

// Component names used in CompositeScore.Components.
const (
	ComponentSearch     = "search"
	ComponentEngagement = "engagement"
	ComponentRelevance  = "relevance"
	ComponentUX         = "ux"
)

// CompositeScore is the page quality score with its parts.
type CompositeScore struct {
	Total      float64            `json:"total"`
	Components map[string]float64 `json:"components"`
	Grade      string             `json:"grade"`
	Label      string             `json:"label"`
}

// grades are checked in order; the first band whose minimum is met wins.
var grades = []struct {
	min   float64
	grade string
	label string
}{
	{85, "A", "excellent"},
	{75, "B", "good"},
	{65, "C", "fair"},
	{55, "D", "needs_work"},
	{0, "F", "poor"},
}

// Grade maps a 0-100 total to a letter grade and label.
func Grade(total float64) (grade, label string) {
	for _, g := range grades {
		if total >= g.min {
			return g.grade, g.label
		}
	}
	last := grades[len(grades)-1]
	return last.grade, last.label
}

// SearchScore blends a position term (100 - position*5) with a CTR term
// (ctr*1000), weighted 0.6 and 0.4.
func SearchScore(m *analytics.SearchMetrics) float64 {
	if m == nil {
		return NeutralScore
	}
	positionTerm := clamp(100 - m.Position*5)
	ctrTerm := clamp(m.CTR * 1000)
	return clamp(0.6*positionTerm + 0.4*ctrTerm)
}

// EngagementScore blends a session-duration term, capped at
// ReferenceSessionDuration, with the non-bounce share.
func EngagementScore(m *analytics.BehaviorMetrics) float64 {
	if m == nil {
		return NeutralScore
	}
	duration := math.Min(math.Max(m.AvgSessionDuration, 0), ReferenceSessionDuration)
	durationTerm := duration / ReferenceSessionDuration * 100
	bounceTerm := clamp((1 - m.BounceRate) * 100)
	return clamp(0.5*durationTerm + 0.5*bounceTerm)
}

// RelevanceScore compares the observed CTR with the CTR expected at the
// page's average position. Matching the expectation scores 100.
func RelevanceScore(m *analytics.SearchMetrics) float64 {
	if m == nil {
		return NeutralScore
	}
	return clamp(m.CTR / ExpectedCTR(m.Position) * 100)
}

// UXScore blends the engagement rate with pages per session, weighted 0.7
// and 0.3.
func UXScore(m *analytics.BehaviorMetrics) float64 {
	if m == nil {
		return NeutralScore
	}
	engagementTerm := clamp(m.EngagementRate * 100)
	pagesTerm := math.Min(math.Max(m.PagesPerSession, 0)/ReferencePagesPerSession, 1) * 100
	return clamp(0.7*engagementTerm + 0.3*pagesTerm)
}

// expectedCTR is the typical organic click-through rate by rounded position.
var expectedCTR = []float64{
	1:  0.28,
	2:  0.15,
	3:  0.10,
	4:  0.07,
	5:  0.05,
	6:  0.04,
	7:  0.03,
	8:  0.025,
	9:  0.02,
	10: 0.018,
}

// ExpectedCTR returns the typical click-through rate at an average position.
// Positions below 1 count as 1.
func ExpectedCTR(position float64) float64 {
	rank := int(math.Round(position))
	switch {
	case rank < 1:
		return expectedCTR[1]
	case rank < len(expectedCTR):
		return expectedCTR[rank]
	case rank <= 20:
		return 0.01
	default:
		return 0.005
	}
}

// Composite scores a page from its two snapshots. A snapshot that is not
// found, or lacks its metric block, contributes NeutralScore to each
// component derived from it.
func Composite(search, behavior analytics.Snapshot) CompositeScore {
	var sm *analytics.SearchMetrics
	if search.HasSearch() {
		sm = search.Search
	}
	var bm *analytics.BehaviorMetrics
	if behavior.HasBehavior() {
		bm = behavior.Behavior
	}

	components := map[string]float64{
		ComponentSearch:     SearchScore(sm),
		ComponentEngagement: EngagementScore(bm),
		ComponentRelevance:  RelevanceScore(sm),
		ComponentUX:         UXScore(bm),
	}

	var sum float64
	for _, v := range components {
		sum += v
	}
	total := round1(clamp(sum / float64(len(components))))
	grade, label := Grade(total)

	return CompositeScore{
		Total:      total,
		Components: components,
		Grade:      grade,
		Label:      label,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
