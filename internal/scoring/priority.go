package scoring

import (
	"math"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/trends"
)

// Priority weights. They must sum to 1.
const (
	WeightTraffic   = 0.40
	WeightGrowth    = 0.25
	WeightSearch    = 0.20
	WeightDiscovery = 0.15
)

// Priority levels.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Priority term names used in PriorityScore.Components.
const (
	TermTraffic   = "traffic"
	TermGrowth    = "growth"
	TermSearch    = "search_behavior"
	TermDiscovery = "discovery"
)

// PriorityScore ranks how much attention a page deserves.
type PriorityScore struct {
	Total      float64            `json:"total"`
	Level      string             `json:"level"`
	Components map[string]float64 `json:"components"`
}

// Priority weighs traffic volume, growth, search position and discovery.
// Terms fall back to NeutralScore when their inputs are missing, except the
// traffic term which is 0 when no traffic is known.
func Priority(search, behavior analytics.Snapshot, searchTrends, behaviorTrends map[string]trends.Delta) PriorityScore {
	components := map[string]float64{
		TermTraffic:   trafficTerm(search, behavior),
		TermGrowth:    growthTerm(searchTrends, behaviorTrends),
		TermSearch:    searchBehaviorTerm(search),
		TermDiscovery: discoveryTerm(behavior),
	}

	total := WeightTraffic*components[TermTraffic] +
		WeightGrowth*components[TermGrowth] +
		WeightSearch*components[TermSearch] +
		WeightDiscovery*components[TermDiscovery]
	total = round1(clamp(total))

	return PriorityScore{
		Total:      total,
		Level:      PriorityLevel(total),
		Components: components,
	}
}

// PriorityLevel buckets a priority total.
func PriorityLevel(total float64) string {
	switch {
	case total >= 70:
		return PriorityHigh
	case total >= 40:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// trafficTerm is log-scaled so 10 000 page views (or clicks) reach 100.
func trafficTerm(search, behavior analytics.Snapshot) float64 {
	var volume float64
	switch {
	case behavior.HasBehavior() && behavior.Behavior.PageViews > 0:
		volume = behavior.Behavior.PageViews
	case search.HasSearch():
		volume = search.Search.Clicks
	default:
		return 0
	}
	return clamp(math.Log10(volume+1) * 25)
}

func growthTerm(searchTrends, behaviorTrends map[string]trends.Delta) float64 {
	if d, ok := behaviorTrends[analytics.MetricPageViews]; ok {
		return clamp(50 + d.PercentChange/2)
	}
	if d, ok := searchTrends[analytics.MetricClicks]; ok {
		return clamp(50 + d.PercentChange/2)
	}
	return NeutralScore
}

// searchBehaviorTerm favours pages just off the first results where a small
// improvement moves the most traffic.
func searchBehaviorTerm(search analytics.Snapshot) float64 {
	if !search.HasSearch() {
		return NeutralScore
	}
	pos := search.Search.Position
	switch {
	case pos < 4:
		return 40
	case pos <= 10:
		return 100
	case pos <= 20:
		return 70
	default:
		return 30
	}
}

func discoveryTerm(behavior analytics.Snapshot) float64 {
	if !behavior.HasBehavior() || behavior.Behavior.PageViews <= 0 {
		return NeutralScore
	}
	return clamp(behavior.Behavior.Sessions / behavior.Behavior.PageViews * 100)
}
