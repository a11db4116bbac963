package analytics

import (
	"time"
)

// Source identifiers used as the first half of every cache key.
const (
	SourceSearch   = "search"
	SourceBehavior = "behavior"
)

// MaxQueryRows bounds the number of query rows a snapshot carries.
const MaxQueryRows = 25

// Metric names as exposed by Snapshot.Values. These strings are part of the
// report format consumed by the dashboard and must stay stable.
const (
	MetricClicks             = "clicks"
	MetricImpressions        = "impressions"
	MetricCTR                = "ctr"
	MetricPosition           = "position"
	MetricUsers              = "users"
	MetricSessions           = "sessions"
	MetricPageViews          = "page_views"
	MetricBounceRate         = "bounce_rate"
	MetricAvgSessionDuration = "avg_session_duration"
	MetricEngagementRate     = "engagement_rate"
	MetricPagesPerSession    = "pages_per_session"
)

// Snapshot is the metric set one backend returned for one page.
//
// The core (Source, Found, CapturedAt) is always set. Exactly one of Search or
// Behavior is populated on a found snapshot; a not-found snapshot carries no
// metric blocks and no extensions.
type Snapshot struct {
	Source     string    `json:"source"`
	Found      bool      `json:"found"`
	CapturedAt time.Time `json:"captured_at"`
	MatchedURL string    `json:"matched_url,omitempty"`
	Attempts   int       `json:"attempts,omitempty"`
	Reason     string    `json:"reason,omitempty"`

	Search   *SearchMetrics   `json:"search_metrics,omitempty"`
	Behavior *BehaviorMetrics `json:"behavior_metrics,omitempty"`

	Queries        []QueryRow      `json:"queries,omitempty"`
	TrafficSources []TrafficSource `json:"traffic_sources,omitempty"`
	Countries      []CountryShare  `json:"countries,omitempty"`

	// Previous holds the comparison-period values for the same page.
	Previous *Snapshot `json:"previous,omitempty"`
}

// SearchMetrics is the primary block of the search-performance source.
type SearchMetrics struct {
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// BehaviorMetrics is the primary block of the user-behavior source.
// BounceRate and EngagementRate are fractions in [0,1]; AvgSessionDuration is
// in seconds.
type BehaviorMetrics struct {
	Users              float64 `json:"users"`
	Sessions           float64 `json:"sessions"`
	PageViews          float64 `json:"page_views"`
	BounceRate         float64 `json:"bounce_rate"`
	AvgSessionDuration float64 `json:"avg_session_duration"`
	EngagementRate     float64 `json:"engagement_rate"`
	PagesPerSession    float64 `json:"pages_per_session"`
}

// QueryRow is one search query that led to the page.
type QueryRow struct {
	Query       string  `json:"query"`
	Clicks      float64 `json:"clicks"`
	Impressions float64 `json:"impressions"`
	CTR         float64 `json:"ctr"`
	Position    float64 `json:"position"`
}

// TrafficSource is a session count per acquisition channel.
type TrafficSource struct {
	Channel  string  `json:"channel"`
	Sessions float64 `json:"sessions"`
}

// CountryShare is a user count per country.
type CountryShare struct {
	Country string  `json:"country"`
	Users   float64 `json:"users"`
}

// NotFound builds the snapshot returned when a page could not be matched.
func NotFound(source, reason string, attempts int) Snapshot {
	return Snapshot{
		Source:     source,
		Found:      false,
		CapturedAt: time.Now().UTC(),
		Attempts:   attempts,
		Reason:     reason,
	}
}

// Normalize enforces the shape invariants: a not-found snapshot loses every
// metric block, and query rows are capped at MaxQueryRows.
func (s Snapshot) Normalize() Snapshot {
	if !s.Found {
		s.Search = nil
		s.Behavior = nil
		s.Queries = nil
		s.TrafficSources = nil
		s.Countries = nil
		s.Previous = nil
		return s
	}
	if len(s.Queries) > MaxQueryRows {
		s.Queries = append([]QueryRow(nil), s.Queries[:MaxQueryRows]...)
	}
	if s.Previous != nil {
		prev := *s.Previous
		prev.Found = true
		prev.Previous = nil
		if len(prev.Queries) > MaxQueryRows {
			prev.Queries = append([]QueryRow(nil), prev.Queries[:MaxQueryRows]...)
		}
		s.Previous = &prev
	}
	return s
}

// Values returns the present metrics keyed by their stable names.
// A not-found snapshot yields an empty map.
func (s Snapshot) Values() map[string]float64 {
	values := make(map[string]float64)
	if !s.Found {
		return values
	}
	if m := s.Search; m != nil {
		values[MetricClicks] = m.Clicks
		values[MetricImpressions] = m.Impressions
		values[MetricCTR] = m.CTR
		values[MetricPosition] = m.Position
	}
	if m := s.Behavior; m != nil {
		values[MetricUsers] = m.Users
		values[MetricSessions] = m.Sessions
		values[MetricPageViews] = m.PageViews
		values[MetricBounceRate] = m.BounceRate
		values[MetricAvgSessionDuration] = m.AvgSessionDuration
		values[MetricEngagementRate] = m.EngagementRate
		values[MetricPagesPerSession] = m.PagesPerSession
	}
	return values
}

// HasSearch reports whether s is a found snapshot with search metrics.
func (s Snapshot) HasSearch() bool {
	return s.Found && s.Search != nil
}

// HasBehavior reports whether s is a found snapshot with behavior metrics.
func (s Snapshot) HasBehavior() bool {
	return s.Found && s.Behavior != nil
}
