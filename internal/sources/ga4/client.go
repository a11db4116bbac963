// Package ga4 adapts the Analytics Data API runReport method to a probe
// adapter for the user-behavior source.
package ga4

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/sources"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the public Analytics Data API base.
const DefaultEndpoint = "https://analyticsdata.googleapis.com/v1beta"

// extensionRows bounds the traffic-source and country breakdowns.
const extensionRows = 10

// behaviorMetrics are requested in this order and decoded by position.
var behaviorMetrics = []string{
	"totalUsers",
	"sessions",
	"screenPageViews",
	"bounceRate",
	"averageSessionDuration",
	"engagementRate",
	"screenPageViewsPerSession",
}

// Config describes the property to query.
type Config struct {
	PropertyID   string
	Endpoint     string
	LookbackDays int
}

// Adapter fetches page-level behavior metrics for one property.
type Adapter struct {
	cfg    Config
	client *sources.Client
	now    func() time.Time
}

// New creates an Adapter.
func New(cfg Config, client *sources.Client) *Adapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 28
	}
	return &Adapter{
		cfg:    cfg,
		client: client,
		now:    time.Now,
	}
}

// Status reports sources.ErrNotConnected when no property or credentials are
// configured.
func (a *Adapter) Status(ctx context.Context) error {
	if a.cfg.PropertyID == "" {
		return fmt.Errorf("%w: no behavior property configured", sources.ErrNotConnected)
	}
	if a.client == nil || !a.client.Authorized() {
		return fmt.Errorf("%w: no behavior credentials", sources.ErrNotConnected)
	}
	return nil
}

type reportRequest struct {
	DateRanges      []dateRange `json:"dateRanges"`
	Dimensions      []named     `json:"dimensions,omitempty"`
	Metrics         []named     `json:"metrics"`
	DimensionFilter *filterExpr `json:"dimensionFilter,omitempty"`
	OrderBys        []orderBy   `json:"orderBys,omitempty"`
	Limit           string      `json:"limit,omitempty"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type named struct {
	Name string `json:"name"`
}

type filterExpr struct {
	Filter filter `json:"filter"`
}

type filter struct {
	FieldName    string       `json:"fieldName"`
	StringFilter stringFilter `json:"stringFilter"`
}

type stringFilter struct {
	MatchType string `json:"matchType"`
	Value     string `json:"value"`
}

type orderBy struct {
	Metric named `json:"metric"`
	Desc   bool  `json:"desc"`
}

type reportResponse struct {
	Rows     []reportRow `json:"rows"`
	RowCount int         `json:"rowCount"`
}

type reportRow struct {
	DimensionValues []value `json:"dimensionValues"`
	MetricValues    []value `json:"metricValues"`
}

type value struct {
	Value string `json:"value"`
}

// Fetch returns the behavior totals for variation over the current lookback
// window with channel and country breakdowns, and the preceding window in
// Previous. A page with no rows yields a snapshot with no behavior block.
func (a *Adapter) Fetch(ctx context.Context, variation string) (analytics.Snapshot, error) {
	if err := a.Status(ctx); err != nil {
		return analytics.Snapshot{}, err
	}
	pageFilter := a.pageFilter(variation)
	current, previous := sources.LookbackPeriods(a.now(), a.cfg.LookbackDays)
	snap := analytics.Snapshot{Source: analytics.SourceBehavior}

	totals, err := a.totals(ctx, pageFilter, current)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	if totals == nil {
		return snap, nil
	}
	snap.Behavior = totals

	logger := zerolog.Ctx(ctx)

	channels, err := a.breakdown(ctx, pageFilter, current, "sessionDefaultChannelGroup", "sessions")
	if err != nil {
		logger.Debug().Err(err).Str("page", variation).Msg("traffic sources unavailable")
	}
	for _, c := range channels {
		snap.TrafficSources = append(snap.TrafficSources, analytics.TrafficSource{Channel: c.key, Sessions: c.value})
	}

	countries, err := a.breakdown(ctx, pageFilter, current, "country", "totalUsers")
	if err != nil {
		logger.Debug().Err(err).Str("page", variation).Msg("countries unavailable")
	}
	for _, c := range countries {
		snap.Countries = append(snap.Countries, analytics.CountryShare{Country: c.key, Users: c.value})
	}

	prevTotals, err := a.totals(ctx, pageFilter, previous)
	if err != nil {
		logger.Debug().Err(err).Str("page", variation).Msg("behavior comparison period unavailable")
		return snap, nil
	}
	if prevTotals != nil {
		snap.Previous = &analytics.Snapshot{Source: analytics.SourceBehavior, Found: true, Behavior: prevTotals}
	}
	return snap, nil
}

func (a *Adapter) totals(ctx context.Context, pageFilter *filterExpr, period sources.Period) (*analytics.BehaviorMetrics, error) {
	metrics := make([]named, len(behaviorMetrics))
	for i, m := range behaviorMetrics {
		metrics[i] = named{Name: m}
	}
	req := reportRequest{
		DateRanges:      []dateRange{{StartDate: period.StartDate(), EndDate: period.EndDate()}},
		Metrics:         metrics,
		DimensionFilter: pageFilter,
	}

	resp, err := a.run(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, nil
	}

	v, err := parseValues(resp.Rows[0].MetricValues, len(behaviorMetrics))
	if err != nil {
		return nil, err
	}
	return &analytics.BehaviorMetrics{
		Users:              v[0],
		Sessions:           v[1],
		PageViews:          v[2],
		BounceRate:         v[3],
		AvgSessionDuration: v[4],
		EngagementRate:     v[5],
		PagesPerSession:    v[6],
	}, nil
}

type breakdownRow struct {
	key   string
	value float64
}

func (a *Adapter) breakdown(ctx context.Context, pageFilter *filterExpr, period sources.Period, dimension, metric string) ([]breakdownRow, error) {
	req := reportRequest{
		DateRanges:      []dateRange{{StartDate: period.StartDate(), EndDate: period.EndDate()}},
		Dimensions:      []named{{Name: dimension}},
		Metrics:         []named{{Name: metric}},
		DimensionFilter: pageFilter,
		OrderBys:        []orderBy{{Metric: named{Name: metric}, Desc: true}},
		Limit:           strconv.Itoa(extensionRows),
	}

	resp, err := a.run(ctx, req)
	if err != nil {
		return nil, err
	}

	rows := make([]breakdownRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.DimensionValues) == 0 {
			continue
		}
		v, err := parseValues(r.MetricValues, 1)
		if err != nil {
			return nil, err
		}
		rows = append(rows, breakdownRow{key: r.DimensionValues[0].Value, value: v[0]})
	}
	return rows, nil
}

func (a *Adapter) run(ctx context.Context, req reportRequest) (*reportResponse, error) {
	var resp reportResponse
	if err := a.client.PostJSON(ctx, a.endpointURL(), req, &resp); err != nil {
		return nil, fmt.Errorf("run report: %w", err)
	}
	return &resp, nil
}

func (a *Adapter) endpointURL() string {
	return strings.TrimSuffix(a.cfg.Endpoint, "/") +
		"/properties/" + url.PathEscape(a.cfg.PropertyID) + ":runReport"
}

// pageFilter matches variation exactly. Absolute variations filter on the
// full page URL (host and path without scheme), paths with a query string on
// pagePathPlusQueryString, and bare paths on pagePath.
func (a *Adapter) pageFilter(variation string) *filterExpr {
	field := "pagePath"
	match := variation

	if u, err := url.Parse(variation); err == nil && u.Host != "" {
		field = "fullPageUrl"
		match = u.Host + u.EscapedPath()
		if u.RawQuery != "" {
			match += "?" + u.RawQuery
		}
	} else if strings.Contains(variation, "?") {
		field = "pagePathPlusQueryString"
	}

	return &filterExpr{Filter: filter{
		FieldName:    field,
		StringFilter: stringFilter{MatchType: "EXACT", Value: match},
	}}
}

func parseValues(values []value, want int) ([]float64, error) {
	if len(values) < want {
		return nil, fmt.Errorf("expected %d metric values, got %d", want, len(values))
	}
	out := make([]float64, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(values[i].Value, 64)
		if err != nil {
			return nil, fmt.Errorf("parse metric %d: %w", i, err)
		}
		out[i] = f
	}
	return out, nil
}
