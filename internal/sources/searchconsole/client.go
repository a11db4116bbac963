// Package searchconsole adapts the Search Console search analytics API to a
// probe adapter for the search-performance source.
package searchconsole

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/sources"
	"github.com/rs/zerolog"
)

// DefaultEndpoint is the public Search Console API base.
const DefaultEndpoint = "https://www.googleapis.com/webmasters/v3"

// domainPropertyPrefix marks a domain property, which has no scheme.
const domainPropertyPrefix = "sc-domain:"

// Config describes the Search Console property to query.
type Config struct {
	// SiteURL is the property, e.g. "https://example.org/" or "sc-domain:example.org".
	SiteURL      string
	Endpoint     string
	LookbackDays int
}

// Adapter fetches page-level search metrics for one property.
type Adapter struct {
	cfg    Config
	client *sources.Client
	now    func() time.Time
}

// New creates an Adapter. client carries credentials and the rate limit
// shared by every probe against the property.
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
	if a.cfg.SiteURL == "" {
		return fmt.Errorf("%w: no search site configured", sources.ErrNotConnected)
	}
	if a.client == nil || !a.client.Authorized() {
		return fmt.Errorf("%w: no search credentials", sources.ErrNotConnected)
	}
	return nil
}

type queryRequest struct {
	StartDate             string                 `json:"startDate"`
	EndDate               string                 `json:"endDate"`
	Dimensions            []string               `json:"dimensions,omitempty"`
	DimensionFilterGroups []dimensionFilterGroup `json:"dimensionFilterGroups,omitempty"`
	RowLimit              int                    `json:"rowLimit,omitempty"`
}

type dimensionFilterGroup struct {
	Filters []dimensionFilter `json:"filters"`
}

type dimensionFilter struct {
	Dimension  string `json:"dimension"`
	Operator   string `json:"operator"`
	Expression string `json:"expression"`
}

type queryResponse struct {
	Rows []responseRow `json:"rows"`
}

type responseRow struct {
	Keys        []string `json:"keys"`
	Clicks      float64  `json:"clicks"`
	Impressions float64  `json:"impressions"`
	CTR         float64  `json:"ctr"`
	Position    float64  `json:"position"`
}

// Fetch returns the page totals and top queries for variation over the
// current lookback window, with the preceding window in Previous. A page the
// property has no rows for yields a snapshot with no search block.
//
// Only the current totals are required; failures fetching queries or the
// comparison window are logged and leave those parts empty.
func (a *Adapter) Fetch(ctx context.Context, variation string) (analytics.Snapshot, error) {
	if err := a.Status(ctx); err != nil {
		return analytics.Snapshot{}, err
	}
	page := a.pageURL(variation)
	current, previous := sources.LookbackPeriods(a.now(), a.cfg.LookbackDays)
	snap := analytics.Snapshot{Source: analytics.SourceSearch}

	totals, err := a.totals(ctx, page, current)
	if err != nil {
		return analytics.Snapshot{}, err
	}
	if totals == nil {
		return snap, nil
	}
	snap.Search = totals

	logger := zerolog.Ctx(ctx)

	queries, err := a.queries(ctx, page, current)
	if err != nil {
		logger.Debug().Err(err).Str("page", page).Msg("search queries unavailable")
	}
	snap.Queries = queries

	prevTotals, err := a.totals(ctx, page, previous)
	if err != nil {
		logger.Debug().Err(err).Str("page", page).Msg("search comparison period unavailable")
		return snap, nil
	}
	if prevTotals != nil {
		prev := analytics.Snapshot{Source: analytics.SourceSearch, Found: true, Search: prevTotals}
		if prevQueries, err := a.queries(ctx, page, previous); err == nil {
			prev.Queries = prevQueries
		}
		snap.Previous = &prev
	}
	return snap, nil
}

func (a *Adapter) totals(ctx context.Context, page string, period sources.Period) (*analytics.SearchMetrics, error) {
	resp, err := a.query(ctx, page, period, []string{"page"}, 1)
	if err != nil {
		return nil, err
	}
	if len(resp.Rows) == 0 {
		return nil, nil
	}
	row := resp.Rows[0]
	return &analytics.SearchMetrics{
		Clicks:      row.Clicks,
		Impressions: row.Impressions,
		CTR:         row.CTR,
		Position:    row.Position,
	}, nil
}

func (a *Adapter) queries(ctx context.Context, page string, period sources.Period) ([]analytics.QueryRow, error) {
	resp, err := a.query(ctx, page, period, []string{"query"}, analytics.MaxQueryRows)
	if err != nil {
		return nil, err
	}
	rows := make([]analytics.QueryRow, 0, len(resp.Rows))
	for _, r := range resp.Rows {
		if len(r.Keys) == 0 {
			continue
		}
		rows = append(rows, analytics.QueryRow{
			Query:       r.Keys[0],
			Clicks:      r.Clicks,
			Impressions: r.Impressions,
			CTR:         r.CTR,
			Position:    r.Position,
		})
	}
	return rows, nil
}

func (a *Adapter) query(ctx context.Context, page string, period sources.Period, dimensions []string, limit int) (*queryResponse, error) {
	req := queryRequest{
		StartDate:  period.StartDate(),
		EndDate:    period.EndDate(),
		Dimensions: dimensions,
		DimensionFilterGroups: []dimensionFilterGroup{{
			Filters: []dimensionFilter{{Dimension: "page", Operator: "equals", Expression: page}},
		}},
		RowLimit: limit,
	}

	var resp queryResponse
	if err := a.client.PostJSON(ctx, a.endpointURL(), req, &resp); err != nil {
		return nil, fmt.Errorf("search analytics query: %w", err)
	}
	return &resp, nil
}

func (a *Adapter) endpointURL() string {
	return strings.TrimSuffix(a.cfg.Endpoint, "/") +
		"/sites/" + url.PathEscape(a.cfg.SiteURL) + "/searchAnalytics/query"
}

// pageURL turns a variation into the absolute URL Search Console reports.
// Path-only variations are resolved against the property.
func (a *Adapter) pageURL(variation string) string {
	if strings.Contains(variation, "://") {
		return variation
	}
	if domain, ok := strings.CutPrefix(a.cfg.SiteURL, domainPropertyPrefix); ok {
		return "https://" + domain + variation
	}
	return strings.TrimSuffix(a.cfg.SiteURL, "/") + variation
}
