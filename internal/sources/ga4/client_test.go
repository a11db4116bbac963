package ga4

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/sources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

type fakeDataAPI struct {
	t *testing.T

	mu       sync.Mutex
	requests []reportRequest
	paths    []string

	// totals maps a filter value to metric values per start date.
	totals map[string]map[string][]string
	// breakdowns maps a dimension name to its rows.
	breakdowns map[string][]reportRow
}

func (f *fakeDataAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.paths = append(f.paths, r.URL.Path)
	f.mu.Unlock()

	var resp reportResponse
	match := req.DimensionFilter.Filter.StringFilter.Value
	if values, ok := f.totals[match][req.DateRanges[0].StartDate]; ok {
		if len(req.Dimensions) == 0 {
			row := reportRow{}
			for _, v := range values {
				row.MetricValues = append(row.MetricValues, value{Value: v})
			}
			resp.Rows = []reportRow{row}
		} else {
			resp.Rows = f.breakdowns[req.Dimensions[0].Name]
		}
	}
	resp.RowCount = len(resp.Rows)
	w.Header().Set("Content-Type", "application/json")
	require.NoError(f.t, json.NewEncoder(w).Encode(resp))
}

func newTestAdapter(t *testing.T, fake http.Handler) *Adapter {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := sources.NewClient(
		sources.WithToken("test-token"),
		sources.WithRateLimit(1000),
		sources.WithRetry(0, 0),
	)
	a := New(Config{PropertyID: "123456", Endpoint: server.URL, LookbackDays: 7}, client)
	a.now = func() time.Time { return fixedNow }
	return a
}

func breakdownRows(pairs ...string) []reportRow {
	var rows []reportRow
	for i := 0; i+1 < len(pairs); i += 2 {
		rows = append(rows, reportRow{
			DimensionValues: []value{{Value: pairs[i]}},
			MetricValues:    []value{{Value: pairs[i+1]}},
		})
	}
	return rows
}

func TestFetch_PageWithData(t *testing.T) {
	current, previous := sources.LookbackPeriods(fixedNow, 7)
	fake := &fakeDataAPI{
		t: t,
		totals: map[string]map[string][]string{
			"/en/housing/": {
				current.StartDate():  {"320", "410", "655", "0.42", "95.5", "0.58", "1.6"},
				previous.StartDate(): {"300", "380", "600", "0.45", "90", "0.55", "1.58"},
			},
		},
		breakdowns: map[string][]reportRow{
			"sessionDefaultChannelGroup": breakdownRows("Organic Search", "250", "Direct", "160"),
			"country":                    breakdownRows("Canada", "290", "France", "30"),
		},
	}
	a := newTestAdapter(t, fake)

	snap, err := a.Fetch(context.Background(), "/en/housing/")
	require.NoError(t, err)

	assert.Equal(t, analytics.SourceBehavior, snap.Source)
	require.NotNil(t, snap.Behavior)
	assert.Equal(t, analytics.BehaviorMetrics{
		Users:              320,
		Sessions:           410,
		PageViews:          655,
		BounceRate:         0.42,
		AvgSessionDuration: 95.5,
		EngagementRate:     0.58,
		PagesPerSession:    1.6,
	}, *snap.Behavior)

	require.Len(t, snap.TrafficSources, 2)
	assert.Equal(t, analytics.TrafficSource{Channel: "Organic Search", Sessions: 250}, snap.TrafficSources[0])
	require.Len(t, snap.Countries, 2)
	assert.Equal(t, "Canada", snap.Countries[0].Country)

	require.NotNil(t, snap.Previous)
	assert.Equal(t, 600.0, snap.Previous.Behavior.PageViews)

	require.Len(t, fake.requests, 4)
	assert.Equal(t, "pagePath", fake.requests[0].DimensionFilter.Filter.FieldName)
	assert.Equal(t, "EXACT", fake.requests[0].DimensionFilter.Filter.StringFilter.MatchType)
	assert.Len(t, fake.requests[0].Metrics, len(behaviorMetrics))
	assert.Equal(t, "10", fake.requests[1].Limit)
	assert.True(t, fake.requests[1].OrderBys[0].Desc)
	assert.True(t, strings.HasSuffix(fake.paths[0], "/properties/123456:runReport"))
}

func TestFetch_PageWithoutData(t *testing.T) {
	fake := &fakeDataAPI{t: t}
	a := newTestAdapter(t, fake)

	snap, err := a.Fetch(context.Background(), "/missing")
	require.NoError(t, err)

	assert.Nil(t, snap.Behavior)
	assert.Len(t, fake.requests, 1)
}

func TestFetch_MalformedMetricValue(t *testing.T) {
	current, _ := sources.LookbackPeriods(fixedNow, 7)
	fake := &fakeDataAPI{t: t, totals: map[string]map[string][]string{
		"/x": {current.StartDate(): {"1", "2", "three", "0", "0", "0", "0"}},
	}}
	a := newTestAdapter(t, fake)

	_, err := a.Fetch(context.Background(), "/x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse metric 2")
}

func TestFetch_ShortMetricRow(t *testing.T) {
	current, _ := sources.LookbackPeriods(fixedNow, 7)
	fake := &fakeDataAPI{t: t, totals: map[string]map[string][]string{
		"/x": {current.StartDate(): {"1", "2"}},
	}}
	a := newTestAdapter(t, fake)

	_, err := a.Fetch(context.Background(), "/x")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 7 metric values")
}

func TestFetch_ServerQuotaError(t *testing.T) {
	a := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Exhausted property tokens per day quota"}}`, http.StatusTooManyRequests)
	}))

	_, err := a.Fetch(context.Background(), "/x")

	require.Error(t, err)
	assert.True(t, sources.IsRateLimited(err))
}

func TestStatus(t *testing.T) {
	authorized := sources.NewClient(sources.WithToken("t"))

	assert.ErrorIs(t, New(Config{}, authorized).Status(context.Background()), sources.ErrNotConnected)
	assert.ErrorIs(t, New(Config{PropertyID: "1"}, sources.NewClient()).Status(context.Background()), sources.ErrNotConnected)
	assert.NoError(t, New(Config{PropertyID: "1"}, authorized).Status(context.Background()))
}

func TestPageFilter(t *testing.T) {
	tests := []struct {
		variation string
		wantField string
		wantValue string
	}{
		{"/en/housing/", "pagePath", "/en/housing/"},
		{"/search?q=rent", "pagePathPlusQueryString", "/search?q=rent"},
		{"https://example.org/en/housing", "fullPageUrl", "example.org/en/housing"},
		{"https://example.org/a?b=1", "fullPageUrl", "example.org/a?b=1"},
	}

	a := New(Config{PropertyID: "1"}, nil)
	for _, tt := range tests {
		f := a.pageFilter(tt.variation)
		assert.Equal(t, tt.wantField, f.Filter.FieldName, tt.variation)
		assert.Equal(t, tt.wantValue, f.Filter.StringFilter.Value, tt.variation)
	}
}
