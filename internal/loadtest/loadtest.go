// Package loadtest drives the reconcile API with realistic traffic to
// validate dashboards, the per-IP rate limit and the match cache under load.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// LoadProfile defines different load testing scenarios.
type LoadProfile string

const (
	ProfileLight  LoadProfile = "light"  // 2 req/s, 1 minute
	ProfileMedium LoadProfile = "medium" // 10 req/s, 2 minutes
	ProfileHeavy  LoadProfile = "heavy"  // 25 req/s, 5 minutes
	ProfileBurst  LoadProfile = "burst"  // 5 req/s with a 10x spike in the middle third
)

// ProfileConfig defines the parameters for a load test.
type ProfileConfig struct {
	RequestsPerSecond int           // Target requests per second
	Duration          time.Duration // How long to run at target rate
	RampUpTime        time.Duration // Time to gradually reach target RPS
	RampDownTime      time.Duration // Time to gradually decrease RPS
	SingleRatio       float64       // Share of reconcile calls that are single-page (rest are batches)
	BatchSize         int           // Pages per batch request
	Spike             bool          // Multiply RPS by 10 during the middle third of Duration
}

// LoadProfiles contains predefined load testing scenarios. Rates stay low
// because every uncached reconcile fans out to the analytics backends.
var LoadProfiles = map[LoadProfile]ProfileConfig{
	ProfileLight: {
		RequestsPerSecond: 2,
		Duration:          1 * time.Minute,
		RampUpTime:        10 * time.Second,
		RampDownTime:      10 * time.Second,
		SingleRatio:       0.9,
		BatchSize:         5,
	},
	ProfileMedium: {
		RequestsPerSecond: 10,
		Duration:          2 * time.Minute,
		RampUpTime:        20 * time.Second,
		RampDownTime:      20 * time.Second,
		SingleRatio:       0.8,
		BatchSize:         10,
	},
	ProfileHeavy: {
		RequestsPerSecond: 25,
		Duration:          5 * time.Minute,
		RampUpTime:        30 * time.Second,
		RampDownTime:      30 * time.Second,
		SingleRatio:       0.7,
		BatchSize:         20,
	},
	ProfileBurst: {
		RequestsPerSecond: 5,
		Duration:          3 * time.Minute,
		SingleRatio:       0.8,
		BatchSize:         10,
		Spike:             true,
	},
}

// DefaultPages are reconciled when no page list is given.
var DefaultPages = []string{"/", "/en/", "/fr/"}

// LoadTester orchestrates load testing operations.
type LoadTester struct {
	baseURL    string
	httpClient *http.Client
	pages      []string
	stats      *Statistics

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewLoadTester creates a new load tester targeting the specified base URL.
func NewLoadTester(baseURL string) *LoadTester {
	return &LoadTester{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		pages: DefaultPages,
		stats: newStatistics(),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithPages sets the canonical URLs or paths drawn from for each request.
func (lt *LoadTester) WithPages(pages []string) *LoadTester {
	if len(pages) > 0 {
		lt.pages = pages
	}
	return lt
}

// WithSeed makes page selection and the single/batch mix repeatable.
func (lt *LoadTester) WithSeed(seed int64) *LoadTester {
	lt.rng = rand.New(rand.NewSource(seed))
	return lt
}

// Statistics tracks load test metrics.
type Statistics struct {
	mu sync.Mutex

	totalRequests   int64
	successRequests int64
	failedRequests  int64
	rateLimited     int64

	// Response time tracking (in milliseconds)
	responseTimes []int64

	// Errors
	errors map[int]int64 // status code -> count

	// Per-endpoint stats
	endpointStats map[string]*EndpointStats

	startTime time.Time
	endTime   time.Time
}

func newStatistics() *Statistics {
	return &Statistics{
		errors:        make(map[int]int64),
		endpointStats: make(map[string]*EndpointStats),
	}
}

// EndpointStats tracks statistics for a specific endpoint.
type EndpointStats struct {
	count   int64
	total   int64   // total response time in ms
	times   []int64 // all response times for percentile calculation
	errors  int64
	minTime int64
	maxTime int64
}

// Total returns the number of requests issued.
func (s *Statistics) Total() int64 { return atomic.LoadInt64(&s.totalRequests) }

// Succeeded returns the number of 2xx responses.
func (s *Statistics) Succeeded() int64 { return atomic.LoadInt64(&s.successRequests) }

// RateLimited returns the number of 429 responses.
func (s *Statistics) RateLimited() int64 { return atomic.LoadInt64(&s.rateLimited) }

// Run executes a load test with the specified profile.
func (lt *LoadTester) Run(ctx context.Context, profile LoadProfile) (*Statistics, error) {
	config, exists := LoadProfiles[profile]
	if !exists {
		return nil, fmt.Errorf("unknown profile: %s", profile)
	}

	return lt.RunCustom(ctx, config)
}

// RunCustom executes a load test with a custom configuration.
func (lt *LoadTester) RunCustom(ctx context.Context, config ProfileConfig) (*Statistics, error) {
	if config.RequestsPerSecond < 1 {
		return nil, fmt.Errorf("requests per second must be positive, got %d", config.RequestsPerSecond)
	}
	if config.BatchSize < 1 {
		config.BatchSize = 1
	}

	lt.stats = newStatistics()
	lt.stats.startTime = time.Now()

	peak := config.RequestsPerSecond
	if config.Spike {
		peak *= 10
	}
	workers := max(peak*2, 10)

	workChan := make(chan workItem, workers*2)
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lt.worker(ctx, workChan)
		}()
	}

	go func() {
		defer close(workChan)
		lt.generateWork(ctx, config, workChan)
	}()

	wg.Wait()
	lt.stats.endTime = time.Now()

	return lt.stats, nil
}

// workItem represents a single HTTP request to be executed.
type workItem struct {
	method   string
	path     string
	body     any
	endpoint string // for stats tracking
}

// generateWork produces work items according to the load profile.
func (lt *LoadTester) generateWork(ctx context.Context, config ProfileConfig, workChan chan<- workItem) {
	startTime := time.Now()
	totalDuration := config.RampUpTime + config.Duration + config.RampDownTime

	currentRPS := calculateCurrentRPS(0, config)
	ticker := time.NewTicker(time.Second / time.Duration(currentRPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			elapsed := time.Since(startTime)
			if elapsed > totalDuration {
				return
			}

			if rps := calculateCurrentRPS(elapsed, config); rps != currentRPS {
				ticker.Reset(time.Second / time.Duration(rps))
				currentRPS = rps
			}

			select {
			case workChan <- lt.nextRequest(config):
			case <-ctx.Done():
				return
			}
		}
	}
}

// calculateCurrentRPS determines the current RPS based on ramp-up/down timing.
func calculateCurrentRPS(elapsed time.Duration, config ProfileConfig) int {
	targetRPS := config.RequestsPerSecond

	// Ramp-up phase
	if elapsed < config.RampUpTime {
		progress := float64(elapsed) / float64(config.RampUpTime)
		return max(int(float64(targetRPS)*progress), 1)
	}

	// Steady state
	steadyStart := config.RampUpTime
	steadyEnd := steadyStart + config.Duration
	if elapsed < steadyEnd {
		if config.Spike {
			third := config.Duration / 3
			if elapsed >= steadyStart+third && elapsed < steadyStart+2*third {
				return targetRPS * 10
			}
		}
		return targetRPS
	}

	// Ramp-down phase
	rampDownProgress := elapsed - steadyEnd
	if rampDownProgress < config.RampDownTime {
		progress := float64(rampDownProgress) / float64(config.RampDownTime)
		return max(int(float64(targetRPS)*(1.0-progress)), 1)
	}

	return 1
}

// nextRequest picks the next operation. One in twenty requests reads
// health or the cache; the rest reconcile pages.
func (lt *LoadTester) nextRequest(config ProfileConfig) workItem {
	lt.rngMu.Lock()
	defer lt.rngMu.Unlock()

	roll := lt.rng.Float64()
	switch {
	case roll < 0.025:
		return workItem{method: http.MethodGet, path: "/health", endpoint: "health"}
	case roll < 0.05:
		return workItem{method: http.MethodGet, path: "/api/v1/cache", endpoint: "list_cache"}
	}

	if lt.rng.Float64() < config.SingleRatio {
		page := lt.pages[lt.rng.Intn(len(lt.pages))]
		return workItem{
			method:   http.MethodGet,
			path:     "/api/v1/reconcile?url=" + url.QueryEscape(page),
			endpoint: "reconcile",
		}
	}

	urls := make([]string, min(config.BatchSize, 50))
	for i := range urls {
		urls[i] = lt.pages[lt.rng.Intn(len(lt.pages))]
	}
	return workItem{
		method:   http.MethodPost,
		path:     "/api/v1/reconcile/batch",
		body:     map[string][]string{"urls": urls},
		endpoint: "reconcile_batch",
	}
}

// worker processes work items from the work channel.
func (lt *LoadTester) worker(ctx context.Context, workChan <-chan workItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case work, ok := <-workChan:
			if !ok {
				return
			}
			lt.executeRequest(ctx, work)
		}
	}
}

// executeRequest performs an HTTP request and records statistics.
func (lt *LoadTester) executeRequest(ctx context.Context, work workItem) {
	atomic.AddInt64(&lt.stats.totalRequests, 1)

	start := time.Now()

	var reqBody io.Reader
	if work.body != nil {
		jsonData, err := json.Marshal(work.body)
		if err != nil {
			lt.recordError(0, work.endpoint)
			return
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, work.method, lt.baseURL+work.path, reqBody)
	if err != nil {
		lt.recordError(0, work.endpoint)
		return
	}
	if work.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := lt.httpClient.Do(req)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		lt.recordError(0, work.endpoint)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	// Drain so the full response time is measured
	_, _ = io.Copy(io.Discard, resp.Body)

	lt.recordResponse(resp.StatusCode, duration, work.endpoint)
}

// recordResponse records a completed response.
func (lt *LoadTester) recordResponse(statusCode int, durationMs int64, endpoint string) {
	lt.stats.mu.Lock()
	defer lt.stats.mu.Unlock()

	lt.stats.responseTimes = append(lt.stats.responseTimes, durationMs)

	ok := statusCode >= 200 && statusCode < 300
	if ok {
		atomic.AddInt64(&lt.stats.successRequests, 1)
	} else {
		atomic.AddInt64(&lt.stats.failedRequests, 1)
		lt.stats.errors[statusCode]++
	}
	if statusCode == http.StatusTooManyRequests {
		atomic.AddInt64(&lt.stats.rateLimited, 1)
	}

	epStats := lt.stats.endpointStats[endpoint]
	if epStats == nil {
		epStats = &EndpointStats{minTime: durationMs, maxTime: durationMs}
		lt.stats.endpointStats[endpoint] = epStats
	}
	epStats.count++
	epStats.total += durationMs
	epStats.times = append(epStats.times, durationMs)
	epStats.minTime = min(epStats.minTime, durationMs)
	epStats.maxTime = max(epStats.maxTime, durationMs)
	if !ok {
		epStats.errors++
	}
}

// recordError records a request that never got a response.
func (lt *LoadTester) recordError(statusCode int, endpoint string) {
	lt.stats.mu.Lock()
	defer lt.stats.mu.Unlock()

	atomic.AddInt64(&lt.stats.failedRequests, 1)
	lt.stats.errors[statusCode]++

	if lt.stats.endpointStats[endpoint] == nil {
		lt.stats.endpointStats[endpoint] = &EndpointStats{}
	}
	lt.stats.endpointStats[endpoint].errors++
}

// Report generates a summary report of the load test.
func (s *Statistics) Report() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	duration := s.endTime.Sub(s.startTime)
	totalReqs := s.totalRequests
	pct := func(n int64) float64 {
		if totalReqs == 0 {
			return 0
		}
		return float64(n) / float64(totalReqs) * 100
	}

	var report bytes.Buffer
	report.WriteString("\n")
	report.WriteString("═══════════════════════════════════════════════════════════════\n")
	report.WriteString("                    LOAD TEST RESULTS                           \n")
	report.WriteString("═══════════════════════════════════════════════════════════════\n\n")

	fmt.Fprintf(&report, "Duration:        %s\n", duration.Round(time.Second))
	fmt.Fprintf(&report, "Total Requests:  %d\n", totalReqs)
	fmt.Fprintf(&report, "Successful:      %d (%.1f%%)\n", s.successRequests, pct(s.successRequests))
	fmt.Fprintf(&report, "Failed:          %d (%.1f%%)\n", s.failedRequests, pct(s.failedRequests))
	fmt.Fprintf(&report, "Rate limited:    %d (%.1f%%)\n", s.rateLimited, pct(s.rateLimited))
	if duration > 0 {
		fmt.Fprintf(&report, "Requests/sec:    %.2f\n", float64(totalReqs)/duration.Seconds())
	}
	report.WriteString("\n")

	if len(s.responseTimes) > 0 {
		report.WriteString("Response Times (ms):\n")
		fmt.Fprintf(&report, "  Average:  %d\n", average(s.responseTimes))
		fmt.Fprintf(&report, "  p50:      %d\n", calculatePercentile(s.responseTimes, 0.50))
		fmt.Fprintf(&report, "  p95:      %d\n", calculatePercentile(s.responseTimes, 0.95))
		fmt.Fprintf(&report, "  p99:      %d\n\n", calculatePercentile(s.responseTimes, 0.99))
	}

	if len(s.errors) > 0 {
		report.WriteString("Errors by Status Code:\n")
		codes := make([]int, 0, len(s.errors))
		for code := range s.errors {
			codes = append(codes, code)
		}
		slices.Sort(codes)
		for _, code := range codes {
			label := fmt.Sprint(code)
			if code == 0 {
				label = "transport"
			}
			fmt.Fprintf(&report, "  %s: %d\n", label, s.errors[code])
		}
		report.WriteString("\n")
	}

	if len(s.endpointStats) > 0 {
		report.WriteString("Per-Endpoint Statistics:\n")
		report.WriteString("─────────────────────────────────────────────────────────────\n")
		fmt.Fprintf(&report, "%-20s %8s %8s %8s %8s %8s\n", "Endpoint", "Count", "Avg(ms)", "p95(ms)", "Min", "Max")
		report.WriteString("─────────────────────────────────────────────────────────────\n")

		endpoints := make([]string, 0, len(s.endpointStats))
		for endpoint := range s.endpointStats {
			endpoints = append(endpoints, endpoint)
		}
		slices.Sort(endpoints)
		for _, endpoint := range endpoints {
			stats := s.endpointStats[endpoint]
			if stats.count == 0 {
				continue
			}
			fmt.Fprintf(&report, "%-20s %8d %8d %8d %8d %8d\n",
				endpoint, stats.count, stats.total/stats.count, calculatePercentile(stats.times, 0.95), stats.minTime, stats.maxTime)
		}
		report.WriteString("\n")
	}

	report.WriteString("═══════════════════════════════════════════════════════════════\n")
	return report.String()
}

func average(times []int64) int64 {
	if len(times) == 0 {
		return 0
	}
	var sum int64
	for _, t := range times {
		sum += t
	}
	return sum / int64(len(times))
}

func calculatePercentile(times []int64, percentile float64) int64 {
	if len(times) == 0 {
		return 0
	}

	sorted := slices.Clone(times)
	slices.Sort(sorted)

	index := int(float64(len(sorted)) * percentile)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}
