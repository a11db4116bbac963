// Package reconcile joins the search and behavior snapshots of one page into
// a single report with trends, scores, benchmarks and anomaly flags.
package reconcile

import (
	"context"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/ids"
	"github.com/Togather-Foundation/sitelens/internal/metrics"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/scoring"
	"github.com/Togather-Foundation/sitelens/internal/trends"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/Togather-Foundation/sitelens/internal/reconcile"

// DefaultConcurrency bounds ReconcileAll when called with concurrency <= 0.
const DefaultConcurrency = 4

// Report is the reconciled view of one page. The JSON field names are read
// by the dashboard and must not change.
type Report struct {
	ID          string                 `json:"id"`
	URL         string                 `json:"url"`
	GeneratedAt time.Time              `json:"generated_at"`
	Search      analytics.Snapshot     `json:"search"`
	Behavior    analytics.Snapshot     `json:"behavior"`
	Trends      *Trends                `json:"trends,omitempty"`
	Scores      scoring.CompositeScore `json:"scores"`
	Priority    scoring.PriorityScore  `json:"priority"`
	Benchmarks  []scoring.Benchmark    `json:"benchmarks"`
	Anomalies   []scoring.AnomalyFlag  `json:"anomalies"`
}

// Trends holds the period-over-period deltas per source. A source without a
// comparison period has no entry.
type Trends struct {
	Search   map[string]trends.Delta `json:"search,omitempty"`
	Behavior map[string]trends.Delta `json:"behavior,omitempty"`
}

// Service produces reports. It is safe for concurrent use.
type Service struct {
	orchestrator *probe.Orchestrator
	classifier   *scoring.BenchmarkClassifier
	detector     *scoring.AnomalyDetector
	logger       zerolog.Logger
	maxAttempts  int
	now          func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAttempts sets the per-source variation budget passed to each probe.
// Zero uses the orchestrator default.
func WithMaxAttempts(n int) Option {
	return func(s *Service) {
		s.maxAttempts = n
	}
}

// WithClassifier replaces the benchmark classifier.
func WithClassifier(c *scoring.BenchmarkClassifier) Option {
	return func(s *Service) {
		s.classifier = c
	}
}

// WithDetector replaces the anomaly detector.
func WithDetector(d *scoring.AnomalyDetector) Option {
	return func(s *Service) {
		s.detector = d
	}
}

// NewService creates a Service that probes through orchestrator.
func NewService(orchestrator *probe.Orchestrator, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		orchestrator: orchestrator,
		classifier:   scoring.NewBenchmarkClassifier(nil),
		detector:     scoring.NewAnomalyDetector(),
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile probes both sources for canonical concurrently and builds the
// report. It never fails: an unmatched or unreachable source appears as a
// not-found snapshot and contributes neutral defaults to every score.
// A nil adapter marks its source as not connected.
func (s *Service) Reconcile(ctx context.Context, canonical string, searchAdapter, behaviorAdapter probe.Adapter) Report {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "reconcile.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("reconcile.url", canonical))

	var search, behavior analytics.Snapshot
	var g errgroup.Group
	g.Go(func() error {
		search = s.orchestrator.Probe(ctx, probe.Source{ID: analytics.SourceSearch, Adapter: searchAdapter}, canonical, s.maxAttempts)
		return nil
	})
	g.Go(func() error {
		behavior = s.orchestrator.Probe(ctx, probe.Source{ID: analytics.SourceBehavior, Adapter: behaviorAdapter}, canonical, s.maxAttempts)
		return nil
	})
	_ = g.Wait()

	report := s.build(canonical, search, behavior)

	metrics.ReportsTotal.WithLabelValues(report.Scores.Grade).Inc()
	for _, a := range report.Anomalies {
		metrics.AnomaliesTotal.WithLabelValues(a.Kind, a.Severity).Inc()
	}
	span.SetAttributes(
		attribute.Bool("reconcile.search_found", search.Found),
		attribute.Bool("reconcile.behavior_found", behavior.Found),
		attribute.String("reconcile.grade", report.Scores.Grade),
	)
	s.logger.Info().
		Str("url", canonical).
		Bool("search_found", search.Found).
		Bool("behavior_found", behavior.Found).
		Float64("score", report.Scores.Total).
		Str("grade", report.Scores.Grade).
		Str("priority", report.Priority.Level).
		Int("anomalies", len(report.Anomalies)).
		Msg("report generated")

	return report
}

func (s *Service) build(canonical string, search, behavior analytics.Snapshot) Report {
	generatedAt := s.now()
	id, err := ids.NewULIDAt(generatedAt)
	if err != nil {
		s.logger.Warn().Err(err).Str("url", canonical).Msg("failed to mint report id")
	}

	var searchTrends, behaviorTrends map[string]trends.Delta
	if search.Found && search.Previous != nil {
		searchTrends = trends.Compute(search, *search.Previous)
	}
	if behavior.Found && behavior.Previous != nil {
		behaviorTrends = trends.Compute(behavior, *behavior.Previous)
	}

	var reportTrends *Trends
	if searchTrends != nil || behaviorTrends != nil {
		reportTrends = &Trends{Search: searchTrends, Behavior: behaviorTrends}
	}

	values := search.Values()
	for k, v := range behavior.Values() {
		values[k] = v
	}

	anomalies := []scoring.AnomalyFlag{}
	if search.HasSearch() {
		var previousQueries []analytics.QueryRow
		if search.Previous != nil {
			previousQueries = search.Previous.Queries
		}
		anomalies = append(anomalies, s.detector.Detect(search.Queries, previousQueries)...)
	}

	return Report{
		ID:          id,
		URL:         canonical,
		GeneratedAt: generatedAt,
		Search:      search,
		Behavior:    behavior,
		Trends:      reportTrends,
		Scores:      scoring.Composite(search, behavior),
		Priority:    scoring.Priority(search, behavior, searchTrends, behaviorTrends),
		Benchmarks:  s.classifier.ClassifyAll(values),
		Anomalies:   anomalies,
	}
}

// ReconcileAll reconciles every URL with at most concurrency pages in flight
// and returns the reports in input order.
func (s *Service) ReconcileAll(ctx context.Context, urls []string, searchAdapter, behaviorAdapter probe.Adapter, concurrency int) []Report {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	reports := make([]Report, len(urls))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, u := range urls {
		g.Go(func() error {
			reports[i] = s.Reconcile(ctx, u, searchAdapter, behaviorAdapter)
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

// ClearCache drops every cached probe outcome.
func (s *Service) ClearCache() {
	s.orchestrator.Cache().Clear()
	s.logger.Info().Msg("match cache cleared")
}

// ListCacheKeys returns the cached "source|url" keys in insertion order.
func (s *Service) ListCacheKeys() []string {
	keys := s.orchestrator.Cache().Keys()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
