package probe

import (
	"context"
	"errors"
	"time"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/matchcache"
	"github.com/Togather-Foundation/sitelens/internal/metrics"
	"github.com/Togather-Foundation/sitelens/internal/sources"
	"github.com/Togather-Foundation/sitelens/internal/urlvariant"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const tracerName = "github.com/Togather-Foundation/sitelens/internal/probe"

const (
	// DefaultMaxAttempts is used when Probe is called with maxAttempts <= 0.
	DefaultMaxAttempts = 10
	// DefaultAttemptDelay separates consecutive attempts against one backend.
	DefaultAttemptDelay = 150 * time.Millisecond
	// DefaultRateLimitDelay replaces the attempt delay after a rate-limit error.
	DefaultRateLimitDelay = 2 * time.Second
	// DefaultCallTimeout bounds a single adapter call.
	DefaultCallTimeout = 10 * time.Second
)

// Reasons recorded on not-found snapshots.
const (
	ReasonExhausted    = "no meaningful result for any variation"
	ReasonNotConnected = "source not connected"
)

// Adapter fetches the metrics one backend holds for one URL variation.
type Adapter interface {
	Fetch(ctx context.Context, variation string) (analytics.Snapshot, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, variation string) (analytics.Snapshot, error)

// Fetch calls f(ctx, variation).
func (f AdapterFunc) Fetch(ctx context.Context, variation string) (analytics.Snapshot, error) {
	return f(ctx, variation)
}

// StatusReporter is implemented by adapters that can tell up front whether
// their backend is reachable. A non-nil error means no variation is tried.
type StatusReporter interface {
	Status(ctx context.Context) error
}

// Source describes one backend to probe.
type Source struct {
	ID      string
	Adapter Adapter
	// Meaningful decides whether a fetched snapshot counts as a match.
	// Nil selects DefaultMeaningful for ID.
	Meaningful func(analytics.Snapshot) bool
}

// DefaultMeaningful returns the match predicate for a source ID: at least one
// count-like metric of the source's block must be positive. Unknown sources
// accept a positive count in either block.
func DefaultMeaningful(sourceID string) func(analytics.Snapshot) bool {
	switch sourceID {
	case analytics.SourceSearch:
		return searchCounts
	case analytics.SourceBehavior:
		return behaviorCounts
	default:
		return func(s analytics.Snapshot) bool {
			return searchCounts(s) || behaviorCounts(s)
		}
	}
}

func searchCounts(s analytics.Snapshot) bool {
	return s.Search != nil && (s.Search.Clicks > 0 || s.Search.Impressions > 0)
}

func behaviorCounts(s analytics.Snapshot) bool {
	b := s.Behavior
	return b != nil && (b.PageViews > 0 || b.Sessions > 0 || b.Users > 0)
}

// Orchestrator resolves canonical URLs against backends by trying URL
// variations in order, caching every resolved outcome in a shared Store.
type Orchestrator struct {
	cache          *matchcache.Store
	generator      *urlvariant.Generator
	logger         zerolog.Logger
	group          singleflight.Group
	maxAttempts    int
	attemptDelay   time.Duration
	rateLimitDelay time.Duration
	callTimeout    time.Duration
	now            func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithGenerator sets the variation generator.
func WithGenerator(g *urlvariant.Generator) Option {
	return func(o *Orchestrator) {
		o.generator = g
	}
}

// WithDelays sets the inter-attempt delay and the rate-limit backoff.
func WithDelays(attempt, rateLimit time.Duration) Option {
	return func(o *Orchestrator) {
		o.attemptDelay = attempt
		o.rateLimitDelay = rateLimit
	}
}

// WithCallTimeout bounds each adapter call. Zero disables the bound.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.callTimeout = d
	}
}

// WithMaxAttempts sets the default attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// NewOrchestrator creates an Orchestrator backed by cache.
func NewOrchestrator(cache *matchcache.Store, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cache:          cache,
		generator:      urlvariant.NewGenerator(),
		logger:         logger,
		maxAttempts:    DefaultMaxAttempts,
		attemptDelay:   DefaultAttemptDelay,
		rateLimitDelay: DefaultRateLimitDelay,
		callTimeout:    DefaultCallTimeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Cache returns the store the orchestrator writes to.
func (o *Orchestrator) Cache() *matchcache.Store {
	return o.cache
}

// Probe resolves canonical against src and always returns a snapshot.
//
// A cached entry (found or not) is returned without calling the adapter.
// Otherwise up to maxAttempts variations are tried one at a time; the first
// meaningful result is cached and returned, and exhausting the budget caches
// and returns a not-found snapshot. Concurrent calls for the same source and
// URL share one execution. A caller whose ctx ends first gets an uncached
// "canceled" snapshot while the shared lookup carries on for the others.
func (o *Orchestrator) Probe(ctx context.Context, src Source, canonical string, maxAttempts int) analytics.Snapshot {
	if cached, ok := o.cache.Get(src.ID, canonical); ok {
		metrics.CacheLookupsTotal.WithLabelValues(src.ID, "hit").Inc()
		metrics.ProbesTotal.WithLabelValues(src.ID, "cache").Inc()
		o.logger.Debug().
			Str("source", src.ID).
			Str("url", canonical).
			Bool("found", cached.Found).
			Msg("probe cache hit")
		return cached
	}

	metrics.CacheLookupsTotal.WithLabelValues(src.ID, "miss").Inc()

	if err := ctx.Err(); err != nil {
		return o.canceled(src.ID, 0, err)
	}

	// The flight outlives any one caller: a caller that gives up leaves the
	// others waiting on a lookup still bounded by the call timeout and the
	// attempt budget.
	flightCtx := context.WithoutCancel(ctx)
	key := matchcache.Key{Source: src.ID, URL: canonical}.String()
	ch := o.group.DoChan(key, func() (interface{}, error) {
		// A caller that lost the race to a just-finished flight lands here.
		if cached, ok := o.cache.Get(src.ID, canonical); ok {
			return cached, nil
		}
		return o.resolve(flightCtx, src, canonical, maxAttempts), nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			o.logger.Debug().Str("source", src.ID).Str("url", canonical).Msg("probe joined in-flight lookup")
		}
		return res.Val.(analytics.Snapshot)
	case <-ctx.Done():
		return o.canceled(src.ID, 0, ctx.Err())
	}
}

func (o *Orchestrator) resolve(ctx context.Context, src Source, canonical string, maxAttempts int) analytics.Snapshot {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "probe.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("probe.source", src.ID),
		attribute.String("probe.url", canonical),
	)

	metrics.ProbesInFlight.WithLabelValues(src.ID).Inc()
	defer metrics.ProbesInFlight.WithLabelValues(src.ID).Dec()

	logger := o.logger.With().Str("source", src.ID).Str("url", canonical).Logger()

	if src.Adapter == nil {
		metrics.ProbesTotal.WithLabelValues(src.ID, "not_connected").Inc()
		return analytics.NotFound(src.ID, ReasonNotConnected, 0)
	}
	if reporter, ok := src.Adapter.(StatusReporter); ok {
		if err := reporter.Status(ctx); err != nil {
			metrics.ProbesTotal.WithLabelValues(src.ID, "not_connected").Inc()
			logger.Warn().Err(err).Msg("source not connected, skipping probe")
			return analytics.NotFound(src.ID, notConnectedReason(err), 0)
		}
	}

	meaningful := src.Meaningful
	if meaningful == nil {
		meaningful = DefaultMeaningful(src.ID)
	}
	if maxAttempts <= 0 {
		maxAttempts = o.maxAttempts
	}

	variations := o.generator.Generate(canonical)
	if len(variations) > maxAttempts {
		variations = variations[:maxAttempts]
	}

	attempts := 0
	delay := o.attemptDelay
	for i, variation := range variations {
		if i > 0 {
			if err := sleep(ctx, delay); err != nil {
				return o.canceled(src.ID, attempts, err)
			}
		}
		delay = o.attemptDelay

		attempts++
		snap, err := o.fetch(ctx, src, variation)
		switch {
		case err != nil && errors.Is(err, sources.ErrNotConnected):
			metrics.ProbeAttemptsTotal.WithLabelValues(src.ID, "error").Inc()
			metrics.ProbesTotal.WithLabelValues(src.ID, "not_connected").Inc()
			logger.Warn().Err(err).Msg("source reported not connected")
			return analytics.NotFound(src.ID, notConnectedReason(err), attempts)

		case err != nil && ctx.Err() != nil:
			return o.canceled(src.ID, attempts, ctx.Err())

		case err != nil && sources.IsRateLimited(err):
			metrics.ProbeAttemptsTotal.WithLabelValues(src.ID, "rate_limited").Inc()
			logger.Warn().
				Err(err).
				Str("variation", variation).
				Dur("backoff", o.rateLimitDelay).
				Msg("rate limited, backing off")
			delay = o.rateLimitDelay

		case err != nil:
			metrics.ProbeAttemptsTotal.WithLabelValues(src.ID, "error").Inc()
			logger.Debug().Err(err).Str("variation", variation).Msg("variation failed")

		case !meaningful(snap):
			metrics.ProbeAttemptsTotal.WithLabelValues(src.ID, "empty").Inc()
			logger.Debug().Str("variation", variation).Msg("variation returned no data")

		default:
			metrics.ProbeAttemptsTotal.WithLabelValues(src.ID, "match").Inc()
			metrics.ProbeAttemptsPerMatch.WithLabelValues(src.ID).Observe(float64(attempts))
			metrics.ProbesTotal.WithLabelValues(src.ID, "found").Inc()

			snap.Source = src.ID
			snap.Found = true
			snap.MatchedURL = variation
			snap.Attempts = attempts
			snap.Reason = ""
			if snap.CapturedAt.IsZero() {
				snap.CapturedAt = o.now()
			}
			snap = snap.Normalize()
			o.cache.Put(src.ID, canonical, snap)

			span.SetAttributes(
				attribute.Bool("probe.found", true),
				attribute.Int("probe.attempts", attempts),
				attribute.String("probe.matched_url", variation),
			)
			logger.Info().
				Str("matched_url", variation).
				Int("attempts", attempts).
				Msg("probe matched")
			return snap
		}
	}

	miss := analytics.NotFound(src.ID, ReasonExhausted, attempts)
	miss.CapturedAt = o.now()
	o.cache.Put(src.ID, canonical, miss)
	metrics.ProbesTotal.WithLabelValues(src.ID, "not_found").Inc()

	span.SetAttributes(
		attribute.Bool("probe.found", false),
		attribute.Int("probe.attempts", attempts),
	)
	logger.Info().Int("attempts", attempts).Msg("probe exhausted variations")
	return miss
}

// fetch runs one adapter call under the per-call timeout. The adapter error is
// returned as is so rate limiting is judged on what the backend said.
func (o *Orchestrator) fetch(ctx context.Context, src Source, variation string) (analytics.Snapshot, error) {
	callCtx := ctx
	if o.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.callTimeout)
		defer cancel()
	}

	start := time.Now()
	snap, err := src.Adapter.Fetch(callCtx, variation)
	metrics.AdapterLatency.WithLabelValues(src.ID).Observe(time.Since(start).Seconds())
	if err != nil {
		return analytics.Snapshot{}, err
	}
	return snap, nil
}

// canceled builds the uncached result returned when the caller gives up.
func (o *Orchestrator) canceled(sourceID string, attempts int, err error) analytics.Snapshot {
	metrics.ProbesTotal.WithLabelValues(sourceID, "canceled").Inc()
	o.logger.Debug().Err(err).Str("source", sourceID).Msg("probe canceled")
	return analytics.NotFound(sourceID, "canceled: "+err.Error(), attempts)
}

func notConnectedReason(err error) string {
	if errors.Is(err, sources.ErrNotConnected) {
		return err.Error()
	}
	return ReasonNotConnected + ": " + err.Error()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
