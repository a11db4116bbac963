package handlers

import (
	"context"
	"sync"

	"github.com/Togather-Foundation/sitelens/internal/analytics"
	"github.com/Togather-Foundation/sitelens/internal/matchcache"
	"github.com/Togather-Foundation/sitelens/internal/probe"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/rs/zerolog"
)

// stubAdapter answers every variation with the same snapshot.
type stubAdapter struct {
	mu     sync.Mutex
	calls  int
	snap   analytics.Snapshot
	status error
}

func (s *stubAdapter) Fetch(ctx context.Context, variation string) (analytics.Snapshot, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.snap, nil
}

func (s *stubAdapter) Status(ctx context.Context) error {
	return s.status
}

func (s *stubAdapter) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func searchAdapter() *stubAdapter {
	return &stubAdapter{snap: analytics.Snapshot{
		Search: &analytics.SearchMetrics{Clicks: 40, Impressions: 1000, CTR: 0.04, Position: 5},
	}}
}

func behaviorAdapter() *stubAdapter {
	return &stubAdapter{snap: analytics.Snapshot{
		Behavior: &analytics.BehaviorMetrics{Users: 30, Sessions: 35, PageViews: 60, BounceRate: 0.4},
	}}
}

func newTestService() *reconcile.Service {
	orch := probe.NewOrchestrator(matchcache.New(), zerolog.Nop(), probe.WithDelays(0, 0))
	return reconcile.NewService(orch, zerolog.Nop())
}
