package services

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"meurenda/internal/cache"
	"meurenda/internal/core"
	"meurenda/internal/metrics"
	"meurenda/internal/ports"
)

// Snapshot is one consistent read of a user's records and goals. Every
// derived figure is recomputed from it; nothing is aggregated incrementally.
type Snapshot struct {
	Records  []core.Record
	Goals    []core.Goal
	LoadedAt time.Time
}

// DashboardView is the statistics of one resolved window.
type DashboardView struct {
	Preset core.Preset
	Window core.Window
	Stats  core.Stats
}

// DailyReport is the per-day series of a window plus its totals.
type DailyReport struct {
	Preset core.Preset
	Window core.Window
	Days   []core.Bucket
	Totals core.Stats
}

// DashboardService answers read queries from cached snapshots. Concurrent
// loads for one user are coalesced and writes invalidate the cache.
type DashboardService struct {
	records ports.RecordReader
	goals   ports.GoalReader
	cal     core.Calendar
	now     func() time.Time

	snapshots cache.Cache[Snapshot]
	group     singleflight.Group

	// gen is bumped on every invalidation so a load that raced a write does
	// not put a stale snapshot back into the cache.
	mu  sync.Mutex
	gen map[string]uint64
}

type DashboardOption func(*DashboardService)

// WithClock overrides the time source used to resolve windows.
func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

// WithSnapshotCache replaces the default snapshot cache.
func WithSnapshotCache(c cache.Cache[Snapshot]) DashboardOption {
	return func(s *DashboardService) { s.snapshots = c }
}

func NewDashboardService(records ports.RecordReader, goals ports.GoalReader, cal core.Calendar, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		records:   records,
		goals:     goals,
		cal:       cal,
		now:       time.Now,
		snapshots: cache.NewLRUCache[Snapshot](256, time.Minute),
		gen:       make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Calendar returns the calendar windows are resolved with.
func (s *DashboardService) Calendar() core.Calendar {
	return s.cal
}

// Invalidate drops the cached snapshot of userID.
func (s *DashboardService) Invalidate(userID string) {
	s.mu.Lock()
	s.gen[userID]++
	s.mu.Unlock()

	s.snapshots.Delete(userID)
	s.group.Forget(userID)
}

func (s *DashboardService) generation(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen[userID]
}

// Snapshot returns the user's records and goals, from cache when possible.
func (s *DashboardService) Snapshot(ctx context.Context, userID string) (Snapshot, error) {
	if snap, ok := s.snapshots.Get(userID); ok {
		metrics.SnapshotLoads.WithLabelValues("cache").Inc()
		return snap, nil
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		gen := s.generation(userID)
		snap, err := s.load(ctx, userID)
		if err != nil {
			return Snapshot{}, err
		}
		if s.generation(userID) == gen {
			s.snapshots.Set(userID, snap)
		}
		return snap, nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	metrics.SnapshotLoads.WithLabelValues("store").Inc()
	return v.(Snapshot), nil
}

func (s *DashboardService) load(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		recs, err := s.records.ListRecords(gctx, userID)
		if err != nil {
			return fmt.Errorf("list records: %w", err)
		}
		snap.Records = recs
		return nil
	})
	g.Go(func() error {
		goals, err := s.goals.ListGoals(gctx, userID)
		if err != nil {
			return fmt.Errorf("list goals: %w", err)
		}
		snap.Goals = goals
		return nil
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	snap.LoadedAt = s.now()
	return snap, nil
}

// Records lists the user's records, most recent occurrence first.
func (s *DashboardService) Records(ctx context.Context, userID string) ([]core.Record, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := append([]core.Record(nil), snap.Records...)
	slices.SortStableFunc(out, func(a, b core.Record) int {
		if c := b.OccurredAt.Compare(a.OccurredAt); c != 0 {
			return c
		}
		return b.RecordedAt.Compare(a.RecordedAt)
	})
	return out, nil
}

// Goals lists the user's goals, oldest first.
func (s *DashboardService) Goals(ctx context.Context, userID string) ([]core.Goal, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := append([]core.Goal(nil), snap.Goals...)
	slices.SortStableFunc(out, func(a, b core.Goal) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

// Dashboard aggregates the window named by preset. from and to are only
// read for the custom preset.
func (s *DashboardService) Dashboard(ctx context.Context, userID string, preset core.Preset, from, to time.Time) (DashboardView, error) {
	w, err := s.cal.Resolve(preset, s.now(), from, to)
	if err != nil {
		return DashboardView{}, err
	}
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		Preset: preset,
		Window: w,
		Stats:  core.Aggregate(snap.Records, w),
	}, nil
}

// Projections computes one projection per goal against the current instant.
func (s *DashboardService) Projections(ctx context.Context, userID string) ([]core.Projection, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return core.ProjectAll(snap.Goals, snap.Records, s.now(), s.cal), nil
}

// DailyReport builds the day-by-day series of the window named by preset.
func (s *DashboardService) DailyReport(ctx context.Context, userID string, preset core.Preset, from, to time.Time) (DailyReport, error) {
	w, err := s.cal.Resolve(preset, s.now(), from, to)
	if err != nil {
		return DailyReport{}, err
	}
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return DailyReport{}, err
	}
	return DailyReport{
		Preset: preset,
		Window: w,
		Days:   core.DailySeries(snap.Records, w),
		Totals: core.Aggregate(snap.Records, w),
	}, nil
}
