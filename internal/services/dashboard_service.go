package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"studydash/internal/cache"
	"studydash/internal/core"
	"studydash/internal/revenue"
	"studydash/internal/sources"
)

const snapshotKey = "snapshot"

// Snapshot is one consistent read of both collections.
type Snapshot struct {
	Payments  []core.Payment
	Students  []core.Student
	Backend   *core.PeriodRollup
	FetchedAt time.Time
}

// DashboardService fetches payments and students and runs the revenue
// engine over them. Fetched snapshots are cached for the configured TTL.
type DashboardService struct {
	payments sources.PaymentLister
	students sources.StudentLister
	periods  sources.PeriodReader

	snapshots cache.Cache[Snapshot]
	loc       *time.Location
	opts      revenue.Options
	now       func() time.Time
}

type DashboardOption func(*DashboardService)

// WithPeriodReader adds the backend's own month roll-up to every summary.
func WithPeriodReader(r sources.PeriodReader) DashboardOption {
	return func(s *DashboardService) { s.periods = r }
}

func WithCache(c cache.Cache[Snapshot]) DashboardOption {
	return func(s *DashboardService) { s.snapshots = c }
}

func WithLocation(loc *time.Location) DashboardOption {
	return func(s *DashboardService) { s.loc = loc }
}

func WithOptions(opts revenue.Options) DashboardOption {
	return func(s *DashboardService) { s.opts = opts }
}

func WithClock(now func() time.Time) DashboardOption {
	return func(s *DashboardService) { s.now = now }
}

func NewDashboardService(payments sources.PaymentLister, students sources.StudentLister, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		payments:  payments,
		students:  students,
		snapshots: cache.NewLRUCache[Snapshot](1, 0),
		loc:       time.Local,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns the configured aggregation options.
func (s *DashboardService) Options() revenue.Options { return s.opts }

// Calendar is the calendar used for the next computation.
func (s *DashboardService) Calendar() core.Calendar {
	return core.NewCalendar(s.loc, s.now())
}

// Fetch reads payments and students concurrently. Either error is returned
// as is; the backend period roll-up is optional and only logged on failure.
func (s *DashboardService) Fetch(ctx context.Context) (Snapshot, error) {
	if snap, ok := s.snapshots.Get(snapshotKey); ok {
		slog.DebugContext(ctx, "Snapshot served from cache", "component", "dashboard", "cache_hit", true)
		return snap, nil
	}

	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		payments, err := s.payments.ListPayments(gctx)
		if err != nil {
			return fmt.Errorf("fetch payments: %w", err)
		}
		snap.Payments = payments
		return nil
	})
	g.Go(func() error {
		students, err := s.students.ListStudents(gctx)
		if err != nil {
			return fmt.Errorf("fetch students: %w", err)
		}
		snap.Students = students
		return nil
	})
	if s.periods != nil {
		g.Go(func() error {
			rollup, err := s.periods.ReadCurrentPeriod(gctx)
			if err != nil {
				slog.WarnContext(ctx, "Backend period roll-up unavailable", "component", "dashboard", "error", err)
				return nil
			}
			snap.Backend = &rollup
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}

	// payments are expected newest first, whatever the source did
	s.Calendar().SortNewestFirst(snap.Payments)
	snap.FetchedAt = s.now()
	s.snapshots.Set(snapshotKey, snap)

	slog.InfoContext(ctx, "Snapshot fetched",
		"component", "dashboard",
		"payments", len(snap.Payments),
		"students", len(snap.Students),
		"backend_rollup", snap.Backend != nil)
	return snap, nil
}

// Dashboard computes the dashboard with the configured options.
func (s *DashboardService) Dashboard(ctx context.Context) (revenue.Dashboard, error) {
	return s.DashboardWith(ctx, s.opts)
}

// DashboardWith computes the dashboard with per-request options.
func (s *DashboardService) DashboardWith(ctx context.Context, opts revenue.Options) (revenue.Dashboard, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return revenue.Dashboard{}, err
	}
	if snap.Backend != nil {
		opts.Summary.Backend = snap.Backend
	}
	start := time.Now()
	d := revenue.Build(snap.Payments, snap.Students, s.Calendar(), opts)
	slog.DebugContext(ctx, "Dashboard computed", "component", "dashboard", "duration_ms", time.Since(start).Milliseconds())
	return d, nil
}

// Invalidate drops the cached snapshot so the next call refetches.
func (s *DashboardService) Invalidate() {
	s.snapshots.Purge()
}

// Payments returns payments matching f, newest first. The date bounds apply
// to the record's created_at, or to the installment date when created_at is
// empty.
func (s *DashboardService) Payments(ctx context.Context, f sources.Filter) ([]core.Payment, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	cal := s.Calendar()
	var out []core.Payment
	for _, p := range snap.Payments {
		if !f.StudentID.IsZero() && p.StudentID != f.StudentID {
			continue
		}
		stamp := p.CreatedAt
		if stamp == "" {
			stamp = p.Date
		}
		if !inRange(cal.Parse(stamp), f, cal) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Students returns students matching f. StudentID selects a single student.
func (s *DashboardService) Students(ctx context.Context, f sources.Filter) ([]core.Student, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	cal := s.Calendar()
	var out []core.Student
	for _, st := range snap.Students {
		if !f.StudentID.IsZero() && st.ID != f.StudentID {
			continue
		}
		if (!f.CreatedFrom.IsZero() || !f.CreatedTo.IsZero()) && !core.ValidDate(st.CreatedAt) {
			continue
		}
		if !inRange(cal.Parse(st.CreatedAt), f, cal) {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func inRange(d core.Date, f sources.Filter, cal core.Calendar) bool {
	if !f.CreatedFrom.IsZero() && d.Before(core.Truncate(f.CreatedFrom, cal.Location).Time) {
		return false
	}
	if !f.CreatedTo.IsZero() && d.After(core.Truncate(f.CreatedTo, cal.Location).Time) {
		return false
	}
	return true
}
