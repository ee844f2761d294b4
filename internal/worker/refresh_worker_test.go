package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"studydash/internal/amqp"
	"studydash/internal/report"
	"studydash/internal/revenue"
	"studydash/internal/sheets/memory"
	"studydash/internal/sources"
)

type fakeDashboards struct {
	mu          sync.Mutex
	err         error
	calls       int
	invalidated int
}

func (f *fakeDashboards) Dashboard(ctx context.Context) (revenue.Dashboard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return revenue.Dashboard{}, f.err
	}
	return revenue.Dashboard{
		GeneratedAt: time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC),
		Summary:     revenue.Summary{TotalStudents: 3},
	}, nil
}

func (f *fakeDashboards) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated++
}

type fakeSnapshots struct {
	mu    sync.Mutex
	saved []sources.Snapshot
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, s sources.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, s)
	return nil
}

func (f *fakeSnapshots) LatestSnapshot(ctx context.Context) (sources.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return sources.Snapshot{}, sources.ErrNoSnapshot
	}
	return f.saved[len(f.saved)-1], nil
}

func (f *fakeSnapshots) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func TestRefresh(t *testing.T) {
	dashboards := &fakeDashboards{}
	snapshots := &fakeSnapshots{}
	sheet := memory.New()
	w := NewRefreshWorker(dashboards, snapshots, sheet)

	msg := amqp.NewLedgerChangedMessage(amqp.EntityPayments, 4)
	if err := w.HandleLedgerChanged(context.Background(), msg); err != nil {
		t.Fatalf("HandleLedgerChanged() error = %v", err)
	}

	if dashboards.invalidated != 1 || dashboards.calls != 1 {
		t.Errorf("expected one invalidate and compute, got %d/%d", dashboards.invalidated, dashboards.calls)
	}
	latest, err := snapshots.LatestSnapshot(context.Background())
	if err != nil {
		t.Fatalf("LatestSnapshot() error = %v", err)
	}
	if latest.Reason != "ledger:payments" {
		t.Errorf("reason = %q", latest.Reason)
	}
	var d revenue.Dashboard
	if err := json.Unmarshal(latest.Payload, &d); err != nil || d.Summary.TotalStudents != 3 {
		t.Errorf("payload not a dashboard: %v %s", err, latest.Payload)
	}

	tables, writes := sheet.Report()
	if writes != 1 || len(tables) != 5 || tables[0].Name != report.SheetSummary {
		t.Errorf("report not written: %d writes, %d tables", writes, len(tables))
	}
}

func TestRefreshWithoutReport(t *testing.T) {
	snapshots := &fakeSnapshots{}
	w := NewRefreshWorker(&fakeDashboards{}, snapshots, nil)
	if err := w.Refresh(context.Background(), ReasonInterval); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if snapshots.count() != 1 {
		t.Fatalf("expected a snapshot, got %d", snapshots.count())
	}
}

func TestRefreshFetchError(t *testing.T) {
	boom := errors.New("backend down")
	snapshots := &fakeSnapshots{}
	w := NewRefreshWorker(&fakeDashboards{err: boom}, snapshots, nil)

	if err := w.Refresh(context.Background(), ReasonInterval); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped fetch error, got %v", err)
	}
	if snapshots.count() != 0 {
		t.Error("no snapshot should be stored on failure")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	snapshots := &fakeSnapshots{}
	w := NewRefreshWorker(&fakeDashboards{}, snapshots, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for snapshots.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("worker did not refresh on the interval")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	snapshots.mu.Lock()
	reason := snapshots.saved[0].Reason
	snapshots.mu.Unlock()
	if reason != ReasonStartup {
		t.Errorf("first refresh reason = %q, want %q", reason, ReasonStartup)
	}
}
