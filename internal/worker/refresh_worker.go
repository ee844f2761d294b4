// Package worker recomputes the dashboard in the background, stores a
// snapshot and publishes the spreadsheet report.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"studydash/internal/amqp"
	"studydash/internal/report"
	"studydash/internal/revenue"
	"studydash/internal/sheets"
	"studydash/internal/sources"
)

// Refresh reasons stored with each snapshot
const (
	ReasonStartup  = "startup"
	ReasonInterval = "interval"
	ReasonLedger   = "ledger"
)

// Dashboards computes a fresh dashboard on demand.
type Dashboards interface {
	Dashboard(ctx context.Context) (revenue.Dashboard, error)
	Invalidate()
}

type RefreshWorker struct {
	dashboards Dashboards
	snapshots  sources.SnapshotStore
	report     sheets.ReportWriter

	mu sync.Mutex
}

// NewRefreshWorker wires the worker. report may be nil when no spreadsheet
// is configured.
func NewRefreshWorker(dashboards Dashboards, snapshots sources.SnapshotStore, report sheets.ReportWriter) *RefreshWorker {
	return &RefreshWorker{
		dashboards: dashboards,
		snapshots:  snapshots,
		report:     report,
	}
}

// Refresh drops cached data, recomputes the dashboard, stores it and
// publishes the report. Concurrent calls run one after another.
func (w *RefreshWorker) Refresh(ctx context.Context, reason string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	start := time.Now()
	w.dashboards.Invalidate()
	d, err := w.dashboards.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("compute dashboard: %w", err)
	}

	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dashboard: %w", err)
	}
	if err := w.snapshots.SaveSnapshot(ctx, sources.Snapshot{
		GeneratedAt: d.GeneratedAt,
		Reason:      reason,
		Payload:     payload,
	}); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if w.report != nil {
		if err := w.report.WriteReport(ctx, report.Tables(d)); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	slog.InfoContext(ctx, "Dashboard refreshed",
		"component", "worker",
		"reason", reason,
		"bytes", len(payload),
		"report", w.report != nil,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// HandleLedgerChanged refreshes after an import.
func (w *RefreshWorker) HandleLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	slog.InfoContext(ctx, "Ledger change received",
		"component", "worker",
		"batch_id", msg.BatchID,
		"entity", msg.Entity,
		"inserted", msg.Inserted)
	return w.Refresh(ctx, ReasonLedger+":"+msg.Entity)
}

// Run refreshes once, then every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (w *RefreshWorker) Run(ctx context.Context, interval time.Duration) {
	if err := w.Refresh(ctx, ReasonStartup); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "Startup refresh failed", "component", "worker", "error", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Refresh(ctx, ReasonInterval); err != nil && ctx.Err() == nil {
				slog.ErrorContext(ctx, "Periodic refresh failed", "component", "worker", "error", err)
			}
		}
	}
}
