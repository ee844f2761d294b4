// Package sources defines where payment and student snapshots come from.
package sources

import (
	"context"
	"errors"
	"time"

	"studydash/internal/core"
)

var (
	// ErrReadOnly is returned by sources that cannot store records.
	ErrReadOnly = errors.New("source is read-only")
	// ErrNoSnapshot is returned when no dashboard snapshot was stored yet.
	ErrNoSnapshot = errors.New("no dashboard snapshot")
)

// Ports for inbound data and outbound persistence.
type (
	// PaymentLister returns every payment, newest installment first.
	PaymentLister interface {
		ListPayments(ctx context.Context) ([]core.Payment, error)
	}

	StudentLister interface {
		ListStudents(ctx context.Context) ([]core.Student, error)
	}

	// PeriodReader returns the backend's own current-month roll-up.
	PeriodReader interface {
		ReadCurrentPeriod(ctx context.Context) (core.PeriodRollup, error)
	}

	// PaymentWriter inserts or replaces payments by id.
	PaymentWriter interface {
		SavePayments(ctx context.Context, payments []core.Payment) (saved int, err error)
	}

	// StudentWriter inserts or replaces students by id.
	StudentWriter interface {
		SaveStudents(ctx context.Context, students []core.Student) (saved int, err error)
	}

	// SnapshotStore keeps serialised dashboards computed by the worker.
	SnapshotStore interface {
		SaveSnapshot(ctx context.Context, s Snapshot) error
		LatestSnapshot(ctx context.Context) (Snapshot, error)
	}
)

// Snapshot is a stored dashboard payload.
type Snapshot struct {
	ID          int64
	GeneratedAt time.Time
	Reason      string
	Payload     []byte
}

// Filter narrows an export.
type Filter struct {
	StudentID   core.ID
	CreatedFrom time.Time // inclusive, zero means unbounded
	CreatedTo   time.Time // inclusive, zero means unbounded
}
