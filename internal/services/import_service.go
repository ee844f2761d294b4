package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"studydash/internal/amqp"
	"studydash/internal/core"
	"studydash/internal/csvio"
	applog "studydash/internal/log"
	"studydash/internal/sources"
)

// ErrInvalidCSV wraps failures to read an upload at all, such as a missing
// required column. Row level problems are reported in ImportResult instead.
var ErrInvalidCSV = errors.New("invalid csv")

// Publisher announces ledger changes to the worker.
type Publisher interface {
	PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error
}

// Invalidator drops cached reads after a write.
type Invalidator interface {
	Invalidate()
}

// ImportResult is the outcome of a CSV import.
type ImportResult struct {
	Inserted int              `json:"inserted"`
	Failed   int              `json:"failed"`
	Errors   []csvio.RowError `json:"errors,omitempty"`
}

// ImportService stores CSV uploads in a writable source. Rows that fail to
// parse are reported and skipped; the remaining rows are saved as one batch.
type ImportService struct {
	payments  sources.PaymentWriter
	students  sources.StudentWriter
	publisher Publisher
	cache     Invalidator
	now       func() time.Time
}

// NewImportService wires the writers. A nil writer makes that entity
// read-only; a nil publisher or cache is skipped.
func NewImportService(payments sources.PaymentWriter, students sources.StudentWriter, publisher Publisher, cache Invalidator) *ImportService {
	return &ImportService{
		payments:  payments,
		students:  students,
		publisher: publisher,
		cache:     cache,
		now:       time.Now,
	}
}

// Writable reports whether imports are accepted at all.
func (s *ImportService) Writable() bool {
	return s != nil && s.payments != nil && s.students != nil
}

func (s *ImportService) ImportPayments(ctx context.Context, csvText string) (ImportResult, error) {
	if s == nil || s.payments == nil {
		return ImportResult{}, sources.ErrReadOnly
	}
	rows, rowErrors, err := csvio.ReadPayments(strings.NewReader(csvText))
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: payments: %w", ErrInvalidCSV, err)
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	for i := range rows {
		if rows[i].ID.IsZero() {
			rows[i].ID = core.ID(uuid.NewString())
		}
		if rows[i].CreatedAt == "" {
			rows[i].CreatedAt = stamp
		}
	}

	inserted := 0
	if len(rows) > 0 {
		if inserted, err = s.payments.SavePayments(ctx, rows); err != nil {
			return ImportResult{}, fmt.Errorf("save payments: %w", err)
		}
	}
	return s.finish(ctx, amqp.EntityPayments, inserted, rowErrors), nil
}

func (s *ImportService) ImportStudents(ctx context.Context, csvText string) (ImportResult, error) {
	if s == nil || s.students == nil {
		return ImportResult{}, sources.ErrReadOnly
	}
	rows, rowErrors, err := csvio.ReadStudents(strings.NewReader(csvText))
	if err != nil {
		return ImportResult{}, fmt.Errorf("%w: students: %w", ErrInvalidCSV, err)
	}

	stamp := s.now().UTC().Format(time.RFC3339)
	for i := range rows {
		if rows[i].ID.IsZero() {
			rows[i].ID = core.ID(uuid.NewString())
		}
		if rows[i].CreatedAt == "" {
			rows[i].CreatedAt = stamp
		}
	}

	inserted := 0
	if len(rows) > 0 {
		if inserted, err = s.students.SaveStudents(ctx, rows); err != nil {
			return ImportResult{}, fmt.Errorf("save students: %w", err)
		}
	}
	return s.finish(ctx, amqp.EntityStudents, inserted, rowErrors), nil
}

func (s *ImportService) finish(ctx context.Context, entity string, inserted int, rowErrors []csvio.RowError) ImportResult {
	result := ImportResult{Inserted: inserted, Failed: len(rowErrors), Errors: rowErrors}
	msg := amqp.NewLedgerChangedMessage(entity, inserted)
	applog.NewStructuredLogger(applog.FromContext(ctx)).LogImport(ctx, entity, result.Inserted, result.Failed, msg.BatchID)

	if inserted == 0 {
		return result
	}
	if s.cache != nil {
		s.cache.Invalidate()
	}
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping ledger change", "component", "import")
		return result
	}
	// the rows are stored; a lost notification only delays the worker's refresh
	if err := s.publisher.PublishLedgerChanged(ctx, msg); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger change", "component", "import", "entity", entity, "error", err)
	}
	return result
}
