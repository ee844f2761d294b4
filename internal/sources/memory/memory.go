// Package memory is an in-process payment and student store, seeded from
// CSV files for local development and tests.
package memory

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"studydash/internal/core"
	"studydash/internal/csvio"
)

const (
	PaymentsFile = "payments.csv"
	StudentsFile = "students.csv"
)

type Store struct {
	mu       sync.RWMutex
	payments []core.Payment
	students []core.Student
}

func New(payments []core.Payment, students []core.Student) *Store {
	s := &Store{}
	s.payments = upsertPayments(nil, payments)
	s.students = upsertStudents(nil, students)
	return s
}

// NewFromFiles seeds the store from payments.csv and students.csv in base.
// Missing files leave the store empty; bad rows are logged and skipped.
func NewFromFiles(base string) *Store {
	var payments []core.Payment
	var students []core.Student

	if f, err := os.Open(filepath.Join(base, PaymentsFile)); err == nil {
		rows, rowErrors, err := csvio.ReadPayments(f)
		f.Close()
		logSeed(PaymentsFile, len(rows), rowErrors, err)
		payments = rows
	}
	if f, err := os.Open(filepath.Join(base, StudentsFile)); err == nil {
		rows, rowErrors, err := csvio.ReadStudents(f)
		f.Close()
		logSeed(StudentsFile, len(rows), rowErrors, err)
		students = rows
	}
	return New(payments, students)
}

func logSeed(file string, loaded int, rowErrors []csvio.RowError, err error) {
	if err != nil {
		slog.Warn("Failed to read seed file", "file", file, "error", err)
		return
	}
	slog.Info("Seed file loaded", "file", file, "rows", loaded, "rejected", len(rowErrors))
	for _, re := range rowErrors {
		slog.Debug("Seed row rejected", "file", file, "row", re.RowNumber, "error", re.Message)
	}
}

// ListPayments returns payments newest installment first.
func (s *Store) ListPayments(_ context.Context) ([]core.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Payment(nil), s.payments...), nil
}

func (s *Store) ListStudents(_ context.Context) ([]core.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Student(nil), s.students...), nil
}

// SavePayments inserts or replaces payments by id.
func (s *Store) SavePayments(_ context.Context, payments []core.Payment) (int, error) {
	for _, p := range payments {
		if err := p.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = upsertPayments(s.payments, payments)
	return len(payments), nil
}

// SaveStudents inserts or replaces students by id.
func (s *Store) SaveStudents(_ context.Context, students []core.Student) (int, error) {
	for _, st := range students {
		if err := st.Validate(); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students = upsertStudents(s.students, students)
	return len(students), nil
}

func upsertPayments(existing, incoming []core.Payment) []core.Payment {
	pos := make(map[core.ID]int, len(existing))
	for i, p := range existing {
		pos[p.ID] = i
	}
	for _, p := range incoming {
		if i, ok := pos[p.ID]; ok && !p.ID.IsZero() {
			existing[i] = p
			continue
		}
		pos[p.ID] = len(existing)
		existing = append(existing, p)
	}
	core.NewCalendar(time.Local, time.Now()).SortNewestFirst(existing)
	return existing
}

func upsertStudents(existing, incoming []core.Student) []core.Student {
	pos := make(map[core.ID]int, len(existing))
	for i, s := range existing {
		pos[s.ID] = i
	}
	for _, s := range incoming {
		if i, ok := pos[s.ID]; ok && !s.ID.IsZero() {
			existing[i] = s
			continue
		}
		pos[s.ID] = len(existing)
		existing = append(existing, s)
	}
	return existing
}
