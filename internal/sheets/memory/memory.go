// Package memory keeps the last published report in process. It stands in
// for Google Sheets in tests and local runs.
package memory

import (
	"context"
	"sync"

	"studydash/internal/report"
	"studydash/internal/sheets"
)

var _ sheets.ReportWriter = (*Store)(nil)

type Store struct {
	mu     sync.Mutex
	tables []report.Table
	writes int
}

func New() *Store {
	return &Store{}
}

// WriteReport replaces the stored report.
func (s *Store) WriteReport(_ context.Context, tables []report.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append([]report.Table(nil), tables...)
	s.writes++
	return nil
}

// Report returns the last written tables and how many writes happened.
func (s *Store) Report() ([]report.Table, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]report.Table(nil), s.tables...), s.writes
}

// Grid returns the last report laid out as the spreadsheet adapter writes it.
func (s *Store) Grid() [][]any {
	tables, _ := s.Report()
	return sheets.Layout(tables)
}
