// Package sheets publishes the revenue report to spreadsheets.
package sheets

import (
	"context"

	"studydash/internal/report"
)

// Ports for outbound adapters.
type (
	// ReportWriter replaces the published report with tables.
	ReportWriter interface {
		WriteReport(ctx context.Context, tables []report.Table) error
	}
)

// Layout stacks tables into one grid: a title row, the header, the rows,
// and a blank separator row between tables.
func Layout(tables []report.Table) [][]any {
	var grid [][]any
	for i, t := range tables {
		if i > 0 {
			grid = append(grid, []any{})
		}
		grid = append(grid, []any{t.Name})
		grid = append(grid, t.Values()...)
	}
	return grid
}
