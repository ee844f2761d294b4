// Package report flattens a dashboard into tables for spreadsheet exports.
package report

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/revenue"
)

// Sheet names, in workbook order.
const (
	SheetSummary = "Summary"
	SheetMonthly = "Monthly"
	SheetRolling = "Rolling"
	SheetYearly  = "Yearly"
	SheetZones   = "Zones"
)

// Table is one sheet. Cells hold strings, ints or decimals.
type Table struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Tables returns the report sheets for d.
func Tables(d revenue.Dashboard) []Table {
	return []Table{
		summaryTable(d),
		seriesTable(SheetMonthly, "Month", d.Monthly),
		seriesTable(SheetRolling, "Month", d.Rolling),
		seriesTable(SheetYearly, "Year", d.Yearly),
		zonesTable(d.ZonesMonth, d.ZonesYear),
	}
}

func summaryTable(d revenue.Dashboard) Table {
	s := d.Summary
	rows := [][]any{
		{"Generated at", d.GeneratedAt.Format(time.RFC3339)},
		{"Total students", s.TotalStudents},
		{"Total received", s.TotalReceived},
		{"Total payout", s.TotalPayout},
		{"Total net", s.TotalNet},
		{"Intake " + strconv.Itoa(s.Intake.Year) + " students", s.Intake.Students},
		{"Intake " + strconv.Itoa(s.Intake.Year) + " net", s.Intake.Net},
		{"Net " + s.ThisMonth.Window.Key(), s.ThisMonth.Net},
		{"Net " + s.LastMonth.Window.Key(), s.LastMonth.Net},
		{"Net month over month", s.NetMoM.Text},
		{"New students this month", s.NewStudents.ThisMonth},
		{"New students last month", s.NewStudents.LastMonth},
		{"New students month over month", s.NewStudents.Delta.Text},
	}
	if s.Backend != nil {
		rows = append(rows,
			[]any{"Backend net this month", s.Backend.Current.Net},
			[]any{"Backend net last month", s.Backend.Previous.Net},
			[]any{"Backend net month over month", s.Backend.NetMoM.Text},
		)
	}
	rows = append(rows, []any{"Headline (" + s.MoMSource + ")", s.Headline.Text})
	return Table{Name: SheetSummary, Header: []string{"Metric", "Value"}, Rows: rows}
}

func seriesTable(name, period string, points []revenue.Point) Table {
	t := Table{Name: name, Header: []string{period, "Key", "Received", "Payout", "Net"}}
	for _, p := range points {
		t.Rows = append(t.Rows, []any{p.Label, p.Key, p.Received, p.Payout, p.Net})
	}
	return t
}

func zonesTable(breakdowns ...revenue.ZoneBreakdown) Table {
	t := Table{Name: SheetZones, Header: []string{"Window", "Zone", "Received", "Payout", "Net"}}
	for _, b := range breakdowns {
		for _, r := range b.Rows {
			t.Rows = append(t.Rows, []any{b.Window.Key(), r.Zone, r.Received, r.Payout, r.Net})
		}
	}
	return t
}

// Values renders t as text rows, header first, for APIs that take strings.
func (t Table) Values() [][]any {
	out := make([][]any, 0, len(t.Rows)+1)
	header := make([]any, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	out = append(out, header)
	for _, row := range t.Rows {
		cells := make([]any, len(row))
		for i, c := range row {
			switch v := c.(type) {
			case decimal.Decimal:
				cells[i] = v.String()
			default:
				cells[i] = v
			}
		}
		out = append(out, cells)
	}
	return out
}
