package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"studydash/internal/core"
	"studydash/internal/revenue"
)

func sampleDashboard() revenue.Dashboard {
	payments := []core.Payment{
		{ID: "2", StudentID: "1", Amount: decimal.NewFromInt(40), Type: "payout", Date: "2024-03-10"},
		{ID: "1", StudentID: "1", Amount: decimal.RequireFromString("100.5"), Type: "installment", Date: "2024-03-05"},
	}
	students := []core.Student{{ID: "1", Name: "Asha", Zone: "North", CreatedAt: "2024-03-01"}}
	cal := core.NewCalendar(time.UTC, time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC))
	return revenue.Build(payments, students, cal, revenue.Options{})
}

func TestTables(t *testing.T) {
	tables := Tables(sampleDashboard())

	want := []string{SheetSummary, SheetMonthly, SheetRolling, SheetYearly, SheetZones}
	if len(tables) != len(want) {
		t.Fatalf("got %d tables, want %d", len(tables), len(want))
	}
	for i, name := range want {
		if tables[i].Name != name {
			t.Errorf("table %d = %s, want %s", i, tables[i].Name, name)
		}
	}
	if n := len(tables[1].Rows); n != 12 {
		t.Errorf("monthly rows = %d, want 12", n)
	}
	if n := len(tables[3].Rows); n != 4 {
		t.Errorf("yearly rows = %d, want 4", n)
	}

	zones := tables[4]
	if len(zones.Rows) != 2 {
		t.Fatalf("expected month and year rows for North, got %v", zones.Rows)
	}
	if zones.Rows[0][0] != "2024-03" || zones.Rows[1][0] != "2024" {
		t.Errorf("unexpected zone windows %v", zones.Rows)
	}

	values := zones.Values()
	if values[0][1] != "Zone" || values[1][4] != "60.5" {
		t.Errorf("unexpected text values %v", values)
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleDashboard()); err != nil {
		t.Fatalf("WriteXLSX() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != 5 || sheets[0] != SheetSummary || sheets[4] != SheetZones {
		t.Fatalf("unexpected sheets %v", sheets)
	}

	tests := []struct {
		sheet, cell, want string
	}{
		{SheetSummary, "A1", "Metric"},
		{SheetSummary, "B3", "1"},
		{SheetZones, "B2", "North"},
		{SheetZones, "E2", "60.5"},
		{SheetMonthly, "A4", "Mar"},
	}
	for _, tt := range tests {
		got, err := f.GetCellValue(tt.sheet, tt.cell)
		if err != nil {
			t.Fatalf("GetCellValue(%s, %s) error = %v", tt.sheet, tt.cell, err)
		}
		if got != tt.want {
			t.Errorf("%s!%s = %q, want %q", tt.sheet, tt.cell, got, tt.want)
		}
	}
}
