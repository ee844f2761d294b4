package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/revenue"
)

func TestParseDashboardOptions(t *testing.T) {
	base := revenue.Options{RollingMonths: 6, ZoneNet: revenue.NetSigned}

	tests := []struct {
		name    string
		query   url.Values
		check   func(t *testing.T, o revenue.Options)
		wantErr string
	}{
		{
			name:  "no overrides keeps base",
			query: url.Values{},
			check: func(t *testing.T, o revenue.Options) {
				if o.RollingMonths != 6 || o.ZoneMonth.Year != 0 {
					t.Errorf("options changed: %+v", o)
				}
			},
		},
		{
			name: "all overrides",
			query: url.Values{
				"month": {"2024-02"}, "year": {"2023"}, "net": {"clamped"},
				"rank": {"received"}, "rolling": {"12"}, "mom": {"backend"},
			},
			check: func(t *testing.T, o revenue.Options) {
				if o.ZoneMonth != revenue.MonthWindow(2024, time.February) {
					t.Errorf("ZoneMonth = %v", o.ZoneMonth)
				}
				if o.ZoneYear != 2023 || o.ZoneNet != revenue.NetClamped || o.ZoneRank != revenue.RankByReceived {
					t.Errorf("zone options = %+v", o)
				}
				if o.RollingMonths != 12 || o.Summary.MoMSource != revenue.MoMFromBackend {
					t.Errorf("rolling/mom = %d/%v", o.RollingMonths, o.Summary.MoMSource)
				}
			},
		},
		{name: "year is not a month", query: url.Values{"month": {"2024"}}, wantErr: "invalid month"},
		{name: "month is not a year", query: url.Values{"year": {"2024-03"}}, wantErr: "invalid year"},
		{name: "bad net", query: url.Values{"net": {"gross"}}, wantErr: "invalid net policy"},
		{name: "rolling out of range", query: url.Values{"rolling": {"0"}}, wantErr: "invalid rolling"},
		{name: "problems are joined", query: url.Values{"rank": {"x"}, "mom": {"y"}}, wantErr: "; "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDashboardOptions(tt.query, base)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, got)
		})
	}
}

func TestParseExportFilter(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)

	f, err := ParseExportFilter(url.Values{
		"student_id":   {" 42\x00 "},
		"created_from": {"2024-01-01"},
		"created_to":   {"2024-01-31"},
	}, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.StudentID != "42" {
		t.Errorf("StudentID = %q", f.StudentID)
	}
	if !f.CreatedFrom.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, loc)) || f.CreatedTo.Location() != loc {
		t.Errorf("bounds = %v .. %v", f.CreatedFrom, f.CreatedTo)
	}

	bad := []url.Values{
		{"created_from": {"01/02/2024"}},
		{"created_to": {"2024-13-01"}},
		{"created_from": {"2024-02-01"}, "created_to": {"2024-01-01"}},
	}
	for _, q := range bad {
		if _, err := ParseExportFilter(q, loc); err == nil {
			t.Errorf("expected error for %v", q)
		}
	}
}

func TestDecodeImportBody(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
		wantErr     bool
	}{
		{"json", "application/json", `{"csv":"name\nAsha\n"}`, "name\nAsha\n", false},
		{"json without content type", "", `{"csv":"a,b"}`, "a,b", false},
		{"raw csv", "text/csv; charset=utf-8", "name\nAsha\n", "name\nAsha\n", false},
		{"empty csv member", "application/json", `{"csv":"  "}`, "", true},
		{"not json", "application/json", `name,zone`, "", true},
		{"too large", "text/csv", strings.Repeat("a", maxImportBytes+1), "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/students/import-csv", strings.NewReader(tt.body))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			got, err := DecodeImportBody(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "0.00"},
		{"999.5", "999.50"},
		{"1000", "1,000.00"},
		{"1250000.456", "1,250,000.46"},
		{"-20000", "-20,000.00"},
		{"-0.004", "0.00"},
		{"-0.005", "-0.01"},
	}
	for _, tt := range tests {
		if got := formatAmount(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("formatAmount(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
