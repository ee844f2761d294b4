package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/shopspring/decimal"
)

func TestListPaymentsPages(t *testing.T) {
	all := []map[string]any{
		{"id": 1, "student_id": 7, "installment_date": "2024-03-05", "amount": 100, "payment_type": "installment", "installment_number": "2"},
		{"id": "2", "student_id": "7", "installment_date": "2024-03-10", "amount": "40.50", "payment_type": "Payout"},
		{"id": 3, "student_id": 8, "installment_date": "2024-02-01", "amount": 10, "payment_recieved_in": "Bank"},
	}
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/api/payments" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Query().Get("sort_by") != "installment_date" || r.URL.Query().Get("sort_dir") != "desc" {
			t.Errorf("missing sort params: %s", r.URL.RawQuery)
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		end := offset + limit
		if end > len(all) {
			end = len(all)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"success": true, "items": all[offset:end], "total": len(all), "limit": limit, "offset": offset,
		})
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/", WithToken("secret"), WithPageSize(2))
	payments, err := c.ListPayments(context.Background())
	if err != nil {
		t.Fatalf("ListPayments() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 page requests, got %d", calls)
	}
	if len(payments) != 3 {
		t.Fatalf("expected 3 payments, got %d", len(payments))
	}
	if payments[0].ID != "1" || payments[0].StudentID != "7" || payments[0].InstallmentNumber != 2 {
		t.Errorf("unexpected first payment %+v", payments[0])
	}
	if !payments[1].Amount.Equal(decimal.RequireFromString("40.5")) || payments[1].Type != "Payout" {
		t.Errorf("unexpected second payment %+v", payments[1])
	}
	if payments[2].ReceivedIn != "Bank" {
		t.Errorf("payment_recieved_in not mapped: %+v", payments[2])
	}
}

func TestListStudentsFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[
			{"id":1,"name":"Asha","zone":"North","intake_year":2024,"recieved_amount":500,"net_amount":null,"phone":9876543210},
			{"id":2,"name":"Ravi","intake_year":"2023-09-01","received_amount":"75","total_payout_amount":10}
		],"total":2,"limit":500,"offset":0}`))
	}))
	defer srv.Close()

	students, err := New(srv.URL).ListStudents(context.Background())
	if err != nil {
		t.Fatalf("ListStudents() error = %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %d", len(students))
	}
	a, r := students[0], students[1]
	if a.IntakeYear != "2024" || a.Phone != "9876543210" {
		t.Errorf("loose fields not decoded: %+v", a)
	}
	if !a.ReceivedAmount.Valid || !a.ReceivedAmount.Decimal.Equal(decimal.NewFromInt(500)) {
		t.Errorf("recieved_amount not mapped: %+v", a.ReceivedAmount)
	}
	if a.NetAmount.Valid || a.PayoutAmount.Valid {
		t.Errorf("absent roll-ups should be invalid: %+v", a)
	}
	if !r.ReceivedAmount.Valid || !r.ReceivedAmount.Decimal.Equal(decimal.NewFromInt(75)) {
		t.Errorf("received_amount not mapped: %+v", r.ReceivedAmount)
	}
	if !r.PayoutAmount.Valid || r.ZoneName() != "Unknown" {
		t.Errorf("unexpected second student %+v", r)
	}
}

func TestReadCurrentPeriod(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/dashboard/net-revenue/month/current" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"success":true,"period":{"from":"2024-03-01","to":"2024-03-31"},
			"totalRevenue":1200,"totalPayout":200,"netRevenue":1000,"totalStudents":4,
			"lastPeriod":{"totalRevenue":900,"totalPayout":100,"netRevenue":800,"totalStudents":3}}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL).ReadCurrentPeriod(context.Background())
	if err != nil {
		t.Fatalf("ReadCurrentPeriod() error = %v", err)
	}
	if !got.Current.Net.Equal(decimal.NewFromInt(1000)) || got.Current.Students != 4 {
		t.Errorf("unexpected current %+v", got.Current)
	}
	if !got.Previous.Net.Equal(decimal.NewFromInt(800)) || got.Previous.Students != 3 {
		t.Errorf("unexpected previous %+v", got.Previous)
	}
}

func TestStatusError(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"error shape", `{"error":"token expired","code":401}`, "token expired"},
		{"plain body", `oops`, "401 Unauthorized"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL).ListStudents(context.Background())
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.Status != http.StatusUnauthorized || se.Message != tt.wantMsg {
				t.Errorf("unexpected error %+v", se)
			}
		})
	}
}

func TestContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[],"total":0}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New(srv.URL).ListPayments(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
