package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/amqp"
	"studydash/internal/cache"
	"studydash/internal/core"
	"studydash/internal/csvio"
	"studydash/internal/revenue"
	"studydash/internal/sources"
	"studydash/internal/sources/memory"
)

var march20 = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	payments     []core.Payment
	students     []core.Student
	paymentsErr  error
	studentsErr  error
	paymentCalls atomic.Int32
}

func (f *fakeSource) ListPayments(ctx context.Context) ([]core.Payment, error) {
	f.paymentCalls.Add(1)
	return f.payments, f.paymentsErr
}

func (f *fakeSource) ListStudents(ctx context.Context) ([]core.Student, error) {
	return f.students, f.studentsErr
}

type fakePeriods struct {
	rollup core.PeriodRollup
	err    error
}

func (f fakePeriods) ReadCurrentPeriod(ctx context.Context) (core.PeriodRollup, error) {
	return f.rollup, f.err
}

type fakePublisher struct {
	msgs []*amqp.LedgerChangedMessage
	err  error
}

func (f *fakePublisher) PublishLedgerChanged(ctx context.Context, msg *amqp.LedgerChangedMessage) error {
	f.msgs = append(f.msgs, msg)
	return f.err
}

func sampleSource() *fakeSource {
	return &fakeSource{
		payments: []core.Payment{
			{ID: "1", StudentID: "1", Amount: decimal.NewFromInt(100), Type: "installment", Date: "2024-03-05", CreatedAt: "2024-03-05T09:00:00Z"},
			{ID: "2", StudentID: "1", Amount: decimal.NewFromInt(40), Type: "payout", Date: "2024-03-10"},
			{ID: "3", StudentID: "99", Amount: decimal.NewFromInt(25), Type: "installment", Date: "2024-02-10"},
		},
		students: []core.Student{{ID: "1", Name: "Asha", Zone: "North", CreatedAt: "2024-03-01"}},
	}
}

func newTestDashboardService(src *fakeSource, opts ...DashboardOption) *DashboardService {
	opts = append([]DashboardOption{
		WithLocation(time.UTC),
		WithClock(func() time.Time { return march20 }),
	}, opts...)
	return NewDashboardService(src, src, opts...)
}

func TestDashboardServiceBuilds(t *testing.T) {
	svc := newTestDashboardService(sampleSource())

	d, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if len(d.ZonesMonth.Rows) != 1 || d.ZonesMonth.Rows[0].Zone != "North" {
		t.Fatalf("unexpected zone rows %+v", d.ZonesMonth.Rows)
	}
	if !d.ZonesMonth.Rows[0].Net.Equal(decimal.NewFromInt(60)) {
		t.Errorf("North net = %s, want 60", d.ZonesMonth.Rows[0].Net)
	}
	if !d.Summary.ThisMonth.Net.Equal(decimal.NewFromInt(60)) {
		t.Errorf("this month net = %s, want 60", d.Summary.ThisMonth.Net)
	}
	if !d.Summary.LastMonth.Received.Equal(decimal.NewFromInt(25)) {
		t.Errorf("orphan payment missing from last month: %s", d.Summary.LastMonth.Received)
	}
	if d.Summary.Backend != nil {
		t.Error("backend comparison without a period reader")
	}
}

func TestDashboardServiceRecentOrdersByParsedDate(t *testing.T) {
	src := &fakeSource{
		payments: []core.Payment{
			{ID: "older", StudentID: "1", Amount: decimal.NewFromInt(10), Date: "Jan 2, 2020"},
			{ID: "old", StudentID: "1", Amount: decimal.NewFromInt(20), Date: "2023-01-02"},
			{ID: "new", StudentID: "1", Amount: decimal.NewFromInt(30), Date: "03/15/2024"},
		},
		students: []core.Student{{ID: "1", Name: "Asha", Zone: "North"}},
	}

	d, err := newTestDashboardService(src).Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	want := []core.ID{"new", "old", "older"}
	if len(d.Recent) != len(want) {
		t.Fatalf("recent = %+v", d.Recent)
	}
	for i, id := range want {
		if d.Recent[i].ID != id {
			t.Errorf("recent[%d] = %s, want %s", i, d.Recent[i].ID, id)
		}
	}
}

func TestDashboardServiceFetchErrors(t *testing.T) {
	boom := errors.New("backend down")
	tests := []struct {
		name string
		src  *fakeSource
	}{
		{"payments", &fakeSource{paymentsErr: boom}},
		{"students", &fakeSource{studentsErr: boom}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestDashboardService(tt.src).Dashboard(context.Background())
			if !errors.Is(err, boom) {
				t.Fatalf("expected wrapped fetch error, got %v", err)
			}
		})
	}
}

func TestDashboardServiceBackendRollup(t *testing.T) {
	rollup := core.PeriodRollup{
		Current:  core.PeriodFigures{Net: decimal.NewFromInt(1200), Students: 4},
		Previous: core.PeriodFigures{Net: decimal.NewFromInt(1000), Students: 4},
	}
	opts := revenue.Options{Summary: revenue.SummaryOptions{MoMSource: revenue.MoMFromBackend}}
	svc := newTestDashboardService(sampleSource(), WithPeriodReader(fakePeriods{rollup: rollup}), WithOptions(opts))

	d, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if d.Summary.Backend == nil || d.Summary.Headline.Text != "+20.0%" {
		t.Fatalf("backend headline not used: %+v", d.Summary)
	}

	// a failing roll-up is optional
	svc = newTestDashboardService(sampleSource(), WithPeriodReader(fakePeriods{err: errors.New("404")}))
	d, err = svc.Dashboard(context.Background())
	if err != nil || d.Summary.Backend != nil {
		t.Fatalf("roll-up failure should be ignored, got %v %+v", err, d.Summary.Backend)
	}
}

func TestDashboardServiceCache(t *testing.T) {
	src := sampleSource()
	svc := newTestDashboardService(src, WithCache(cache.NewLRUCache[Snapshot](1, time.Minute)))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Dashboard(ctx); err != nil {
			t.Fatalf("Dashboard() error = %v", err)
		}
	}
	if n := src.paymentCalls.Load(); n != 1 {
		t.Fatalf("expected one fetch while cached, got %d", n)
	}

	svc.Invalidate()
	if _, err := svc.Dashboard(ctx); err != nil {
		t.Fatalf("Dashboard() error = %v", err)
	}
	if n := src.paymentCalls.Load(); n != 2 {
		t.Fatalf("expected refetch after Invalidate, got %d", n)
	}
}

func TestDashboardServiceFilters(t *testing.T) {
	svc := newTestDashboardService(sampleSource())
	ctx := context.Background()

	byStudent, err := svc.Payments(ctx, sources.Filter{StudentID: "99"})
	if err != nil || len(byStudent) != 1 || byStudent[0].ID != "3" {
		t.Fatalf("student filter = %+v, %v", byStudent, err)
	}

	from := time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)
	recent, _ := svc.Payments(ctx, sources.Filter{CreatedFrom: from})
	if len(recent) != 1 || recent[0].ID != "2" {
		t.Fatalf("date filter = %+v", recent)
	}

	students, _ := svc.Students(ctx, sources.Filter{CreatedTo: time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)})
	if len(students) != 0 {
		t.Fatalf("expected no students created before March, got %+v", students)
	}
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

func TestImportPayments(t *testing.T) {
	store := memory.New(nil, nil)
	pub := &fakePublisher{}
	inv := &countingInvalidator{}
	svc := NewImportService(store, store, pub, inv)
	svc.now = func() time.Time { return march20 }

	csv := "student_id,installment_date,amount,payment_type\n" +
		"1,2024-03-05,100,installment\n" +
		"1,not-a-date,5,\n" +
		"2,2024-03-07,\"1,250.50\",payout\n"
	result, err := svc.ImportPayments(context.Background(), csv)
	if err != nil {
		t.Fatalf("ImportPayments() error = %v", err)
	}
	if result.Inserted != 2 || result.Failed != 1 || len(result.Errors) != 1 || result.Errors[0].RowNumber != 3 {
		t.Fatalf("unexpected result %+v", result)
	}

	saved, _ := store.ListPayments(context.Background())
	if len(saved) != 2 {
		t.Fatalf("expected 2 stored payments, got %d", len(saved))
	}
	for _, p := range saved {
		if p.ID.IsZero() || p.CreatedAt != "2024-03-20T12:00:00Z" {
			t.Errorf("import did not assign id/created_at: %+v", p)
		}
	}
	if inv.n != 1 {
		t.Errorf("cache invalidated %d times, want 1", inv.n)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].Entity != amqp.EntityPayments || pub.msgs[0].Inserted != 2 {
		t.Errorf("unexpected published messages %+v", pub.msgs)
	}
}

func TestImportStudentsPublishFailureIsNotFatal(t *testing.T) {
	store := memory.New(nil, nil)
	pub := &fakePublisher{err: amqp.ErrCircuitOpen}
	svc := NewImportService(store, store, pub, nil)

	result, err := svc.ImportStudents(context.Background(), "name,zone\nAsha,North\n")
	if err != nil {
		t.Fatalf("ImportStudents() error = %v", err)
	}
	if result.Inserted != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestImportErrors(t *testing.T) {
	readOnly := NewImportService(nil, nil, nil, nil)
	if readOnly.Writable() {
		t.Error("service without writers reports writable")
	}
	if _, err := readOnly.ImportPayments(context.Background(), "x"); !errors.Is(err, sources.ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}

	store := memory.New(nil, nil)
	svc := NewImportService(store, store, nil, nil)
	_, err := svc.ImportPayments(context.Background(), "foo,bar\n1,2\n")
	if !errors.Is(err, ErrInvalidCSV) || !errors.Is(err, csvio.ErrMissingColumn) {
		t.Errorf("expected invalid csv wrapping missing column, got %v", err)
	}

	// nothing importable means nothing to announce
	pub := &fakePublisher{}
	svc = NewImportService(store, store, pub, nil)
	result, err := svc.ImportStudents(context.Background(), "name\n\n")
	if err != nil || result.Inserted != 0 || len(pub.msgs) != 0 {
		t.Errorf("empty import = %+v, %v, published %d", result, err, len(pub.msgs))
	}
}
