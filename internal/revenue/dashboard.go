package revenue

import (
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

// DefaultRecentLimit is how many payments the recent list holds.
const DefaultRecentLimit = 5

// Options configure Build. The zero value renders the current month and
// year with signed nets.
type Options struct {
	ZoneMonth     Window // zero means the current month
	ZoneYear      int    // zero means the current year
	ZoneNet       NetPolicy
	ZoneRank      RankBy
	CalendarNet   NetPolicy
	RollingNet    NetPolicy
	RollingMonths int
	RecentLimit   int
	Summary       SummaryOptions
}

// RecentPayment is a payment joined with its student's display fields.
type RecentPayment struct {
	ID          core.ID         `json:"id"`
	StudentID   core.ID         `json:"studentId"`
	StudentName string          `json:"studentName,omitempty"`
	Zone        string          `json:"zone,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	Type        string          `json:"paymentType"`
	Payout      bool            `json:"payout"`
}

// ZoneBreakdown is a ranked zone table for one window.
type ZoneBreakdown struct {
	Window Window    `json:"window"`
	Net    string    `json:"netPolicy"`
	Rank   string    `json:"rankBy"`
	Rows   []ZoneRow `json:"rows"`
}

// Dashboard is everything the dashboard page renders.
type Dashboard struct {
	GeneratedAt    time.Time       `json:"generatedAt"`
	Summary        Summary         `json:"summary"`
	Monthly        []Point         `json:"monthly"`
	Rolling        []Point         `json:"rolling"`
	Yearly         []Point         `json:"yearly"`
	ZonesMonth     ZoneBreakdown   `json:"zonesMonth"`
	ZonesYear      ZoneBreakdown   `json:"zonesYear"`
	StudentsByZone []ZoneCount     `json:"studentsByZone"`
	Recent         []RecentPayment `json:"recent"`
}

// Build computes the whole dashboard from one snapshot. Payments are
// expected newest first, as the listing endpoint returns them.
func Build(payments []core.Payment, students []core.Student, cal core.Calendar, opts Options) Dashboard {
	idx := core.IndexStudents(students)

	zoneMonth := opts.ZoneMonth
	if zoneMonth.Year == 0 || !zoneMonth.IsMonth() {
		zoneMonth = CurrentMonth(cal)
	}
	zoneYear := opts.ZoneYear
	if zoneYear == 0 {
		zoneYear = cal.Today().Year()
	}

	breakdown := func(w Window) ZoneBreakdown {
		return ZoneBreakdown{
			Window: w,
			Net:    opts.ZoneNet.String(),
			Rank:   opts.ZoneRank.String(),
			Rows:   RankZones(ByZone(payments, idx, w, cal, opts.ZoneNet), opts.ZoneRank),
		}
	}

	return Dashboard{
		GeneratedAt:    cal.Now,
		Summary:        Summarize(students, payments, cal, opts.Summary),
		Monthly:        Series(payments, CalendarYear{NetPolicy: opts.CalendarNet}, cal),
		Rolling:        Series(payments, RollingMonths{Months: opts.RollingMonths, NetPolicy: opts.RollingNet}, cal),
		Yearly:         Series(payments, MultiYear{}, cal),
		ZonesMonth:     breakdown(zoneMonth),
		ZonesYear:      breakdown(YearWindow(zoneYear)),
		StudentsByZone: StudentsByZone(students),
		Recent:         Recent(payments, idx, opts.RecentLimit),
	}
}

// Recent returns the first limit payments with student details attached.
func Recent(payments []core.Payment, students core.StudentIndex, limit int) []RecentPayment {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if len(payments) < limit {
		limit = len(payments)
	}
	out := make([]RecentPayment, 0, limit)
	for _, p := range payments[:limit] {
		r := RecentPayment{
			ID:        p.ID,
			StudentID: p.StudentID,
			Amount:    p.Amount,
			Date:      p.Date,
			Type:      p.Type,
			Payout:    p.Kind() == core.Payout,
		}
		if s, ok := students.Lookup(p.StudentID); ok {
			r.StudentName = s.Name
			r.Zone = s.ZoneName()
		}
		out = append(out, r)
	}
	return out
}
