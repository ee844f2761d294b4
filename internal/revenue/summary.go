package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

// MoMSource selects which month-over-month comparison is headlined when
// the backend also reports its own period roll-up.
type MoMSource int

const (
	MoMFromPayments MoMSource = iota
	MoMFromBackend
)

// ParseMoMSource reads "payments" or "backend". Empty means payments.
func ParseMoMSource(s string) (MoMSource, error) {
	switch s {
	case "", "payments":
		return MoMFromPayments, nil
	case "backend":
		return MoMFromBackend, nil
	default:
		return MoMFromPayments, fmt.Errorf("invalid month-over-month source %q: want payments or backend", s)
	}
}

func (m MoMSource) String() string {
	if m == MoMFromBackend {
		return "backend"
	}
	return "payments"
}

// MonthFigures are the payment totals of one calendar month.
type MonthFigures struct {
	Window Window `json:"window"`
	Totals
}

// Cohort compares new student counts of two consecutive months.
type Cohort struct {
	ThisMonth int   `json:"thisMonth"`
	LastMonth int   `json:"lastMonth"`
	Delta     Delta `json:"delta"`
}

// IntakeFigures are the roll-ups of students whose intake year matches.
type IntakeFigures struct {
	Year     int `json:"year"`
	Students int `json:"students"`
	Totals
}

// BackendComparison is the backend's own current-versus-previous month.
type BackendComparison struct {
	Current     core.PeriodFigures `json:"current"`
	Previous    core.PeriodFigures `json:"previous"`
	NetMoM      Delta              `json:"netMoM"`
	StudentsMoM Delta              `json:"studentsMoM"`
}

// Summary is the headline bundle shown as stat cards.
type Summary struct {
	TotalStudents int             `json:"totalStudents"`
	TotalReceived decimal.Decimal `json:"totalReceived"`
	TotalPayout   decimal.Decimal `json:"totalPayout"`
	TotalNet      decimal.Decimal `json:"totalNet"`

	Intake IntakeFigures `json:"intake"`

	ThisMonth MonthFigures `json:"thisMonth"`
	LastMonth MonthFigures `json:"lastMonth"`
	NetMoM    Delta        `json:"netMoM"`

	NewStudents Cohort `json:"newStudents"`

	// Backend is set only when a backend roll-up was supplied.
	Backend   *BackendComparison `json:"backend,omitempty"`
	MoMSource string             `json:"momSource"`
	// Headline is the comparison chosen by MoMSource.
	Headline Delta `json:"headline"`
}

// SummaryOptions tune Summarize.
type SummaryOptions struct {
	Backend   *core.PeriodRollup
	MoMSource MoMSource
}

// Summarize computes the headline figures.
func Summarize(students []core.Student, payments []core.Payment, cal core.Calendar, opts SummaryOptions) Summary {
	received, payout, explicitNet := rollup(students, payments, true)

	current := CurrentMonth(cal)
	previous := current.Previous()
	thisMonth := WindowTotals(payments, current, cal)
	lastMonth := WindowTotals(payments, previous, cal)

	s := Summary{
		TotalStudents: len(students),
		TotalReceived: received,
		TotalPayout:   payout,
		TotalNet:      preferExplicitNet(explicitNet, received, payout),
		Intake:        intakeFigures(students, payments, cal.Today().Year()),
		ThisMonth:     MonthFigures{Window: current, Totals: thisMonth},
		LastMonth:     MonthFigures{Window: previous, Totals: lastMonth},
		NetMoM:        MoM(thisMonth.Net, lastMonth.Net),
		NewStudents:   newStudents(students, current, cal),
		MoMSource:     opts.MoMSource.String(),
	}
	s.Headline = s.NetMoM

	if opts.Backend != nil {
		b := opts.Backend
		s.Backend = &BackendComparison{
			Current:     b.Current,
			Previous:    b.Previous,
			NetMoM:      MoM(b.Current.Net, b.Previous.Net),
			StudentsMoM: CountMoM(b.Current.Students, b.Previous.Students),
		}
		if opts.MoMSource == MoMFromBackend {
			s.Headline = s.Backend.NetMoM
		}
	}
	return s
}

// rollup sums received, payout and explicit net. A student's own positive
// roll-up field replaces the payment sum for that student and side.
// Every student record counts, duplicates included. Payments of students
// absent from the collection count only when includeOrphans is set.
func rollup(students []core.Student, payments []core.Payment, includeOrphans bool) (received, payout, explicitNet decimal.Decimal) {
	idx := core.IndexStudents(students)
	ownReceived := make(map[core.ID]bool)
	ownPayout := make(map[core.ID]bool)

	for _, s := range students {
		if core.HasPositive(s.ReceivedAmount) {
			ownReceived[s.ID] = true
			received = received.Add(s.ReceivedAmount.Decimal)
		}
		if core.HasPositive(s.PayoutAmount) {
			ownPayout[s.ID] = true
			payout = payout.Add(s.PayoutAmount.Decimal)
		}
		if s.NetAmount.Valid {
			explicitNet = explicitNet.Add(s.NetAmount.Decimal)
		}
	}

	for _, p := range payments {
		if _, known := idx.Lookup(p.StudentID); !known && !includeOrphans {
			continue
		}
		switch p.Kind() {
		case core.Payout:
			if !ownPayout[p.StudentID] {
				payout = payout.Add(p.Amount)
			}
		default:
			if !ownReceived[p.StudentID] {
				received = received.Add(p.Amount)
			}
		}
	}
	return received, payout, explicitNet
}

func preferExplicitNet(explicitNet, received, payout decimal.Decimal) decimal.Decimal {
	if explicitNet.IsPositive() {
		return explicitNet
	}
	return received.Sub(payout)
}

func intakeFigures(students []core.Student, payments []core.Payment, year int) IntakeFigures {
	var cohort []core.Student
	for _, s := range students {
		if y, ok := s.Intake(); ok && y == year {
			cohort = append(cohort, s)
		}
	}
	received, payout, explicitNet := rollup(cohort, payments, false)
	return IntakeFigures{
		Year:     year,
		Students: len(cohort),
		Totals: Totals{
			Received: received,
			Payout:   payout,
			Net:      preferExplicitNet(explicitNet, received, payout),
		},
	}
}

// newStudents counts students created in the current and previous month.
// Students without a creation timestamp are not counted.
func newStudents(students []core.Student, current Window, cal core.Calendar) Cohort {
	previous := current.Previous()
	var c Cohort
	for _, s := range students {
		if s.CreatedAt == "" || !core.ValidDate(s.CreatedAt) {
			continue
		}
		d := cal.Parse(s.CreatedAt)
		switch {
		case current.Contains(d):
			c.ThisMonth++
		case previous.Contains(d):
			c.LastMonth++
		}
	}
	c.Delta = CountMoM(c.ThisMonth, c.LastMonth)
	return c
}
