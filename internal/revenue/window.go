// Package revenue derives dashboard figures from payment and student
// snapshots. Everything here is a pure function of its inputs.
package revenue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

// Window is a calendar month, or a whole year when Month is zero.
type Window struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month,omitempty"`
}

// MonthWindow covers one calendar month. Out of range months roll over.
func MonthWindow(year int, month time.Month) Window {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Window{Year: t.Year(), Month: t.Month()}
}

// YearWindow covers a whole calendar year.
func YearWindow(year int) Window {
	return Window{Year: year}
}

// CurrentMonth is the month containing the calendar's today.
func CurrentMonth(cal core.Calendar) Window {
	today := cal.Today()
	return MonthWindow(today.Year(), today.Month())
}

// IsMonth reports whether w spans a single month.
func (w Window) IsMonth() bool { return w.Month != 0 }

// Previous returns the window immediately before w with the same span.
func (w Window) Previous() Window {
	if w.IsMonth() {
		return MonthWindow(w.Year, w.Month-1)
	}
	return YearWindow(w.Year - 1)
}

// Contains reports whether d falls inside w.
func (w Window) Contains(d core.Date) bool {
	if d.Year() != w.Year {
		return false
	}
	return !w.IsMonth() || d.Month() == w.Month
}

// Key is the bucket key of the window: "YYYY-MM" or "YYYY".
func (w Window) Key() string {
	if w.IsMonth() {
		return core.MonthKey(w.Year, w.Month)
	}
	return strconv.Itoa(w.Year)
}

func (w Window) String() string { return w.Key() }

// ParseWindow reads "YYYY-MM" or "YYYY".
func ParseWindow(s string) (Window, error) {
	if t, err := time.Parse("2006-01", s); err == nil {
		return MonthWindow(t.Year(), t.Month()), nil
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y > 0 {
			return YearWindow(y), nil
		}
	}
	return Window{}, fmt.Errorf("invalid window %q: want YYYY-MM or YYYY", s)
}

// NetPolicy decides how net is derived from received and payout.
type NetPolicy int

const (
	// NetSigned reports received minus payout as is.
	NetSigned NetPolicy = iota
	// NetClamped floors the difference at zero.
	NetClamped
)

// Apply computes net under the policy.
func (p NetPolicy) Apply(received, payout decimal.Decimal) decimal.Decimal {
	net := received.Sub(payout)
	if p == NetClamped && net.IsNegative() {
		return decimal.Zero
	}
	return net
}

func (p NetPolicy) String() string {
	if p == NetClamped {
		return "clamped"
	}
	return "signed"
}

// ParseNetPolicy reads "signed" or "clamped". Empty means signed.
func ParseNetPolicy(s string) (NetPolicy, error) {
	switch s {
	case "", "signed":
		return NetSigned, nil
	case "clamped":
		return NetClamped, nil
	default:
		return NetSigned, fmt.Errorf("invalid net policy %q: want signed or clamped", s)
	}
}

// Totals holds the received and payout sums of a group and its net.
type Totals struct {
	Received decimal.Decimal `json:"received"`
	Payout   decimal.Decimal `json:"payout"`
	Net      decimal.Decimal `json:"net"`
}

func (t *Totals) add(p core.Payment) {
	if p.Kind() == core.Payout {
		t.Payout = t.Payout.Add(p.Amount)
		return
	}
	t.Received = t.Received.Add(p.Amount)
}

func (t Totals) settle(policy NetPolicy) Totals {
	t.Net = policy.Apply(t.Received, t.Payout)
	return t
}

// WindowTotals sums every payment dated inside w. No student join is made,
// so payments of unknown students still count.
func WindowTotals(payments []core.Payment, w Window, cal core.Calendar) Totals {
	var t Totals
	for _, p := range payments {
		if w.Contains(cal.Parse(p.Date)) {
			t.add(p)
		}
	}
	return t.settle(NetSigned)
}
