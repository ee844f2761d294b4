package revenue

// Time series are built with a strategy per window policy. Each policy
// decides its buckets, how net is derived and which buckets survive.

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

// DefaultRollingMonths is the length of the rolling window.
const DefaultRollingMonths = 6

// DefaultYears is the number of buckets in the multi-year series.
const DefaultYears = 4

// Point is one bucket of a series.
type Point struct {
	Label    string          `json:"label"`
	Key      string          `json:"key"`
	Received decimal.Decimal `json:"received"`
	Payout   decimal.Decimal `json:"payout"`
	Net      decimal.Decimal `json:"net"`
}

// Bucket is a slot a series is made of, before any amounts are summed.
type Bucket struct {
	Label  string
	Window Window
}

// Policy is the strategy interface for series windows.
type Policy interface {
	// Buckets lists the slots of the series, oldest first.
	Buckets(today core.Date) []Bucket
	// Net is the rule used to derive net per bucket.
	Net() NetPolicy
	// Finish post-processes the filled series.
	Finish(points []Point) []Point
}

// CalendarYear is twelve months, January to December. Year zero means the
// calendar's current year.
type CalendarYear struct {
	Year      int
	NetPolicy NetPolicy
}

func (p CalendarYear) Buckets(today core.Date) []Bucket {
	year := p.Year
	if year == 0 {
		year = today.Year()
	}
	buckets := make([]Bucket, 0, 12)
	for m := time.January; m <= time.December; m++ {
		buckets = append(buckets, Bucket{Label: shortMonth(m), Window: MonthWindow(year, m)})
	}
	return buckets
}

func (p CalendarYear) Net() NetPolicy { return p.NetPolicy }

func (CalendarYear) Finish(points []Point) []Point { return points }

// RollingMonths is the most recent months ending at the current one.
// Months with zero net are dropped unless every month would be.
type RollingMonths struct {
	Months    int
	NetPolicy NetPolicy
}

func (p RollingMonths) Buckets(today core.Date) []Bucket {
	n := p.Months
	if n <= 0 {
		n = DefaultRollingMonths
	}
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		w := MonthWindow(today.Year(), today.Month()-time.Month(i))
		buckets = append(buckets, Bucket{Label: shortMonth(w.Month), Window: w})
	}
	return buckets
}

func (p RollingMonths) Net() NetPolicy { return p.NetPolicy }

func (RollingMonths) Finish(points []Point) []Point {
	kept := make([]Point, 0, len(points))
	for _, pt := range points {
		if !pt.Net.IsZero() {
			kept = append(kept, pt)
		}
	}
	if len(kept) == 0 {
		kept = points
	}
	return disambiguateLabels(kept)
}

// MultiYear is one bucket per year ending at the current year. Net is
// always floored at zero.
type MultiYear struct {
	Years int
}

func (p MultiYear) Buckets(today core.Date) []Bucket {
	n := p.Years
	if n <= 0 {
		n = DefaultYears
	}
	buckets := make([]Bucket, 0, n)
	for i := n - 1; i >= 0; i-- {
		year := today.Year() - i
		buckets = append(buckets, Bucket{Label: strconv.Itoa(year), Window: YearWindow(year)})
	}
	return buckets
}

func (MultiYear) Net() NetPolicy { return NetClamped }

func (MultiYear) Finish(points []Point) []Point { return points }

// Series fills the buckets of policy from payments. No student join is
// made, so every payment counts toward its bucket.
func Series(payments []core.Payment, policy Policy, cal core.Calendar) []Point {
	buckets := policy.Buckets(cal.Today())
	points := make([]Point, len(buckets))
	totals := make([]Totals, len(buckets))
	index := make(map[string]int, len(buckets))
	for i, b := range buckets {
		index[b.Window.Key()] = i
	}

	for _, p := range payments {
		d := cal.Parse(p.Date)
		i, ok := index[d.MonthKey()]
		if !ok {
			i, ok = index[d.YearKey()]
		}
		if !ok {
			continue
		}
		totals[i].add(p)
	}

	net := policy.Net()
	for i, b := range buckets {
		t := totals[i].settle(net)
		points[i] = Point{
			Label:    b.Label,
			Key:      b.Window.Key(),
			Received: t.Received,
			Payout:   t.Payout,
			Net:      t.Net,
		}
	}
	return policy.Finish(points)
}

// disambiguateLabels appends a two digit year to every label when any
// month name appears twice.
func disambiguateLabels(points []Point) []Point {
	seen := make(map[string]bool, len(points))
	clash := false
	for _, pt := range points {
		if seen[pt.Label] {
			clash = true
			break
		}
		seen[pt.Label] = true
	}
	if !clash {
		return points
	}
	out := make([]Point, len(points))
	for i, pt := range points {
		year := pt.Key
		if len(year) >= 4 {
			year = year[2:4]
		}
		pt.Label = fmt.Sprintf("%s %s", pt.Label, year)
		out[i] = pt
	}
	return out
}

func shortMonth(m time.Month) string {
	return m.String()[:3]
}
