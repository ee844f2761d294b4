package core

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

var isoDatePrefix = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})`)

// Layouts tried when a value has no YYYY-MM-DD prefix. Zoned layouts are
// converted into the calendar location, the rest are read in it.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		time.RFC1123Z,
		time.RFC1123,
		time.RFC822Z,
		time.RFC822,
		"Mon Jan 2 2006 15:04:05 GMT-0700",
	}
	localLayouts = []string{
		"2006/01/02",
		"2006/1/2",
		"01/02/2006",
		"1/2/2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"2 Jan 2006",
		"2 January 2006",
		"Jan 2 2006",
	}
)

// Date is a calendar day at midnight in some location.
type Date struct {
	time.Time
}

// NewDate creates a Date in loc. Out of range parts normalise the way
// time.Date does.
func NewDate(year int, month time.Month, day int, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, loc)}
}

// Truncate drops the time of day of t as seen in loc.
func Truncate(t time.Time, loc *time.Location) Date {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return NewDate(t.Year(), t.Month(), t.Day(), loc)
}

// MonthKey returns the bucket key "YYYY-MM".
func (d Date) MonthKey() string { return MonthKey(d.Year(), d.Month()) }

// YearKey returns the bucket key "YYYY".
func (d Date) YearKey() string { return strconv.Itoa(d.Year()) }

// MonthKey formats a month bucket key.
func MonthKey(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// ParseDate turns a date-like string into a calendar date in loc.
//
// A value starting with YYYY-MM-DD is taken literally, whatever follows it.
// Anything else goes through the general layouts and is truncated in loc.
// Values nothing can read are attributed to now.
func ParseDate(s string, loc *time.Location, now time.Time) Date {
	if loc == nil {
		loc = time.Local
	}
	if d, ok := parsePrefix(s, loc); ok {
		return d
	}
	if t, ok := parseGeneral(strings.TrimSpace(s), loc); ok {
		return Truncate(t, loc)
	}
	return Truncate(now, loc)
}

// ValidDate reports whether s would parse without falling back to now.
func ValidDate(s string) bool {
	if _, ok := parsePrefix(s, time.UTC); ok {
		return true
	}
	_, ok := parseGeneral(strings.TrimSpace(s), time.UTC)
	return ok
}

func parsePrefix(s string, loc *time.Location) (Date, bool) {
	m := isoDatePrefix.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Date{}, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return NewDate(year, time.Month(month), day, loc), true
}

func parseGeneral(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && len(s) >= 10 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// Calendar pins the location and instant used to read record dates.
type Calendar struct {
	Location *time.Location
	Now      time.Time
}

// NewCalendar returns a calendar for loc at now.
func NewCalendar(loc *time.Location, now time.Time) Calendar {
	if loc == nil {
		loc = time.Local
	}
	return Calendar{Location: loc, Now: now}
}

// Parse reads s with ParseDate.
func (c Calendar) Parse(s string) Date {
	return ParseDate(s, c.location(), c.Now)
}

// Today is the calendar day containing Now.
func (c Calendar) Today() Date {
	return Truncate(c.Now, c.location())
}

// SortNewestFirst orders payments by installment date, newest first. Each
// date is read once with Parse; payments on the same day keep their order.
func (c Calendar) SortNewestFirst(payments []Payment) {
	type dated struct {
		day     Date
		payment Payment
	}
	keyed := make([]dated, len(payments))
	for i, p := range payments {
		keyed[i] = dated{day: c.Parse(p.Date), payment: p}
	}
	sort.SliceStable(keyed, func(i, j int) bool {
		return keyed[i].day.After(keyed[j].day.Time)
	})
	for i := range keyed {
		payments[i] = keyed[i].payment
	}
}

func (c Calendar) location() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}
