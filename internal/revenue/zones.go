package revenue

import (
	"fmt"
	"sort"

	"studydash/internal/core"
)

// RankBy picks the figure zones are ordered by.
type RankBy int

const (
	RankByNet RankBy = iota
	RankByReceived
)

// ParseRankBy reads "net" or "received". Empty means net.
func ParseRankBy(s string) (RankBy, error) {
	switch s {
	case "", "net":
		return RankByNet, nil
	case "received":
		return RankByReceived, nil
	default:
		return RankByNet, fmt.Errorf("invalid ranking %q: want net or received", s)
	}
}

func (r RankBy) String() string {
	if r == RankByReceived {
		return "received"
	}
	return "net"
}

// ZoneRow is one zone in a ranked breakdown.
type ZoneRow struct {
	Zone string `json:"zone"`
	Totals
}

// ZoneCount is the number of students in a zone.
type ZoneCount struct {
	Zone     string `json:"zone"`
	Students int    `json:"students"`
}

// ByZone groups the payments dated inside w by the zone of their student.
// Payments whose student is not in the index are left out entirely.
func ByZone(payments []core.Payment, students core.StudentIndex, w Window, cal core.Calendar, policy NetPolicy) map[string]Totals {
	zones := make(map[string]Totals)
	for _, p := range payments {
		s, ok := students.Lookup(p.StudentID)
		if !ok {
			continue
		}
		if !w.Contains(cal.Parse(p.Date)) {
			continue
		}
		zone := s.ZoneName()
		t := zones[zone]
		t.add(p)
		zones[zone] = t
	}
	for zone, t := range zones {
		zones[zone] = t.settle(policy)
	}
	return zones
}

// RankZones orders zones by the chosen figure, largest first. Equal figures
// fall back to the zone name.
func RankZones(zones map[string]Totals, by RankBy) []ZoneRow {
	rows := make([]ZoneRow, 0, len(zones))
	for zone, t := range zones {
		rows = append(rows, ZoneRow{Zone: zone, Totals: t})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].Net, rows[j].Net
		if by == RankByReceived {
			a, b = rows[i].Received, rows[j].Received
		}
		if c := a.Cmp(b); c != 0 {
			return c > 0
		}
		return rows[i].Zone < rows[j].Zone
	})
	return rows
}

// StudentsByZone counts students per zone, largest zone first.
func StudentsByZone(students []core.Student) []ZoneCount {
	counts := make(map[string]int)
	for _, s := range students {
		counts[s.ZoneName()]++
	}
	out := make([]ZoneCount, 0, len(counts))
	for zone, n := range counts {
		out = append(out, ZoneCount{Zone: zone, Students: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Students != out[j].Students {
			return out[i].Students > out[j].Students
		}
		return out[i].Zone < out[j].Zone
	})
	return out
}
