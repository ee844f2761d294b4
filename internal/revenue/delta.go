package revenue

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Delta is a month-over-month change.
type Delta struct {
	Percent  float64 `json:"percent"`
	Increase bool    `json:"increase"`
	Text     string  `json:"text"`
}

// MoM computes (current - previous) / previous * 100. A zero previous
// value yields "+100%" for any nonzero current and "0%" otherwise.
func MoM(current, previous decimal.Decimal) Delta {
	if previous.IsZero() {
		if current.IsZero() {
			return Delta{Increase: true, Text: "0%"}
		}
		return Delta{Percent: 100, Increase: true, Text: "+100%"}
	}
	pct := current.Sub(previous).Div(previous).Mul(hundred)
	sign := ""
	if !pct.IsNegative() {
		sign = "+"
	}
	return Delta{
		Percent:  pct.Round(1).InexactFloat64(),
		Increase: !pct.IsNegative(),
		Text:     fmt.Sprintf("%s%s%%", sign, pct.StringFixed(1)),
	}
}

// CountMoM is MoM over counts.
func CountMoM(current, previous int) Delta {
	return MoM(decimal.NewFromInt(int64(current)), decimal.NewFromInt(int64(previous)))
}
