package core

import "strings"

// Kind separates money coming in from money paid out.
type Kind int

const (
	Received Kind = iota
	Payout
)

func (k Kind) String() string {
	if k == Payout {
		return "payout"
	}
	return "received"
}

// Classify maps a payment type tag to its Kind. Only "payout", in any case
// and with surrounding spaces, counts as a payout.
func Classify(paymentType string) Kind {
	if strings.ToLower(strings.TrimSpace(paymentType)) == "payout" {
		return Payout
	}
	return Received
}
