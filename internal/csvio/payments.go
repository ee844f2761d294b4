package csvio

import (
	"fmt"
	"io"
	"strconv"

	"studydash/internal/core"
)

var paymentColumns = []column{
	{name: "id"},
	{name: "student_id", aliases: []string{"studentid", "student"}, required: true},
	{name: "installment_date", aliases: []string{"date", "payment_date"}, required: true},
	{name: "installment_number", aliases: []string{"installment"}},
	{name: "amount", required: true},
	{name: "payment_type", aliases: []string{"type"}},
	{name: "payment_received_in", aliases: []string{"payment_recieved_in", "received_in"}},
	{name: "payment_sent_from", aliases: []string{"payment_send_from", "sent_from"}},
	{name: "purpose"},
	{name: "remarks"},
	{name: "created_at"},
}

// ReadPayments parses a payments CSV. Rows that fail validation are
// reported and skipped; the error is reserved for unreadable input.
func ReadPayments(r io.Reader) ([]core.Payment, []RowError, error) {
	var payments []core.Payment
	rowErrors, err := eachRecord(r, paymentColumns, func(_ int, h header, record []string) error {
		p, err := paymentFromRecord(h, record)
		if err != nil {
			return err
		}
		payments = append(payments, p)
		return nil
	})
	return payments, rowErrors, err
}

func paymentFromRecord(h header, record []string) (core.Payment, error) {
	p := core.Payment{
		ID:         core.ID(h.get(record, "id")),
		StudentID:  core.ID(h.get(record, "student_id")),
		Date:       h.get(record, "installment_date"),
		Type:       h.get(record, "payment_type"),
		ReceivedIn: h.get(record, "payment_received_in"),
		SentFrom:   h.get(record, "payment_sent_from"),
		Purpose:    h.get(record, "purpose"),
		Remarks:    h.get(record, "remarks"),
		CreatedAt:  h.get(record, "created_at"),
	}

	raw := h.get(record, "amount")
	amount, err := core.ParseAmount(raw)
	if err != nil {
		return p, fmt.Errorf("invalid amount %q", raw)
	}
	p.Amount = amount

	if v := h.get(record, "installment_number"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, fmt.Errorf("invalid installment number %q", v)
		}
		p.InstallmentNumber = n
	}

	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}

// WritePayments writes payments with the canonical header.
func WritePayments(w io.Writer, payments []core.Payment) error {
	rows := make([][]string, 0, len(payments))
	for _, p := range payments {
		number := ""
		if p.InstallmentNumber > 0 {
			number = strconv.Itoa(p.InstallmentNumber)
		}
		rows = append(rows, []string{
			p.ID.String(),
			p.StudentID.String(),
			p.Date,
			number,
			p.Amount.String(),
			p.Type,
			p.ReceivedIn,
			p.SentFrom,
			p.Purpose,
			p.Remarks,
			p.CreatedAt,
		})
	}
	return writeAll(w, paymentColumns, rows)
}

// SamplePayments writes a template CSV with two example rows.
func SamplePayments(w io.Writer) error {
	rows := [][]string{
		{"", "1", "2024-04-15", "1", "125000", "installment", "HDFC current", "", "Tuition fee", "First installment", ""},
		{"", "1", "2024-05-02", "", "20000", "payout", "", "HDFC current", "Associate commission", "", ""},
	}
	return writeAll(w, paymentColumns, rows)
}
