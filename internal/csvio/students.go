package csvio

import (
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

var studentColumns = []column{
	{name: "id"},
	{name: "enrollment_number", aliases: []string{"enrollment"}},
	{name: "name", aliases: []string{"student_name", "full_name"}, required: true},
	{name: "email"},
	{name: "phone"},
	{name: "category"},
	{name: "zone"},
	{name: "source_of_student", aliases: []string{"source"}},
	{name: "intake_year", aliases: []string{"intake"}},
	{name: "created_at"},
	{name: "total_amount"},
	{name: "received_amount", aliases: []string{"recieved_amount"}},
	{name: "total_payout_amount", aliases: []string{"payout_amount"}},
	{name: "net_amount"},
}

// ReadStudents parses a students CSV. Rows that fail validation are
// reported and skipped.
func ReadStudents(r io.Reader) ([]core.Student, []RowError, error) {
	var students []core.Student
	rowErrors, err := eachRecord(r, studentColumns, func(_ int, h header, record []string) error {
		s, err := studentFromRecord(h, record)
		if err != nil {
			return err
		}
		students = append(students, s)
		return nil
	})
	return students, rowErrors, err
}

func studentFromRecord(h header, record []string) (core.Student, error) {
	s := core.Student{
		ID:               core.ID(h.get(record, "id")),
		EnrollmentNumber: h.get(record, "enrollment_number"),
		Name:             h.get(record, "name"),
		Email:            h.get(record, "email"),
		Phone:            h.get(record, "phone"),
		Category:         h.get(record, "category"),
		Zone:             h.get(record, "zone"),
		Source:           h.get(record, "source_of_student"),
		IntakeYear:       h.get(record, "intake_year"),
		CreatedAt:        h.get(record, "created_at"),
	}

	amounts := []struct {
		column string
		dst    *decimal.NullDecimal
	}{
		{"total_amount", &s.TotalAmount},
		{"received_amount", &s.ReceivedAmount},
		{"total_payout_amount", &s.PayoutAmount},
	}
	for _, a := range amounts {
		raw := h.get(record, a.column)
		v, err := core.ParseOptionalAmount(raw)
		if err != nil {
			return s, fmt.Errorf("invalid %s %q", a.column, raw)
		}
		*a.dst = v
	}

	// net may legitimately be negative
	if raw := h.get(record, "net_amount"); raw != "" {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return s, fmt.Errorf("invalid net_amount %q", raw)
		}
		s.NetAmount = decimal.NewNullDecimal(v)
	}

	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// WriteStudents writes students with the canonical header.
func WriteStudents(w io.Writer, students []core.Student) error {
	rows := make([][]string, 0, len(students))
	for _, s := range students {
		rows = append(rows, []string{
			s.ID.String(),
			s.EnrollmentNumber,
			s.Name,
			s.Email,
			s.Phone,
			s.Category,
			s.Zone,
			s.Source,
			s.IntakeYear,
			s.CreatedAt,
			optional(s.TotalAmount),
			optional(s.ReceivedAmount),
			optional(s.PayoutAmount),
			optional(s.NetAmount),
		})
	}
	return writeAll(w, studentColumns, rows)
}

// SampleStudents writes a template CSV with two example rows.
func SampleStudents(w io.Writer) error {
	rows := [][]string{
		{"", "0001", "Asha Verma", "asha@example.com", "+91 98000 00001", "UG", "North", "Referral", "2024", "", "450000", "", "", ""},
		{"", "0002", "Ravi Kumar", "ravi@example.com", "+91 98000 00002", "PG", "South", "Walk-in", "2025", "", "", "", "", ""},
	}
	return writeAll(w, studentColumns, rows)
}

func optional(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}
