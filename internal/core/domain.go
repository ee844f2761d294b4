package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// UnknownZone is the zone assigned to students without one.
const UnknownZone = "Unknown"

type (
	// ID is an opaque record identifier. The backend emits either numbers or
	// strings, so both decode into the same textual form.
	ID string

	Payment struct {
		ID                ID
		StudentID         ID
		Amount            decimal.Decimal
		Date              string // as received, see ParseDate
		Type              string // free text, "payout" flips the sign
		InstallmentNumber int
		ReceivedIn        string // account or channel the money landed in
		SentFrom          string
		Purpose           string
		Remarks           string
		CreatedAt         string
	}

	Student struct {
		ID               ID
		EnrollmentNumber string
		Name             string
		Email            string
		Phone            string
		Category         string
		Zone             string
		Source           string
		IntakeYear       string
		CreatedAt        string

		// Backend roll-ups. Invalid means the field was absent.
		TotalAmount    decimal.NullDecimal
		ReceivedAmount decimal.NullDecimal
		PayoutAmount   decimal.NullDecimal
		NetAmount      decimal.NullDecimal
	}

	// PeriodFigures is one side of a backend period roll-up.
	PeriodFigures struct {
		Received decimal.Decimal `json:"received"`
		Payout   decimal.Decimal `json:"payout"`
		Net      decimal.Decimal `json:"net"`
		Students int             `json:"students"`
	}

	// PeriodRollup is the backend's own comparison of the current month
	// against the previous one.
	PeriodRollup struct {
		Current  PeriodFigures
		Previous PeriodFigures
	}
)

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrEmptyStudentID    = errors.New("empty student id")
	ErrEmptyDate         = errors.New("empty date")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyName         = errors.New("empty name")
	ErrInvalidIntakeYear = errors.New("invalid intake year")
)

func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is empty.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// UnmarshalJSON accepts a JSON string, a JSON number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// Kind classifies the payment by its type tag.
func (p Payment) Kind() Kind { return Classify(p.Type) }

func (p Payment) Validate() error {
	if p.StudentID.IsZero() {
		return ErrEmptyStudentID
	}
	if p.Amount.IsNegative() {
		return ErrInvalidAmount
	}
	if strings.TrimSpace(p.Date) == "" {
		return ErrEmptyDate
	}
	if !ValidDate(p.Date) {
		return ErrInvalidDate
	}
	if len(p.Remarks) > 500 {
		return errors.New("remarks too long (max 500 characters)")
	}
	return nil
}

// ZoneName returns the trimmed zone, or UnknownZone when empty.
func (s Student) ZoneName() string {
	z := strings.TrimSpace(s.Zone)
	if z == "" {
		return UnknownZone
	}
	return z
}

// Intake returns the year encoded in the leading digits of IntakeYear.
// Values such as "2024", "2024-09-01" and "2024/25" all yield 2024.
func (s Student) Intake() (int, bool) {
	v := strings.TrimSpace(s.IntakeYear)
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	year, err := strconv.Atoi(v[:end])
	if err != nil || year <= 0 {
		return 0, false
	}
	return year, true
}

func (s Student) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return ErrEmptyName
	}
	if len(s.Name) > 200 {
		return errors.New("name too long (max 200 characters)")
	}
	if strings.TrimSpace(s.IntakeYear) != "" {
		if _, ok := s.Intake(); !ok {
			return ErrInvalidIntakeYear
		}
	}
	for _, v := range []decimal.NullDecimal{s.TotalAmount, s.ReceivedAmount, s.PayoutAmount} {
		if v.Valid && v.Decimal.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// StudentIndex resolves students by id. Build one per aggregation call.
type StudentIndex map[ID]Student

// IndexStudents builds a lookup over students. Later duplicates win.
func IndexStudents(students []Student) StudentIndex {
	idx := make(StudentIndex, len(students))
	for _, s := range students {
		idx[s.ID] = s
	}
	return idx
}

// Lookup returns the student owning id, if present.
func (idx StudentIndex) Lookup(id ID) (Student, bool) {
	s, ok := idx[id]
	return s, ok
}
