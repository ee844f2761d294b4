package csvio

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"studydash/internal/core"
)

func TestReadPayments(t *testing.T) {
	input := strings.Join([]string{
		"Student ID,Date,Amount,Type,payment_recieved_in,Remarks",
		"1,2024-03-05,\"1,25,000\",installment,HDFC,first",
		"2,2024-03-06,abc,installment,,",
		"",
		",2024-03-07,100,,,",
		"3,someday,100,,,",
		"4,2024-03-08,40,payout,,",
	}, "\n")

	payments, rowErrors, err := ReadPayments(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadPayments() error = %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected 2 valid payments, got %d: %+v", len(payments), payments)
	}
	first := payments[0]
	if first.StudentID != "1" || !first.Amount.Equal(decimal.NewFromInt(125000)) || first.ReceivedIn != "HDFC" {
		t.Errorf("unexpected first payment %+v", first)
	}
	if payments[1].Kind() != core.Payout {
		t.Errorf("expected payout, got %v", payments[1].Kind())
	}

	wantRows := []int{3, 5, 6}
	if len(rowErrors) != len(wantRows) {
		t.Fatalf("expected %d row errors, got %+v", len(wantRows), rowErrors)
	}
	for i, row := range wantRows {
		if rowErrors[i].RowNumber != row {
			t.Errorf("row error %d at row %d, want %d", i, rowErrors[i].RowNumber, row)
		}
	}
	if !strings.Contains(rowErrors[0].Message, "invalid amount") {
		t.Errorf("unexpected message %q", rowErrors[0].Message)
	}
}

func TestReadPaymentsMissingColumns(t *testing.T) {
	_, _, err := ReadPayments(strings.NewReader("student_id,remarks\n1,x\n"))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
	if !strings.Contains(err.Error(), "installment_date") || !strings.Contains(err.Error(), "amount") {
		t.Fatalf("error should name the missing columns: %v", err)
	}

	_, _, err = ReadPayments(strings.NewReader(""))
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn for empty input, got %v", err)
	}
}

func TestReadPaymentsMalformedQuote(t *testing.T) {
	input := "student_id,installment_date,amount\n1,2024-03-05,\"10\"0\n2,2024-03-06,20\n"
	payments, rowErrors, err := ReadPayments(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadPayments() error = %v", err)
	}
	if len(payments) != 1 || payments[0].StudentID != "2" {
		t.Fatalf("expected the second row to survive, got %+v", payments)
	}
	if len(rowErrors) != 1 || rowErrors[0].RowNumber != 2 {
		t.Fatalf("expected a row 2 error, got %+v", rowErrors)
	}
}

func TestPaymentsRoundTrip(t *testing.T) {
	in := []core.Payment{
		{ID: "p1", StudentID: "1", Date: "2024-03-05", InstallmentNumber: 2, Amount: decimal.RequireFromString("1500.50"), Type: "installment", Remarks: "has, comma"},
		{ID: "p2", StudentID: "2", Date: "2024-03-06", Amount: decimal.NewFromInt(40), Type: "payout"},
	}
	var buf bytes.Buffer
	if err := WritePayments(&buf, in); err != nil {
		t.Fatalf("WritePayments() error = %v", err)
	}
	out, rowErrors, err := ReadPayments(&buf)
	if err != nil || len(rowErrors) != 0 {
		t.Fatalf("ReadPayments() = %v, %+v", err, rowErrors)
	}
	if len(out) != 2 || out[0].Remarks != "has, comma" || out[0].InstallmentNumber != 2 || !out[0].Amount.Equal(in[0].Amount) {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}

func TestSampleFilesAreImportable(t *testing.T) {
	var payments bytes.Buffer
	if err := SamplePayments(&payments); err != nil {
		t.Fatalf("SamplePayments() error = %v", err)
	}
	got, rowErrors, err := ReadPayments(&payments)
	if err != nil || len(rowErrors) != 0 || len(got) != 2 {
		t.Fatalf("sample payments not importable: %v %+v %d", err, rowErrors, len(got))
	}

	var students bytes.Buffer
	if err := SampleStudents(&students); err != nil {
		t.Fatalf("SampleStudents() error = %v", err)
	}
	gotStudents, rowErrors, err := ReadStudents(&students)
	if err != nil || len(rowErrors) != 0 || len(gotStudents) != 2 {
		t.Fatalf("sample students not importable: %v %+v %d", err, rowErrors, len(gotStudents))
	}
}

func TestReadStudents(t *testing.T) {
	input := strings.Join([]string{
		"\ufeffid,name,zone,intake_year,recieved_amount,net_amount",
		"1,Asha,North,2024,1000,-50",
		"2,,South,2024,,",
		"3,Ravi,,2025-09-01,,",
		"4,Meena,East,soon,,",
		"5,Kiran,West,2024,-10,",
	}, "\n")

	students, rowErrors, err := ReadStudents(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadStudents() error = %v", err)
	}
	if len(students) != 2 {
		t.Fatalf("expected 2 students, got %+v", students)
	}
	asha := students[0]
	if !asha.ReceivedAmount.Valid || !asha.ReceivedAmount.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("received amount alias not read: %+v", asha.ReceivedAmount)
	}
	if !asha.NetAmount.Valid || !asha.NetAmount.Decimal.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("negative net should be accepted: %+v", asha.NetAmount)
	}
	if students[1].PayoutAmount.Valid {
		t.Errorf("empty payout should be absent")
	}
	if len(rowErrors) != 3 || rowErrors[0].RowNumber != 3 || rowErrors[1].RowNumber != 5 || rowErrors[2].RowNumber != 6 {
		t.Fatalf("unexpected row errors %+v", rowErrors)
	}
}

func TestStudentsRoundTrip(t *testing.T) {
	in := []core.Student{{
		ID:             "7",
		Name:           "Asha",
		Zone:           "North",
		IntakeYear:     "2024",
		CreatedAt:      "2024-03-01T10:00:00Z",
		ReceivedAmount: decimal.NewNullDecimal(decimal.NewFromInt(500)),
	}}
	var buf bytes.Buffer
	if err := WriteStudents(&buf, in); err != nil {
		t.Fatalf("WriteStudents() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "id,enrollment_number,name,") {
		t.Fatalf("unexpected header: %s", buf.String())
	}
	out, rowErrors, err := ReadStudents(&buf)
	if err != nil || len(rowErrors) != 0 || len(out) != 1 {
		t.Fatalf("ReadStudents() = %v %+v %d", err, rowErrors, len(out))
	}
	if out[0].CreatedAt != in[0].CreatedAt || out[0].TotalAmount.Valid {
		t.Fatalf("round trip mismatch: %+v", out[0])
	}
}
