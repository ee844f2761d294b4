package storage

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type PaymentRow struct {
	ID                string
	StudentID         string
	InstallmentDate   string
	InstallmentNumber int64
	Amount            decimal.Decimal
	PaymentType       string
	ReceivedIn        string
	SentFrom          string
	Purpose           string
	Remarks           string
	CreatedAt         string
}

type StudentRow struct {
	ID                string
	EnrollmentNumber  string
	Name              string
	Email             string
	Phone             string
	Category          string
	Zone              string
	SourceOfStudent   string
	IntakeYear        string
	CreatedAt         string
	TotalAmount       decimal.NullDecimal
	ReceivedAmount    decimal.NullDecimal
	TotalPayoutAmount decimal.NullDecimal
	NetAmount         decimal.NullDecimal
}

type SnapshotRow struct {
	ID          int64
	GeneratedAt string
	Reason      string
	Payload     string
}

const upsertPayment = `
INSERT INTO payments (
    id, student_id, installment_date, installment_number, amount, payment_type,
    payment_received_in, payment_sent_from, purpose, remarks, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    student_id = excluded.student_id,
    installment_date = excluded.installment_date,
    installment_number = excluded.installment_number,
    amount = excluded.amount,
    payment_type = excluded.payment_type,
    payment_received_in = excluded.payment_received_in,
    payment_sent_from = excluded.payment_sent_from,
    purpose = excluded.purpose,
    remarks = excluded.remarks
`

func (q *Queries) UpsertPayment(ctx context.Context, arg PaymentRow) error {
	_, err := q.db.ExecContext(ctx, upsertPayment,
		arg.ID,
		arg.StudentID,
		arg.InstallmentDate,
		arg.InstallmentNumber,
		arg.Amount,
		arg.PaymentType,
		arg.ReceivedIn,
		arg.SentFrom,
		arg.Purpose,
		arg.Remarks,
		arg.CreatedAt,
	)
	return err
}

const listPayments = `
SELECT id, student_id, installment_date, installment_number, amount, payment_type,
       payment_received_in, payment_sent_from, purpose, remarks, created_at
FROM payments
ORDER BY installment_date DESC, id ASC
`

func (q *Queries) ListPayments(ctx context.Context) ([]PaymentRow, error) {
	rows, err := q.db.QueryContext(ctx, listPayments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PaymentRow
	for rows.Next() {
		var i PaymentRow
		if err := rows.Scan(
			&i.ID,
			&i.StudentID,
			&i.InstallmentDate,
			&i.InstallmentNumber,
			&i.Amount,
			&i.PaymentType,
			&i.ReceivedIn,
			&i.SentFrom,
			&i.Purpose,
			&i.Remarks,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertStudent = `
INSERT INTO students (
    id, enrollment_number, name, email, phone, category, zone, source_of_student,
    intake_year, created_at, total_amount, received_amount, total_payout_amount, net_amount
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    enrollment_number = excluded.enrollment_number,
    name = excluded.name,
    email = excluded.email,
    phone = excluded.phone,
    category = excluded.category,
    zone = excluded.zone,
    source_of_student = excluded.source_of_student,
    intake_year = excluded.intake_year,
    total_amount = excluded.total_amount,
    received_amount = excluded.received_amount,
    total_payout_amount = excluded.total_payout_amount,
    net_amount = excluded.net_amount
`

func (q *Queries) UpsertStudent(ctx context.Context, arg StudentRow) error {
	_, err := q.db.ExecContext(ctx, upsertStudent,
		arg.ID,
		arg.EnrollmentNumber,
		arg.Name,
		arg.Email,
		arg.Phone,
		arg.Category,
		arg.Zone,
		arg.SourceOfStudent,
		arg.IntakeYear,
		arg.CreatedAt,
		arg.TotalAmount,
		arg.ReceivedAmount,
		arg.TotalPayoutAmount,
		arg.NetAmount,
	)
	return err
}

const listStudents = `
SELECT id, enrollment_number, name, email, phone, category, zone, source_of_student,
       intake_year, created_at, total_amount, received_amount, total_payout_amount, net_amount
FROM students
ORDER BY created_at DESC, id ASC
`

func (q *Queries) ListStudents(ctx context.Context) ([]StudentRow, error) {
	rows, err := q.db.QueryContext(ctx, listStudents)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []StudentRow
	for rows.Next() {
		var i StudentRow
		if err := rows.Scan(
			&i.ID,
			&i.EnrollmentNumber,
			&i.Name,
			&i.Email,
			&i.Phone,
			&i.Category,
			&i.Zone,
			&i.SourceOfStudent,
			&i.IntakeYear,
			&i.CreatedAt,
			&i.TotalAmount,
			&i.ReceivedAmount,
			&i.TotalPayoutAmount,
			&i.NetAmount,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertSnapshot = `
INSERT INTO dashboard_snapshots (generated_at, reason, payload)
VALUES (?, ?, ?)
RETURNING id
`

func (q *Queries) InsertSnapshot(ctx context.Context, generatedAt, reason, payload string) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertSnapshot, generatedAt, reason, payload).Scan(&id)
	return id, err
}

const latestSnapshot = `
SELECT id, generated_at, reason, payload
FROM dashboard_snapshots
ORDER BY id DESC
LIMIT 1
`

func (q *Queries) LatestSnapshot(ctx context.Context) (SnapshotRow, error) {
	var i SnapshotRow
	err := q.db.QueryRowContext(ctx, latestSnapshot).Scan(&i.ID, &i.GeneratedAt, &i.Reason, &i.Payload)
	return i, err
}

const pruneSnapshots = `
DELETE FROM dashboard_snapshots
WHERE id NOT IN (SELECT id FROM dashboard_snapshots ORDER BY id DESC LIMIT ?)
`

func (q *Queries) PruneSnapshots(ctx context.Context, keep int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, pruneSnapshots, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
