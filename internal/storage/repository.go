package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"studydash/internal/core"
	"studydash/internal/sources"

	_ "modernc.org/sqlite"
)

// snapshotsKept bounds the dashboard_snapshots table.
const snapshotsKept = 50

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Debug("SQLite schema ready", "component", "storage", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListPayments implements sources.PaymentLister
func (r *SQLiteRepository) ListPayments(ctx context.Context) ([]core.Payment, error) {
	rows, err := r.queries.ListPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	payments := make([]core.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, core.Payment{
			ID:                core.ID(row.ID),
			StudentID:         core.ID(row.StudentID),
			Date:              row.InstallmentDate,
			InstallmentNumber: int(row.InstallmentNumber),
			Amount:            row.Amount,
			Type:              row.PaymentType,
			ReceivedIn:        row.ReceivedIn,
			SentFrom:          row.SentFrom,
			Purpose:           row.Purpose,
			Remarks:           row.Remarks,
			CreatedAt:         row.CreatedAt,
		})
	}
	return payments, nil
}

// ListStudents implements sources.StudentLister
func (r *SQLiteRepository) ListStudents(ctx context.Context) ([]core.Student, error) {
	rows, err := r.queries.ListStudents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	students := make([]core.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, core.Student{
			ID:               core.ID(row.ID),
			EnrollmentNumber: row.EnrollmentNumber,
			Name:             row.Name,
			Email:            row.Email,
			Phone:            row.Phone,
			Category:         row.Category,
			Zone:             row.Zone,
			Source:           row.SourceOfStudent,
			IntakeYear:       row.IntakeYear,
			CreatedAt:        row.CreatedAt,
			TotalAmount:      row.TotalAmount,
			ReceivedAmount:   row.ReceivedAmount,
			PayoutAmount:     row.TotalPayoutAmount,
			NetAmount:        row.NetAmount,
		})
	}
	return students, nil
}

// SavePayments implements sources.PaymentWriter. The batch is atomic.
func (r *SQLiteRepository) SavePayments(ctx context.Context, payments []core.Payment) (int, error) {
	err := r.inTx(ctx, func(q *Queries) error {
		for _, p := range payments {
			if p.ID.IsZero() {
				return fmt.Errorf("payment for student %s: %w", p.StudentID, errMissingID)
			}
			if err := q.UpsertPayment(ctx, PaymentRow{
				ID:                p.ID.String(),
				StudentID:         p.StudentID.String(),
				InstallmentDate:   p.Date,
				InstallmentNumber: int64(p.InstallmentNumber),
				Amount:            p.Amount,
				PaymentType:       p.Type,
				ReceivedIn:        p.ReceivedIn,
				SentFrom:          p.SentFrom,
				Purpose:           p.Purpose,
				Remarks:           p.Remarks,
				CreatedAt:         p.CreatedAt,
			}); err != nil {
				return fmt.Errorf("upsert payment %s: %w", p.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Payments saved to SQLite", "count", len(payments))
	return len(payments), nil
}

// SaveStudents implements sources.StudentWriter. The batch is atomic.
func (r *SQLiteRepository) SaveStudents(ctx context.Context, students []core.Student) (int, error) {
	err := r.inTx(ctx, func(q *Queries) error {
		for _, s := range students {
			if s.ID.IsZero() {
				return fmt.Errorf("student %q: %w", s.Name, errMissingID)
			}
			if err := q.UpsertStudent(ctx, StudentRow{
				ID:                s.ID.String(),
				EnrollmentNumber:  s.EnrollmentNumber,
				Name:              s.Name,
				Email:             s.Email,
				Phone:             s.Phone,
				Category:          s.Category,
				Zone:              s.Zone,
				SourceOfStudent:   s.Source,
				IntakeYear:        s.IntakeYear,
				CreatedAt:         s.CreatedAt,
				TotalAmount:       s.TotalAmount,
				ReceivedAmount:    s.ReceivedAmount,
				TotalPayoutAmount: s.PayoutAmount,
				NetAmount:         s.NetAmount,
			}); err != nil {
				return fmt.Errorf("upsert student %s: %w", s.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	slog.InfoContext(ctx, "Students saved to SQLite", "count", len(students))
	return len(students), nil
}

// SaveSnapshot implements sources.SnapshotStore and prunes old snapshots.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, s sources.Snapshot) error {
	generatedAt := s.GeneratedAt.UTC().Format(time.RFC3339Nano)
	if _, err := r.queries.InsertSnapshot(ctx, generatedAt, s.Reason, string(s.Payload)); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	if _, err := r.queries.PruneSnapshots(ctx, snapshotsKept); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	return nil
}

// LatestSnapshot implements sources.SnapshotStore
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (sources.Snapshot, error) {
	row, err := r.queries.LatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return sources.Snapshot{}, sources.ErrNoSnapshot
	}
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("latest snapshot: %w", err)
	}
	generatedAt, err := time.Parse(time.RFC3339Nano, row.GeneratedAt)
	if err != nil {
		return sources.Snapshot{}, fmt.Errorf("parse snapshot time %q: %w", row.GeneratedAt, err)
	}
	return sources.Snapshot{
		ID:          row.ID,
		GeneratedAt: generatedAt,
		Reason:      row.Reason,
		Payload:     []byte(row.Payload),
	}, nil
}

var errMissingID = errors.New("missing id")

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
