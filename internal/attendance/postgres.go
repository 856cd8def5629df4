package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/careerlab/overseer/internal/domain"
)

// PostgresLedger persists attendance rows in PostgreSQL. The table
// carries UNIQUE(identity, date); see migrations/001_attendance.sql.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) CheckIn(ctx context.Context, id domain.Identity, at time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO attendance_logs (identity, date, check_in, status, productivity_score)
		VALUES ($1, $2, $3, 'Working', 0)
		ON CONFLICT (identity, date)
		DO UPDATE SET check_out = NULL, status = 'Working'`,
		string(id), domain.DateOf(at), at)
	if err != nil {
		return fmt.Errorf("attendance check-in: %w", err)
	}
	return nil
}

func (l *PostgresLedger) CheckOut(ctx context.Context, id domain.Identity, at time.Time) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE attendance_logs
		SET check_out = $1, status = 'Offline'
		WHERE identity = $2 AND date = $3 AND check_out IS NULL`,
		at, string(id), domain.DateOf(at))
	if err != nil {
		return fmt.Errorf("attendance check-out: %w", err)
	}
	return nil
}

func (l *PostgresLedger) Record(ctx context.Context, id domain.Identity, date string) (*domain.AttendanceRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT identity, to_char(date, 'YYYY-MM-DD'), check_in, check_out, status, productivity_score
		FROM attendance_logs
		WHERE identity = $1 AND date = $2`,
		string(id), date)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("attendance record: %w", err)
	}
	return rec, nil
}

func (l *PostgresLedger) ListDate(ctx context.Context, date string) ([]*domain.AttendanceRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT identity, to_char(date, 'YYYY-MM-DD'), check_in, check_out, status, productivity_score
		FROM attendance_logs
		WHERE date = $1
		ORDER BY identity`,
		date)
	if err != nil {
		return nil, fmt.Errorf("attendance list: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.AttendanceRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("attendance list: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("attendance list: %w", err)
	}
	return out, nil
}

func scanRecord(scan func(...any) error) (*domain.AttendanceRecord, error) {
	var (
		rec      domain.AttendanceRecord
		identity string
		status   string
		checkOut sql.NullTime
	)
	if err := scan(&identity, &rec.Date, &rec.CheckIn, &checkOut, &status, &rec.Productivity); err != nil {
		return nil, err
	}
	rec.Identity = domain.Identity(identity)
	rec.Status = domain.PresenceStatus(status)
	if checkOut.Valid {
		out := checkOut.Time
		rec.CheckOut = &out
	}
	return &rec, nil
}
