package reservation

import (
	"context"
	"database/sql"
	"time"
)

// PostgresStore persists ScheduledReserve rows in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

const scheduledReserveColumns = `id, shift_id, wallet_id, shift_date, amount, execute_at, status, failure_reason, created_at, updated_at`

func scanScheduledReserve(row interface{ Scan(dest ...any) error }) (*ScheduledReserve, error) {
	var r ScheduledReserve
	var failureReason sql.NullString
	if err := row.Scan(&r.ID, &r.ShiftID, &r.WalletID, &r.ShiftDate, &r.Amount, &r.ExecuteAt, &r.Status,
		&failureReason, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.FailureReason = failureReason.String
	return &r, nil
}

func (p *PostgresStore) CreateScheduledReserve(ctx context.Context, r *ScheduledReserve) (*ScheduledReserve, error) {
	status := r.Status
	if status == "" {
		status = ScheduledReservePending
	}
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO scheduled_reserves (shift_id, wallet_id, shift_date, amount, execute_at, status, failure_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+scheduledReserveColumns,
		r.ShiftID, r.WalletID, r.ShiftDate, r.Amount, r.ExecuteAt, status, nullString(r.FailureReason), r.CreatedAt,
	)
	return scanScheduledReserve(row)
}

func (p *PostgresStore) GetScheduledReserve(ctx context.Context, id int64) (*ScheduledReserve, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+scheduledReserveColumns+` FROM scheduled_reserves WHERE id = $1`, id)
	r, err := scanScheduledReserve(row)
	if err == sql.ErrNoRows {
		return nil, ErrScheduledReserveNotFound
	}
	return r, err
}

func (p *PostgresStore) UpdateScheduledReserveStatus(ctx context.Context, id int64, status ScheduledReserveStatus, failureReason string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE scheduled_reserves SET status = $1, failure_reason = $2, updated_at = now() WHERE id = $3`,
		status, nullString(failureReason), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrScheduledReserveNotFound
	}
	return nil
}

func (p *PostgresStore) ListDueScheduledReserves(ctx context.Context, before time.Time, limit int) ([]*ScheduledReserve, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+scheduledReserveColumns+` FROM scheduled_reserves
		WHERE status = $1 AND execute_at <= $2
		ORDER BY execute_at ASC
		LIMIT $3`, ScheduledReservePending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduledReserve
	for rows.Next() {
		r, err := scanScheduledReserve(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListScheduledReservesForShift(ctx context.Context, shiftID int64) ([]*ScheduledReserve, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+scheduledReserveColumns+` FROM scheduled_reserves WHERE shift_id = $1`, shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ScheduledReserve
	for rows.Next() {
		r, err := scanScheduledReserve(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
