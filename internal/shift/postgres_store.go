package shift

import (
	"context"
	"database/sql"
	"time"

	"github.com/pentedigital/extrashifty/internal/db"
)

// PostgresStore persists shifts and applications in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

const shiftColumns = `id, company_id, posted_by_agency_id, client_company_id, is_agency_managed,
	date, start_time, end_time, hourly_rate, spots_total, spots_filled, status,
	clock_in_at, clock_out_at, actual_hours_worked, created_at, updated_at`

func scanShift(row interface{ Scan(dest ...any) error }) (*Shift, error) {
	var s Shift
	var postedByAgencyID, clientCompanyID sql.NullInt64
	var clockInAt, clockOutAt sql.NullTime
	var actualHours sql.NullFloat64

	err := row.Scan(
		&s.ID, &s.CompanyID, &postedByAgencyID, &clientCompanyID, &s.IsAgencyManaged,
		&s.Date, &s.StartTime, &s.EndTime, &s.HourlyRate, &s.SpotsTotal, &s.SpotsFilled, &s.Status,
		&clockInAt, &clockOutAt, &actualHours, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if postedByAgencyID.Valid {
		s.PostedByAgencyID = &postedByAgencyID.Int64
	}
	if clientCompanyID.Valid {
		s.ClientCompanyID = &clientCompanyID.Int64
	}
	if clockInAt.Valid {
		s.ClockInAt = &clockInAt.Time
	}
	if clockOutAt.Valid {
		s.ClockOutAt = &clockOutAt.Time
	}
	if actualHours.Valid {
		s.ActualHoursWorked = &actualHours.Float64
	}
	return &s, nil
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}

func nullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func (p *PostgresStore) CreateShift(ctx context.Context, s *Shift) (*Shift, error) {
	if s.SpotsFilled > s.SpotsTotal {
		return nil, ErrInvalidSpots
	}
	if s.IsAgencyManaged && (s.PostedByAgencyID == nil || s.ClientCompanyID == nil) {
		return nil, ErrAgencyFieldsMissing
	}

	row := p.db.QueryRowContext(ctx, `
		INSERT INTO shifts (
			company_id, posted_by_agency_id, client_company_id, is_agency_managed,
			date, start_time, end_time, hourly_rate, spots_total, spots_filled, status,
			clock_in_at, clock_out_at, actual_hours_worked, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		RETURNING `+shiftColumns,
		s.CompanyID, nullInt64(s.PostedByAgencyID), nullInt64(s.ClientCompanyID), s.IsAgencyManaged,
		s.Date, s.StartTime, s.EndTime, s.HourlyRate, s.SpotsTotal, s.SpotsFilled, s.Status,
		nullTime(s.ClockInAt), nullTime(s.ClockOutAt), nullFloat64(s.ActualHoursWorked), s.CreatedAt,
	)
	return scanShift(row)
}

func (p *PostgresStore) GetShift(ctx context.Context, id int64) (*Shift, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	s, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return s, err
}

func (p *PostgresStore) UpdateShiftStatus(ctx context.Context, id int64, status Status) error {
	res, err := p.db.ExecContext(ctx, `UPDATE shifts SET status = $1, updated_at = now() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (p *PostgresStore) RecordClockIn(ctx context.Context, id int64, at time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE shifts SET clock_in_at = $1, status = $2, updated_at = $1 WHERE id = $3`,
		at, StatusInProgress, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (p *PostgresStore) RecordClockOut(ctx context.Context, id int64, at time.Time, actualHours float64) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE shifts SET clock_out_at = $1, actual_hours_worked = $2, updated_at = $1 WHERE id = $3`,
		at, actualHours, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res)
}

func (p *PostgresStore) ListShiftsPendingAutoApprove(ctx context.Context, completedBefore time.Time, limit int) ([]*Shift, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM shifts
		WHERE status = $1 AND clock_out_at IS NOT NULL AND clock_out_at < $2
		ORDER BY clock_out_at ASC
		LIMIT $3`, StatusCompleted, completedBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListNoShowCandidates(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*Shift, error) {
	deadline := now.Add(-grace)
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+shiftColumns+` FROM shifts
		WHERE status = $1 AND clock_in_at IS NULL AND start_time <= $2
		ORDER BY start_time ASC
		LIMIT $3`, StatusFilled, deadline, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Shift
	for rows.Next() {
		s, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const applicationColumns = `id, shift_id, applicant_id, status, created_at, updated_at`

func scanApplication(row interface{ Scan(dest ...any) error }) (*Application, error) {
	var a Application
	if err := row.Scan(&a.ID, &a.ShiftID, &a.ApplicantID, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *PostgresStore) CreateApplication(ctx context.Context, a *Application) (*Application, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO applications (shift_id, applicant_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING `+applicationColumns,
		a.ShiftID, a.ApplicantID, a.Status, a.CreatedAt,
	)
	app, err := scanApplication(row)
	if err != nil && db.IsUniqueViolation(err) {
		return nil, ErrAlreadyApplied
	}
	return app, err
}

func (p *PostgresStore) GetApplication(ctx context.Context, id int64) (*Application, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id)
	a, err := scanApplication(row)
	if err == sql.ErrNoRows {
		return nil, ErrApplicationNotFound
	}
	return a, err
}

// AcceptApplication runs inside a single transaction: the application and
// its parent shift are both row-locked, the spots_filled counter is
// incremented, and the shift transitions to filled once full.
func (p *PostgresStore) AcceptApplication(ctx context.Context, applicationID int64) (*Application, *Shift, error) {
	var outApp *Application
	var outShift *Shift

	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		appRow := tx.QueryRowContext(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1 FOR UPDATE`, applicationID)
		app, err := scanApplication(appRow)
		if err == sql.ErrNoRows {
			return ErrApplicationNotFound
		} else if err != nil {
			return err
		}

		shiftRow := tx.QueryRowContext(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1 FOR UPDATE`, app.ShiftID)
		s, err := scanShift(shiftRow)
		if err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		if s.Status != StatusOpen {
			return ErrNotOpen
		}

		app.Status = ApplicationAccepted
		if _, err := tx.ExecContext(ctx, `UPDATE applications SET status = $1, updated_at = now() WHERE id = $2`,
			app.Status, app.ID); err != nil {
			return err
		}

		s.SpotsFilled++
		if s.SpotsFilled >= s.SpotsTotal {
			s.Status = StatusFilled
		}
		if _, err := tx.ExecContext(ctx, `UPDATE shifts SET spots_filled = $1, status = $2, updated_at = now() WHERE id = $3`,
			s.SpotsFilled, s.Status, s.ID); err != nil {
			return err
		}

		outApp, outShift = app, s
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outApp, outShift, nil
}

func (p *PostgresStore) RejectApplication(ctx context.Context, applicationID int64) (*Application, error) {
	res, err := p.db.ExecContext(ctx, `UPDATE applications SET status = $1, updated_at = now() WHERE id = $2`,
		ApplicationRejected, applicationID)
	if err != nil {
		return nil, err
	}
	if err := checkRowsAffected(res); err != nil {
		return nil, ErrApplicationNotFound
	}
	return p.GetApplication(ctx, applicationID)
}

func (p *PostgresStore) ListAcceptedApplications(ctx context.Context, shiftID int64) ([]*Application, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+applicationColumns+` FROM applications
		WHERE shift_id = $1 AND status = $2`, shiftID, ApplicationAccepted)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SoleAcceptedApplicant(ctx context.Context, shiftID int64) (*Application, error) {
	accepted, err := p.ListAcceptedApplications(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if len(accepted) != 1 {
		return nil, ErrApplicationNotFound
	}
	return accepted[0], nil
}
