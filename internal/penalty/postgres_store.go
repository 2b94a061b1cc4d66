package penalty

import (
	"context"
	"database/sql"
	"time"

	"github.com/pentedigital/extrashifty/internal/db"
	"github.com/pentedigital/extrashifty/internal/money"
)

// PostgresStore persists penalties, strikes, negative balances,
// suspensions, appeals and emergency waivers in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

const penaltyColumns = `id, user_id, shift_id, amount, reason, status, collected_amount, waived_by, created_at, updated_at`

func scanPenalty(row interface{ Scan(dest ...any) error }) (*Penalty, error) {
	var p Penalty
	var waivedBy sql.NullInt64
	if err := row.Scan(&p.ID, &p.UserID, &p.ShiftID, &p.Amount, &p.Reason, &p.Status,
		&p.CollectedAmount, &waivedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if waivedBy.Valid {
		p.WaivedBy = &waivedBy.Int64
	}
	return &p, nil
}

func (p *PostgresStore) CreatePenalty(ctx context.Context, pen *Penalty) (*Penalty, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO penalties (user_id, shift_id, amount, reason, status, collected_amount, waived_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+penaltyColumns,
		pen.UserID, pen.ShiftID, pen.Amount, pen.Reason, pen.Status, pen.CollectedAmount, nullInt64(pen.WaivedBy), pen.CreatedAt)
	out, err := scanPenalty(row)
	if err != nil && db.IsUniqueViolation(err) {
		return nil, ErrAlreadyNoShow
	}
	return out, err
}

func (p *PostgresStore) GetPenalty(ctx context.Context, id int64) (*Penalty, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE id = $1`, id)
	out, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) GetPenaltyByShift(ctx context.Context, shiftID int64) (*Penalty, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+penaltyColumns+` FROM penalties WHERE shift_id = $1`, shiftID)
	out, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) UpdatePenaltyStatus(ctx context.Context, id int64, status PenaltyStatus, collected money.Cents, waivedBy *int64) (*Penalty, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE penalties SET status = $1, collected_amount = $2, waived_by = $3, updated_at = now()
		WHERE id = $4 RETURNING `+penaltyColumns,
		status, collected, nullInt64(waivedBy), id)
	out, err := scanPenalty(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

const strikeColumns = `id, user_id, shift_id, reason, created_at, expires_at, is_active, is_warning_only`

func scanStrike(row interface{ Scan(dest ...any) error }) (*Strike, error) {
	var s Strike
	var shiftID sql.NullInt64
	if err := row.Scan(&s.ID, &s.UserID, &shiftID, &s.Reason, &s.CreatedAt, &s.ExpiresAt, &s.IsActive, &s.IsWarningOnly); err != nil {
		return nil, err
	}
	if shiftID.Valid {
		s.ShiftID = &shiftID.Int64
	}
	return &s, nil
}

func (p *PostgresStore) CreateStrike(ctx context.Context, s *Strike) (*Strike, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO strikes (user_id, shift_id, reason, created_at, expires_at, is_active, is_warning_only)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+strikeColumns,
		s.UserID, nullInt64(s.ShiftID), s.Reason, s.CreatedAt, s.ExpiresAt, s.IsActive, s.IsWarningOnly)
	return scanStrike(row)
}

func (p *PostgresStore) GetStrike(ctx context.Context, id int64) (*Strike, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+strikeColumns+` FROM strikes WHERE id = $1`, id)
	s, err := scanStrike(row)
	if err == sql.ErrNoRows {
		return nil, ErrStrikeNotFound
	}
	return s, err
}

func (p *PostgresStore) ListActiveStrikes(ctx context.Context, userID int64, now time.Time) ([]*Strike, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+strikeColumns+` FROM strikes
		WHERE user_id = $1 AND is_active AND expires_at > $2
		ORDER BY created_at ASC`, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Strike
	for rows.Next() {
		s, err := scanStrike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListStrikesByUser(ctx context.Context, userID int64) ([]*Strike, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+strikeColumns+` FROM strikes
		WHERE user_id = $1
		ORDER BY created_at ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Strike
	for rows.Next() {
		s, err := scanStrike(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) DeactivateStrike(ctx context.Context, id int64) error {
	res, err := p.db.ExecContext(ctx, `UPDATE strikes SET is_active = false WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStrikeNotFound
	}
	return nil
}

func (p *PostgresStore) CreateAgencyStrike(ctx context.Context, s *AgencyStrike) (*AgencyStrike, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO agency_strikes (agency_user_id, shift_id, created_at)
		VALUES ($1, $2, $3)
		RETURNING id, agency_user_id, shift_id, created_at`,
		s.AgencyUserID, s.ShiftID, s.CreatedAt)
	var out AgencyStrike
	if err := row.Scan(&out.ID, &out.AgencyUserID, &out.ShiftID, &out.CreatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (p *PostgresStore) CountAgencyStrikes(ctx context.Context, agencyUserID int64, since time.Time) (int, error) {
	var n int
	err := p.db.QueryRowContext(ctx, `
		SELECT count(*) FROM agency_strikes WHERE agency_user_id = $1 AND created_at > $2`,
		agencyUserID, since).Scan(&n)
	return n, err
}

func (p *PostgresStore) GetOrCreateNegativeBalance(ctx context.Context, userID int64) (*NegativeBalance, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO negative_balances (user_id, amount, last_activity_at)
		VALUES ($1, 0, now())
		ON CONFLICT (user_id) DO UPDATE SET user_id = excluded.user_id
		RETURNING id, user_id, amount, last_activity_at`, userID)
	var nb NegativeBalance
	if err := row.Scan(&nb.ID, &nb.UserID, &nb.Amount, &nb.LastActivityAt); err != nil {
		return nil, err
	}
	return &nb, nil
}

func (p *PostgresStore) AddToNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO negative_balances (user_id, amount, last_activity_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET amount = negative_balances.amount + $2, last_activity_at = $3
		RETURNING id, user_id, amount, last_activity_at`, userID, amount, at)
	var nb NegativeBalance
	if err := row.Scan(&nb.ID, &nb.UserID, &nb.Amount, &nb.LastActivityAt); err != nil {
		return nil, err
	}
	return &nb, nil
}

func (p *PostgresStore) ReduceNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO negative_balances (user_id, amount, last_activity_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (user_id) DO UPDATE SET
			amount = GREATEST(negative_balances.amount - $3, 0),
			last_activity_at = $2
		RETURNING id, user_id, amount, last_activity_at`, userID, at, amount)
	var nb NegativeBalance
	if err := row.Scan(&nb.ID, &nb.UserID, &nb.Amount, &nb.LastActivityAt); err != nil {
		return nil, err
	}
	return &nb, nil
}

func (p *PostgresStore) ListStaleNegativeBalances(ctx context.Context, before time.Time, limit int) ([]*NegativeBalance, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, user_id, amount, last_activity_at FROM negative_balances
		WHERE amount > 0 AND last_activity_at < $1
		ORDER BY last_activity_at ASC LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*NegativeBalance
	for rows.Next() {
		var nb NegativeBalance
		if err := rows.Scan(&nb.ID, &nb.UserID, &nb.Amount, &nb.LastActivityAt); err != nil {
			return nil, err
		}
		out = append(out, &nb)
	}
	return out, rows.Err()
}

const suspensionColumns = `id, user_id, reason, suspended_at, suspended_until, is_active, lifted_by`

func scanSuspension(row interface{ Scan(dest ...any) error }) (*UserSuspension, error) {
	var s UserSuspension
	var until sql.NullTime
	var liftedBy sql.NullInt64
	if err := row.Scan(&s.ID, &s.UserID, &s.Reason, &s.SuspendedAt, &until, &s.IsActive, &liftedBy); err != nil {
		return nil, err
	}
	if until.Valid {
		s.SuspendedUntil = &until.Time
	}
	if liftedBy.Valid {
		s.LiftedBy = &liftedBy.Int64
	}
	return &s, nil
}

func (p *PostgresStore) CreateSuspension(ctx context.Context, s *UserSuspension) (*UserSuspension, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO user_suspensions (user_id, reason, suspended_at, suspended_until, is_active, lifted_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+suspensionColumns,
		s.UserID, s.Reason, s.SuspendedAt, nullTime(s.SuspendedUntil), s.IsActive, nullInt64(s.LiftedBy))
	return scanSuspension(row)
}

func (p *PostgresStore) GetActiveSuspension(ctx context.Context, userID int64) (*UserSuspension, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+suspensionColumns+` FROM user_suspensions WHERE user_id = $1 AND is_active LIMIT 1`, userID)
	s, err := scanSuspension(row)
	if err == sql.ErrNoRows {
		return nil, ErrSuspensionNotFound
	}
	return s, err
}

func (p *PostgresStore) LiftSuspension(ctx context.Context, id int64, liftedBy *int64) (*UserSuspension, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE user_suspensions SET is_active = false, lifted_by = $1 WHERE id = $2
		RETURNING `+suspensionColumns, nullInt64(liftedBy), id)
	s, err := scanSuspension(row)
	if err == sql.ErrNoRows {
		return nil, ErrSuspensionNotFound
	}
	return s, err
}

const appealColumns = `id, user_id, appeal_type, related_id, reason, evidence_urls, emergency_type,
	status, appeal_deadline, frivolous_fee_charged, emergency_waiver_used, created_at, reviewed_at`

func scanAppeal(row interface{ Scan(dest ...any) error }) (*Appeal, error) {
	var a Appeal
	var reviewedAt sql.NullTime
	var evidence []byte
	if err := row.Scan(&a.ID, &a.UserID, &a.AppealType, &a.RelatedID, &a.Reason, &evidence, &a.EmergencyType,
		&a.Status, &a.AppealDeadline, &a.FrivolousFeeCharged, &a.EmergencyWaiverUsed, &a.CreatedAt, &reviewedAt); err != nil {
		return nil, err
	}
	if reviewedAt.Valid {
		a.ReviewedAt = &reviewedAt.Time
	}
	a.EvidenceURLs = splitURLs(evidence)
	return &a, nil
}

// splitURLs and joinURLs encode the evidence-url slice as a newline-joined
// bytea, mirroring the dispute package's evidence storage convention.
func splitURLs(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	var out []string
	start := 0
	for i, c := range b {
		if c == '\n' {
			out = append(out, string(b[start:i]))
			start = i + 1
		}
	}
	if start < len(b) {
		out = append(out, string(b[start:]))
	}
	return out
}

func joinURLs(urls []string) []byte {
	out := []byte{}
	for i, u := range urls {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, []byte(u)...)
	}
	return out
}

func (p *PostgresStore) CreateAppeal(ctx context.Context, a *Appeal) (*Appeal, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO appeals (user_id, appeal_type, related_id, reason, evidence_urls, emergency_type,
			status, appeal_deadline, frivolous_fee_charged, emergency_waiver_used, created_at, reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL)
		RETURNING `+appealColumns,
		a.UserID, a.AppealType, a.RelatedID, a.Reason, joinURLs(a.EvidenceURLs), a.EmergencyType,
		a.Status, a.AppealDeadline, a.FrivolousFeeCharged, a.EmergencyWaiverUsed, a.CreatedAt)
	out, err := scanAppeal(row)
	if err != nil && db.IsUniqueViolation(err) {
		return nil, ErrDuplicateAppeal
	}
	return out, err
}

func (p *PostgresStore) GetAppeal(ctx context.Context, id int64) (*Appeal, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+appealColumns+` FROM appeals WHERE id = $1`, id)
	a, err := scanAppeal(row)
	if err == sql.ErrNoRows {
		return nil, ErrAppealNotFound
	}
	return a, err
}

func (p *PostgresStore) GetPendingAppealFor(ctx context.Context, appealType AppealType, relatedID int64) (*Appeal, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+appealColumns+` FROM appeals
		WHERE appeal_type = $1 AND related_id = $2 AND status = $3 LIMIT 1`,
		appealType, relatedID, AppealPending)
	a, err := scanAppeal(row)
	if err == sql.ErrNoRows {
		return nil, ErrAppealNotFound
	}
	return a, err
}

func (p *PostgresStore) UpdateAppealStatus(ctx context.Context, id int64, status AppealStatus, at time.Time) (*Appeal, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE appeals SET status = $1, reviewed_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+appealColumns,
		status, at, id, AppealPending)
	a, err := scanAppeal(row)
	if err == sql.ErrNoRows {
		return nil, ErrAppealAlreadyReviewed
	}
	return a, err
}

func (p *PostgresStore) CreateEmergencyWaiver(ctx context.Context, w *EmergencyWaiver) (*EmergencyWaiver, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO emergency_waivers (user_id, year, appeal_id, emergency_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, user_id, year, appeal_id, emergency_type`,
		w.UserID, w.Year, w.AppealID, w.EmergencyType)
	var out EmergencyWaiver
	err := row.Scan(&out.ID, &out.UserID, &out.Year, &out.AppealID, &out.EmergencyType)
	if err != nil && db.IsUniqueViolation(err) {
		return nil, ErrEmergencyWaiverClaimed
	}
	return &out, err
}

func (p *PostgresStore) GetEmergencyWaiverForYear(ctx context.Context, userID int64, year int) (*EmergencyWaiver, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT id, user_id, year, appeal_id, emergency_type FROM emergency_waivers
		WHERE user_id = $1 AND year = $2`, userID, year)
	var out EmergencyWaiver
	err := row.Scan(&out.ID, &out.UserID, &out.Year, &out.AppealID, &out.EmergencyType)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return &out, err
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
