package dispute

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/pentedigital/extrashifty/internal/db"
)

// PostgresStore persists Dispute rows in PostgreSQL. Evidence is stored as
// a newline-joined text column rather than a side table: disputes rarely
// carry more than a handful of entries and the simpler column avoids a
// join on every read.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

const disputeColumns = `id, shift_id, raised_by_user_id, against_user_id, amount_disputed, reason,
	evidence, status, resolution, split_pct, admin_notes, escrow_hold_id, resolution_deadline,
	resolved_at, created_at, updated_at`

const evidenceSeparator = "\n---\n"

func scanDispute(row interface{ Scan(dest ...any) error }) (*Dispute, error) {
	var d Dispute
	var evidence sql.NullString
	var resolution sql.NullString
	var splitPct sql.NullInt64
	var adminNotes sql.NullString
	var resolvedAt sql.NullTime

	if err := row.Scan(&d.ID, &d.ShiftID, &d.RaisedByUserID, &d.AgainstUserID, &d.AmountDisputed, &d.Reason,
		&evidence, &d.Status, &resolution, &splitPct, &adminNotes, &d.EscrowHoldID, &d.ResolutionDeadline,
		&resolvedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if evidence.Valid && evidence.String != "" {
		d.Evidence = strings.Split(evidence.String, evidenceSeparator)
	}
	d.Resolution = Resolution(resolution.String)
	if splitPct.Valid {
		pct := int(splitPct.Int64)
		d.SplitPct = &pct
	}
	d.AdminNotes = adminNotes.String
	if resolvedAt.Valid {
		d.ResolvedAt = &resolvedAt.Time
	}
	return &d, nil
}

func (p *PostgresStore) Create(ctx context.Context, d *Dispute) (*Dispute, error) {
	var out *Dispute
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		var existingID int64
		err := tx.QueryRowContext(ctx, `
			SELECT id FROM disputes WHERE shift_id = $1 AND status IN ($2, $3) FOR UPDATE`,
			d.ShiftID, StatusOpen, StatusUnderReview).Scan(&existingID)
		if err == nil {
			return ErrAlreadyOpen
		}
		if err != sql.ErrNoRows {
			return err
		}

		status := d.Status
		if status == "" {
			status = StatusOpen
		}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO disputes (
				shift_id, raised_by_user_id, against_user_id, amount_disputed, reason,
				evidence, status, resolution, split_pct, admin_notes, escrow_hold_id,
				resolution_deadline, resolved_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
			RETURNING `+disputeColumns,
			d.ShiftID, d.RaisedByUserID, d.AgainstUserID, d.AmountDisputed, d.Reason,
			nullString(strings.Join(d.Evidence, evidenceSeparator)), status, nullString(string(d.Resolution)),
			nullIntPtr(d.SplitPct), d.AdminNotes, d.EscrowHoldID,
			d.ResolutionDeadline, nullTimePtr(d.ResolvedAt), d.CreatedAt,
		)
		created, err := scanDispute(row)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	return out, err
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Dispute, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func (p *PostgresStore) GetOpenOrUnderReviewForShift(ctx context.Context, shiftID int64) (*Dispute, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE shift_id = $1 AND status IN ($2, $3)`, shiftID, StatusOpen, StatusUnderReview)
	d, err := scanDispute(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return d, err
}

func (p *PostgresStore) AppendEvidence(ctx context.Context, id int64, entry string) (*Dispute, error) {
	var out *Dispute
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
		d, err := scanDispute(row)
		if err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}

		d.Evidence = append(d.Evidence, entry)
		newStatus := d.Status
		if newStatus == StatusOpen {
			newStatus = StatusUnderReview
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE disputes SET evidence = $1, status = $2, updated_at = now() WHERE id = $3`,
			strings.Join(d.Evidence, evidenceSeparator), newStatus, id); err != nil {
			return err
		}
		d.Status = newStatus
		out = d
		return nil
	})
	return out, err
}

func (p *PostgresStore) Resolve(ctx context.Context, id int64, status Status, resolution Resolution, splitPct *int, adminNotes string, resolvedAt time.Time) (*Dispute, error) {
	var out *Dispute
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, id)
		d, err := scanDispute(row)
		if err == sql.ErrNoRows {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		if !d.IsOpenOrUnderReview() {
			return ErrAlreadyResolved
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE disputes SET status = $1, resolution = $2, split_pct = $3, admin_notes = $4,
				resolved_at = $5, updated_at = $5
			WHERE id = $6`,
			status, string(resolution), nullIntPtr(splitPct), adminNotes, resolvedAt, id); err != nil {
			return err
		}

		d.Status = status
		d.Resolution = resolution
		d.SplitPct = splitPct
		d.AdminNotes = adminNotes
		d.ResolvedAt = &resolvedAt
		out = d
		return nil
	})
	return out, err
}

func (p *PostgresStore) ListOverdue(ctx context.Context, before time.Time, limit int) ([]*Dispute, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+disputeColumns+` FROM disputes
		WHERE status IN ($1, $2) AND resolution_deadline < $3
		ORDER BY resolution_deadline ASC
		LIMIT $4`, StatusOpen, StatusUnderReview, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullIntPtr(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTimePtr(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
