package payout

import (
	"context"
	"database/sql"
	"time"

	"github.com/pentedigital/extrashifty/internal/db"
)

// PostgresStore persists payouts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

const payoutColumns = `id, user_id, wallet_id, amount, fee, net_amount, offset_applied, method, status,
	processor_payout_id, idempotency_key, requested_at, processed_at, fail_reason`

func scanPayout(row interface{ Scan(dest ...any) error }) (*Payout, error) {
	var p Payout
	var processedAt sql.NullTime
	if err := row.Scan(&p.ID, &p.UserID, &p.WalletID, &p.Amount, &p.Fee, &p.NetAmount, &p.OffsetApplied, &p.Method, &p.Status,
		&p.ProcessorPayoutID, &p.IdempotencyKey, &p.RequestedAt, &processedAt, &p.FailReason); err != nil {
		return nil, err
	}
	if processedAt.Valid {
		p.ProcessedAt = &processedAt.Time
	}
	return &p, nil
}

func (p *PostgresStore) Create(ctx context.Context, po *Payout) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `
		INSERT INTO payouts (user_id, wallet_id, amount, fee, net_amount, offset_applied, method, status,
			processor_payout_id, idempotency_key, requested_at, processed_at, fail_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NULL, '')
		ON CONFLICT (idempotency_key) DO UPDATE SET idempotency_key = excluded.idempotency_key
		RETURNING `+payoutColumns,
		po.UserID, po.WalletID, po.Amount, po.Fee, po.NetAmount, po.OffsetApplied, po.Method, po.Status,
		po.ProcessorPayoutID, po.IdempotencyKey, po.RequestedAt)
	out, err := scanPayout(row)
	if err != nil && db.IsUniqueViolation(err) {
		return p.GetByIdempotencyKey(ctx, po.IdempotencyKey)
	}
	return out, err
}

func (p *PostgresStore) Get(ctx context.Context, id int64) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	out, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) GetByIdempotencyKey(ctx context.Context, idemKey string) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE idempotency_key = $1`, idemKey)
	out, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) GetByProcessorID(ctx context.Context, processorPayoutID string) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE processor_payout_id = $1`, processorPayoutID)
	out, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) UpdateStatus(ctx context.Context, id int64, status Status, processorPayoutID, failReason string, processedAt *time.Time) (*Payout, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE payouts SET
			status = $1,
			processor_payout_id = CASE WHEN $2 = '' THEN processor_payout_id ELSE $2 END,
			fail_reason = $3,
			processed_at = $4
		WHERE id = $5
		RETURNING `+payoutColumns,
		status, processorPayoutID, failReason, nullTime(processedAt), id)
	out, err := scanPayout(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return out, err
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Payout, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE user_id = $1
		ORDER BY requested_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Payout
	for rows.Next() {
		po, err := scanPayout(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
