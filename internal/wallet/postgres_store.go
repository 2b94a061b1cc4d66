package wallet

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/pentedigital/extrashifty/internal/apperr"
	"github.com/pentedigital/extrashifty/internal/db"
	"github.com/pentedigital/extrashifty/internal/money"
)

// PostgresStore implements Store with PostgreSQL, row-locking every wallet a
// method touches (lowest id first) via internal/db before mutating balance
// or reserved, and relying on a unique index on transactions.idempotency_key
// to make replay detection race-safe under concurrent requests.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed wallet store.
func NewPostgresStore(database *sql.DB) *PostgresStore {
	return &PostgresStore{db: database}
}

var _ Store = (*PostgresStore)(nil)

func scanWallet(row interface {
	Scan(dest ...any) error
}) (*Wallet, error) {
	w := &Wallet{}
	var autoEnabled bool
	var autoThreshold, autoAmount sql.NullInt64
	var autoMethod sql.NullString
	var graceEndsAt, lastFailedTopupAt sql.NullTime
	var externalAccountID sql.NullString

	err := row.Scan(
		&w.ID, &w.UserID, &w.Balance, &w.Reserved, &w.MinimumBalance,
		&autoEnabled, &autoThreshold, &autoAmount, &autoMethod,
		&w.Status, &graceEndsAt, &lastFailedTopupAt, &externalAccountID,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}

	w.AutoTopup = AutoTopup{
		Enabled:       autoEnabled,
		Threshold:     money.FromInt64(autoThreshold.Int64),
		Amount:        money.FromInt64(autoAmount.Int64),
		PaymentMethod: autoMethod.String,
	}
	if graceEndsAt.Valid {
		t := graceEndsAt.Time
		w.GracePeriodEndsAt = &t
	}
	if lastFailedTopupAt.Valid {
		t := lastFailedTopupAt.Time
		w.LastFailedTopupAt = &t
	}
	w.ExternalAccountID = externalAccountID.String
	return w, nil
}

const walletColumns = `id, user_id, balance, reserved, minimum_balance,
	auto_topup_enabled, auto_topup_threshold, auto_topup_amount, auto_topup_payment_method,
	status, grace_period_ends_at, last_failed_topup_at, external_account_id,
	created_at, updated_at`

func (p *PostgresStore) GetOrCreate(ctx context.Context, userID int64) (*Wallet, error) {
	w, err := p.GetByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if err != ErrWalletNotFound {
		return nil, err
	}

	row := p.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO wallets (user_id, balance, reserved, minimum_balance, status, created_at, updated_at)
		VALUES ($1, 0, 0, 0, 'active', NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING %s`, walletColumns), userID)
	return scanWallet(row)
}

func (p *PostgresStore) GetByID(ctx context.Context, id int64) (*Wallet, error) {
	row := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM wallets WHERE id = $1`, walletColumns), id)
	return scanWallet(row)
}

func (p *PostgresStore) GetByUserID(ctx context.Context, userID int64) (*Wallet, error) {
	row := p.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM wallets WHERE user_id = $1`, walletColumns), userID)
	return scanWallet(row)
}

func (p *PostgresStore) ConfigureAutoTopup(ctx context.Context, walletID int64, cfg AutoTopup) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET
			auto_topup_enabled = $2,
			auto_topup_threshold = $3,
			auto_topup_amount = $4,
			auto_topup_payment_method = $5,
			updated_at = NOW()
		WHERE id = $1`,
		walletID, cfg.Enabled, cfg.Threshold.Int64(), cfg.Amount.Int64(), cfg.PaymentMethod)
	if err != nil {
		return fmt.Errorf("wallet: configure auto-topup: %w", err)
	}
	return checkRowsAffected(res)
}

func (p *PostgresStore) SetStatus(ctx context.Context, walletID int64, status Status, graceEndsAt *time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE wallets SET status = $2, grace_period_ends_at = $3, updated_at = NOW()
		WHERE id = $1`, walletID, status, graceEndsAt)
	if err != nil {
		return fmt.Errorf("wallet: set status: %w", err)
	}
	return checkRowsAffected(res)
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// existingTxByIdemKey checks for a replayed request inside an open tx,
// the same pattern the teacher's ledger.Deposit uses against pq.Error.
func existingTxByIdemKey(ctx context.Context, tx *sql.Tx, idemKey string) (*Transaction, error) {
	tr, err := scanTransaction(tx.QueryRowContext(ctx, transactionSelectSQL+` WHERE idempotency_key = $1`, idemKey))
	if err == ErrTransactionNotFound {
		return nil, nil
	}
	return tr, err
}

func (p *PostgresStore) Topup(ctx context.Context, walletID int64, amount money.Cents, idemKey, processorChargeID string, processorFailed bool, graceEndsAt time.Time) (*Transaction, error) {
	var out *Transaction
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, idemKey); err != nil {
			return err
		} else if existing != nil {
			out = existing
			return nil
		}

		if err := db.LockWallet(ctx, tx, walletID); err != nil {
			return err
		}

		now := time.Now().UTC()
		status := TxStatusCompleted
		var completedAt *time.Time
		if processorFailed {
			status = TxStatusFailed
			if _, err := tx.ExecContext(ctx, `
				UPDATE wallets SET status = 'grace_period', grace_period_ends_at = $2, last_failed_topup_at = $3, updated_at = $3
				WHERE id = $1`, walletID, graceEndsAt, now); err != nil {
				return fmt.Errorf("wallet: mark grace period: %w", err)
			}
		} else {
			completedAt = &now
			if _, err := tx.ExecContext(ctx, `
				UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1`,
				walletID, amount.Int64(), now); err != nil {
				return fmt.Errorf("wallet: credit balance: %w", err)
			}
		}

		tr, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: walletID, Type: TxTopup, Amount: amount, NetAmount: amount,
			Status: status, IdempotencyKey: idemKey, ProcessorChargeID: processorChargeID,
			CreatedAt: now, CompletedAt: completedAt,
		})
		if err != nil {
			return err
		}
		out = tr
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrIdempotencyReplay
		}
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Reserve(ctx context.Context, walletID, shiftID int64, amount money.Cents, kind HoldKind, expiresAt *time.Time, idemKey string) (*FundsHold, *Transaction, error) {
	var outHold *FundsHold
	var outTx *Transaction
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, idemKey); err != nil {
			return err
		} else if existing != nil {
			outTx = existing
			h, herr := scanHold(tx.QueryRowContext(ctx, holdSelectSQL+` WHERE wallet_id = $1 AND shift_id = $2 AND kind = $3 ORDER BY id DESC LIMIT 1`, walletID, shiftID, kind))
			if herr != nil && herr != ErrHoldNotFound {
				return herr
			}
			outHold = h
			return nil
		}

		if err := db.LockWallet(ctx, tx, walletID); err != nil {
			return err
		}

		var dupCount int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM funds_holds WHERE wallet_id = $1 AND shift_id = $2 AND kind = $3 AND status = 'active'`,
			walletID, shiftID, kind).Scan(&dupCount); err != nil {
			return fmt.Errorf("wallet: check duplicate hold: %w", err)
		}
		if dupCount > 0 {
			return ErrDuplicateHold
		}

		now := time.Now().UTC()
		hold := &FundsHold{}
		row := tx.QueryRowContext(ctx, `
			INSERT INTO funds_holds (wallet_id, shift_id, amount, kind, status, expires_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'active', $5, $6, $6)
			RETURNING id, wallet_id, shift_id, amount, kind, status, expires_at, released_at, created_at, updated_at`,
			walletID, shiftID, amount.Int64(), kind, expiresAt, now)
		h, err := scanHold(row)
		if err != nil {
			return err
		}
		hold = h

		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET reserved = reserved + $2, updated_at = $3 WHERE id = $1`,
			walletID, amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: increment reserved: %w", err)
		}

		tr, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: walletID, Type: TxReserve, Amount: amount, NetAmount: amount,
			Status: TxStatusCompleted, IdempotencyKey: idemKey, RelatedShiftID: &shiftID,
			CreatedAt: now, CompletedAt: &now,
		})
		if err != nil {
			return err
		}

		outHold, outTx = hold, tr
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, nil, apperr.ErrIdempotencyReplay
		}
		return nil, nil, err
	}
	return outHold, outTx, nil
}

func (p *PostgresStore) ReleaseHold(ctx context.Context, holdID int64, txType TransactionType, idemKey string) (*FundsHold, *Transaction, error) {
	var outHold *FundsHold
	var outTx *Transaction
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, idemKey); err != nil {
			return err
		} else if existing != nil {
			outTx = existing
			h, herr := scanHold(tx.QueryRowContext(ctx, holdSelectSQL+` WHERE id = $1`, holdID))
			if herr != nil {
				return herr
			}
			outHold = h
			return nil
		}

		hold, err := scanHold(tx.QueryRowContext(ctx, holdSelectSQL+` WHERE id = $1 FOR UPDATE`, holdID))
		if err != nil {
			return err
		}
		if err := db.LockWallet(ctx, tx, hold.WalletID); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE funds_holds SET status = 'released', released_at = $2, updated_at = $2 WHERE id = $1`,
			holdID, now); err != nil {
			return fmt.Errorf("wallet: release hold: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET reserved = reserved - $2, updated_at = $3 WHERE id = $1`,
			hold.WalletID, hold.Amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: decrement reserved: %w", err)
		}

		tr, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: hold.WalletID, Type: txType, Amount: hold.Amount, NetAmount: hold.Amount,
			Status: TxStatusCompleted, IdempotencyKey: idemKey, RelatedShiftID: &hold.ShiftID,
			CreatedAt: now, CompletedAt: &now,
		})
		if err != nil {
			return err
		}

		hold.Status = HoldReleased
		hold.ReleasedAt = &now
		outHold, outTx = hold, tr
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, nil, apperr.ErrIdempotencyReplay
		}
		return nil, nil, err
	}
	return outHold, outTx, nil
}

func (p *PostgresStore) Settle(ctx context.Context, payerWalletID, recipientWalletID, payerHoldID int64, gross, commission, recipientAmount money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	var out []*Transaction
	refundKey := idemKeyBase + ":refund"
	commissionKey := idemKeyBase + ":commission"
	settlementKey := idemKeyBase + ":settlement"

	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, commissionKey); err != nil {
			return err
		} else if existing != nil {
			if r, err := existingTxByIdemKey(ctx, tx, refundKey); err != nil {
				return err
			} else if r != nil {
				out = append(out, r)
			}
			out = append(out, existing)
			if s, err := existingTxByIdemKey(ctx, tx, settlementKey); err != nil {
				return err
			} else if s != nil {
				out = append(out, s)
			}
			return nil
		}

		if err := db.LockWalletsInOrder(ctx, tx, payerWalletID, recipientWalletID); err != nil {
			return err
		}

		hold, err := scanHold(tx.QueryRowContext(ctx, holdSelectSQL+` WHERE id = $1 FOR UPDATE`, payerHoldID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE funds_holds SET status = 'settled', updated_at = $2 WHERE id = $1`, payerHoldID, now); err != nil {
			return fmt.Errorf("wallet: settle hold: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET reserved = reserved - $2, updated_at = $3 WHERE id = $1`,
			payerWalletID, hold.Amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: decrement reserved: %w", err)
		}

		// The hold never left balance (Reserve only earmarks a portion via
		// reserved), so decrementing reserved above already restored any
		// unused portion to available. This transaction records that
		// unused portion; it must not credit balance a second time.
		if diff := hold.Amount.Sub(gross); diff.IsPositive() {
			tr, err := insertTransaction(ctx, tx, &Transaction{
				WalletID: payerWalletID, Type: TxRefund, Amount: diff, NetAmount: diff,
				Status: TxStatusCompleted, IdempotencyKey: refundKey, RelatedShiftID: &relatedShiftID,
				CreatedAt: now, CompletedAt: &now,
			})
			if err != nil {
				return err
			}
			out = append(out, tr)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = $3 WHERE id = $1`,
			payerWalletID, gross.Int64(), now); err != nil {
			return fmt.Errorf("wallet: debit gross: %w", err)
		}
		commissionTx, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: payerWalletID, Type: TxCommission, Amount: commission, NetAmount: commission,
			Status: TxStatusCompleted, IdempotencyKey: commissionKey, RelatedShiftID: &relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		})
		if err != nil {
			return err
		}
		out = append(out, commissionTx)

		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1`,
			recipientWalletID, recipientAmount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: credit recipient: %w", err)
		}
		settlementTx, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: recipientWalletID, Type: TxSettlement, Amount: recipientAmount, NetAmount: recipientAmount,
			Status: TxStatusCompleted, IdempotencyKey: settlementKey, RelatedShiftID: &relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		})
		if err != nil {
			return err
		}
		out = append(out, settlementTx)
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrIdempotencyReplay
		}
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) ReleaseCompensation(ctx context.Context, payerWalletID, partyWalletID, holdID int64, compensation, refund money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	var out []*Transaction
	compKey := idemKeyBase + ":compensation"
	refundKey := idemKeyBase + ":refund"

	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, refundKey); err != nil {
			return err
		} else if existing != nil {
			if c, err := existingTxByIdemKey(ctx, tx, compKey); err != nil {
				return err
			} else if c != nil {
				out = append(out, c)
			}
			out = append(out, existing)
			return nil
		}

		if err := db.LockWalletsInOrder(ctx, tx, payerWalletID, partyWalletID); err != nil {
			return err
		}

		hold, err := scanHold(tx.QueryRowContext(ctx, holdSelectSQL+` WHERE id = $1 FOR UPDATE`, holdID))
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `
			UPDATE funds_holds SET status = 'released', released_at = $2, updated_at = $2 WHERE id = $1`, holdID, now); err != nil {
			return fmt.Errorf("wallet: release hold: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE wallets SET reserved = reserved - $2, updated_at = $3 WHERE id = $1`,
			payerWalletID, hold.Amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: decrement reserved: %w", err)
		}

		if compensation.IsPositive() {
			if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $2, updated_at = $3 WHERE id = $1`,
				partyWalletID, compensation.Int64(), now); err != nil {
				return fmt.Errorf("wallet: credit compensation: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $2, updated_at = $3 WHERE id = $1`,
				payerWalletID, compensation.Int64(), now); err != nil {
				return fmt.Errorf("wallet: debit compensation: %w", err)
			}
			tr, err := insertTransaction(ctx, tx, &Transaction{
				WalletID: partyWalletID, Type: TxCancellationFee, Amount: compensation, NetAmount: compensation,
				Status: TxStatusCompleted, IdempotencyKey: compKey, RelatedShiftID: &relatedShiftID,
				CreatedAt: now, CompletedAt: &now,
			})
			if err != nil {
				return err
			}
			out = append(out, tr)
		}

		// As in Settle, the un-compensated remainder of the hold was never
		// removed from balance; decrementing reserved above already made it
		// available again, so this entry only records it.
		if refund.IsPositive() {
			tr, err := insertTransaction(ctx, tx, &Transaction{
				WalletID: payerWalletID, Type: TxRefund, Amount: refund, NetAmount: refund,
				Status: TxStatusCompleted, IdempotencyKey: refundKey, RelatedShiftID: &relatedShiftID,
				CreatedAt: now, CompletedAt: &now,
			})
			if err != nil {
				return err
			}
			out = append(out, tr)
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrIdempotencyReplay
		}
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) debitCredit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string, credit bool) (*Transaction, error) {
	var out *Transaction
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		if existing, err := existingTxByIdemKey(ctx, tx, idemKey); err != nil {
			return err
		} else if existing != nil {
			out = existing
			return nil
		}

		if err := db.LockWallet(ctx, tx, walletID); err != nil {
			return err
		}

		now := time.Now().UTC()
		sign := "-"
		if credit {
			sign = "+"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE wallets SET balance = balance %s $2, updated_at = $3 WHERE id = $1`, sign),
			walletID, amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: adjust balance: %w", err)
		}

		tr, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: walletID, Type: txType, Amount: amount, NetAmount: amount,
			Status: TxStatusCompleted, IdempotencyKey: idemKey, RelatedShiftID: relatedShiftID,
			CreatedAt: now, CompletedAt: &now,
		})
		if err != nil {
			return err
		}
		out = tr
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, apperr.ErrIdempotencyReplay
		}
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) Debit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	return p.debitCredit(ctx, walletID, amount, txType, relatedShiftID, idemKey, false)
}

func (p *PostgresStore) Credit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	return p.debitCredit(ctx, walletID, amount, txType, relatedShiftID, idemKey, true)
}

const holdSelectSQL = `SELECT id, wallet_id, shift_id, amount, kind, status, expires_at, released_at, created_at, updated_at FROM funds_holds`

func scanHold(row interface{ Scan(dest ...any) error }) (*FundsHold, error) {
	h := &FundsHold{}
	var expiresAt, releasedAt sql.NullTime
	err := row.Scan(&h.ID, &h.WalletID, &h.ShiftID, &h.Amount, &h.Kind, &h.Status, &expiresAt, &releasedAt, &h.CreatedAt, &h.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrHoldNotFound
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		h.ExpiresAt = &t
	}
	if releasedAt.Valid {
		t := releasedAt.Time
		h.ReleasedAt = &t
	}
	return h, nil
}

func (p *PostgresStore) GetHold(ctx context.Context, id int64) (*FundsHold, error) {
	return scanHold(p.db.QueryRowContext(ctx, holdSelectSQL+` WHERE id = $1`, id))
}

func (p *PostgresStore) GetActiveHold(ctx context.Context, walletID, shiftID int64, kind HoldKind) (*FundsHold, error) {
	return scanHold(p.db.QueryRowContext(ctx,
		holdSelectSQL+` WHERE wallet_id = $1 AND shift_id = $2 AND kind = $3 AND status = 'active'`,
		walletID, shiftID, kind))
}

func (p *PostgresStore) ListExpiredHolds(ctx context.Context, before time.Time, limit int) ([]*FundsHold, error) {
	rows, err := p.db.QueryContext(ctx,
		holdSelectSQL+` WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1 ORDER BY expires_at ASC LIMIT $2`,
		before, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet: list expired holds: %w", err)
	}
	defer rows.Close()

	var out []*FundsHold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

const transactionSelectSQL = `SELECT id, wallet_id, type, amount, fee, net_amount, status, idempotency_key,
	related_shift_id, processor_charge_id, processor_transfer_id, processor_payout_id, description,
	created_at, completed_at, reversed_at, reversal_of_id FROM transactions`

func scanTransaction(row interface{ Scan(dest ...any) error }) (*Transaction, error) {
	t := &Transaction{}
	var relatedShiftID, reversalOfID sql.NullInt64
	var processorChargeID, processorTransferID, processorPayoutID, description sql.NullString
	var completedAt, reversedAt sql.NullTime

	err := row.Scan(
		&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Fee, &t.NetAmount, &t.Status, &t.IdempotencyKey,
		&relatedShiftID, &processorChargeID, &processorTransferID, &processorPayoutID, &description,
		&t.CreatedAt, &completedAt, &reversedAt, &reversalOfID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	if relatedShiftID.Valid {
		v := relatedShiftID.Int64
		t.RelatedShiftID = &v
	}
	if reversalOfID.Valid {
		v := reversalOfID.Int64
		t.ReversalOfID = &v
	}
	t.ProcessorChargeID = processorChargeID.String
	t.ProcessorTransferID = processorTransferID.String
	t.ProcessorPayoutID = processorPayoutID.String
	t.Description = description.String
	if completedAt.Valid {
		v := completedAt.Time
		t.CompletedAt = &v
	}
	if reversedAt.Valid {
		v := reversedAt.Time
		t.ReversedAt = &v
	}
	return t, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t *Transaction) (*Transaction, error) {
	row := tx.QueryRowContext(ctx, `
		INSERT INTO transactions (
			wallet_id, type, amount, fee, net_amount, status, idempotency_key,
			related_shift_id, processor_charge_id, processor_transfer_id, processor_payout_id, description,
			created_at, completed_at, reversed_at, reversal_of_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, wallet_id, type, amount, fee, net_amount, status, idempotency_key,
			related_shift_id, processor_charge_id, processor_transfer_id, processor_payout_id, description,
			created_at, completed_at, reversed_at, reversal_of_id`,
		t.WalletID, t.Type, t.Amount.Int64(), t.Fee.Int64(), t.NetAmount.Int64(), t.Status, t.IdempotencyKey,
		t.RelatedShiftID, t.ProcessorChargeID, t.ProcessorTransferID, t.ProcessorPayoutID, t.Description,
		t.CreatedAt, t.CompletedAt, t.ReversedAt, t.ReversalOfID,
	)
	return scanTransaction(row)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (p *PostgresStore) GetTransactionByIdempotencyKey(ctx context.Context, idemKey string) (*Transaction, error) {
	return scanTransaction(p.db.QueryRowContext(ctx, transactionSelectSQL+` WHERE idempotency_key = $1`, idemKey))
}

func (p *PostgresStore) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	return scanTransaction(p.db.QueryRowContext(ctx, transactionSelectSQL+` WHERE id = $1`, id))
}

func (p *PostgresStore) ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]*Transaction, error) {
	rows, err := p.db.QueryContext(ctx,
		transactionSelectSQL+` WHERE wallet_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet: list transactions: %w", err)
	}
	defer rows.Close()

	var out []*Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *PostgresStore) Reverse(ctx context.Context, transactionID int64, reason string, adminID int64) (*Transaction, error) {
	var out *Transaction
	err := db.WithTx(ctx, p.db, func(tx *sql.Tx) error {
		orig, err := scanTransaction(tx.QueryRowContext(ctx, transactionSelectSQL+` WHERE id = $1 FOR UPDATE`, transactionID))
		if err != nil {
			return err
		}
		if orig.ReversedAt != nil {
			return ErrAlreadyReversed
		}
		if err := db.LockWallet(ctx, tx, orig.WalletID); err != nil {
			return err
		}

		now := time.Now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE transactions SET reversed_at = $2 WHERE id = $1`, transactionID, now); err != nil {
			return fmt.Errorf("wallet: mark reversed: %w", err)
		}

		sign := "+"
		switch orig.Type {
		case TxTopup, TxSettlement, TxRefund:
			sign = "-"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE wallets SET balance = balance %s $2, updated_at = $3 WHERE id = $1`, sign),
			orig.WalletID, orig.Amount.Int64(), now); err != nil {
			return fmt.Errorf("wallet: apply reversal: %w", err)
		}

		idemKey := fmt.Sprintf("reverse:%d:by:%d", transactionID, adminID)
		tr, err := insertTransaction(ctx, tx, &Transaction{
			WalletID: orig.WalletID, Type: orig.Type, Amount: orig.Amount, NetAmount: orig.Amount,
			Status: TxStatusCompleted, IdempotencyKey: idemKey, Description: reason,
			CreatedAt: now, CompletedAt: &now, ReversalOfID: &transactionID,
		})
		if err != nil {
			return err
		}
		out = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) SumActiveHolds(ctx context.Context, walletID int64) (money.Cents, error) {
	var sum sql.NullInt64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM funds_holds WHERE wallet_id = $1 AND status = 'active'`,
		walletID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("wallet: sum active holds: %w", err)
	}
	return money.FromInt64(sum.Int64), nil
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Wallet, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM wallets WHERE status = $1 LIMIT $2`, walletColumns), status, limit)
	if err != nil {
		return nil, fmt.Errorf("wallet: list by status: %w", err)
	}
	defer rows.Close()

	var out []*Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (p *PostgresStore) ListPayable(ctx context.Context, minAvailable money.Cents, roles []string, limit int) ([]*Wallet, error) {
	rows, err := p.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s FROM wallets w
		JOIN users u ON u.id = w.user_id
		WHERE (w.balance - w.reserved) >= $1 AND w.status != 'suspended' AND u.role = ANY($2)
		LIMIT $3`, walletColumnsPrefixed("w")), minAvailable.Int64(), pq.Array(roles), limit)
	if err != nil {
		return nil, fmt.Errorf("wallet: list payable: %w", err)
	}
	defer rows.Close()

	var out []*Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func walletColumnsPrefixed(alias string) string {
	cols := []string{
		"id", "user_id", "balance", "reserved", "minimum_balance",
		"auto_topup_enabled", "auto_topup_threshold", "auto_topup_amount", "auto_topup_payment_method",
		"status", "grace_period_ends_at", "last_failed_topup_at", "external_account_id",
		"created_at", "updated_at",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}
