package wallet

import (
	"context"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Store is the persistence contract for the wallet ledger. Each method is
// expected to execute as a single database transaction; cross-wallet
// methods (Settle, ReleaseCompensation) must row-lock every wallet they
// touch in a fixed global order (lowest wallet id first).
type Store interface {
	GetOrCreate(ctx context.Context, userID int64) (*Wallet, error)
	GetByID(ctx context.Context, id int64) (*Wallet, error)
	GetByUserID(ctx context.Context, userID int64) (*Wallet, error)

	ConfigureAutoTopup(ctx context.Context, walletID int64, cfg AutoTopup) error
	SetStatus(ctx context.Context, walletID int64, status Status, graceEndsAt *time.Time) error

	// Topup credits available balance and records a Transaction, replay-safe
	// on idemKey. On processorFailed it instead writes a failed Transaction
	// and moves the wallet into grace_period.
	Topup(ctx context.Context, walletID int64, amount money.Cents, idemKey string, processorChargeID string, processorFailed bool, graceEndsAt time.Time) (*Transaction, error)

	// Reserve creates an active FundsHold of the given kind and increments
	// reserved by amount, replay-safe on idemKey. Returns ErrDuplicateHold
	// if an active hold of the same kind already exists for (walletID, shiftID).
	Reserve(ctx context.Context, walletID, shiftID int64, amount money.Cents, kind HoldKind, expiresAt *time.Time, idemKey string) (*FundsHold, *Transaction, error)

	// ReleaseHold fully releases an active hold back to available balance
	// (cancellation, refund, expiry) and appends a release/refund Transaction.
	ReleaseHold(ctx context.Context, holdID int64, txType TransactionType, idemKey string) (*FundsHold, *Transaction, error)

	// Settle performs the full shift settlement: releases payerHoldID,
	// refunds the payer the difference between the hold amount and gross
	// (if positive), debits the payer gross, credits the recipient wallet
	// recipientAmount, and appends commission/settlement transactions. All
	// wallets are locked in id order.
	Settle(ctx context.Context, payerWalletID, recipientWalletID, payerHoldID int64, gross, commission, recipientAmount money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error)

	// ReleaseCompensation pays partyWalletID an amount out of payerWalletID
	// (late-cancellation compensation, dispute resolution) and refunds the
	// remainder of the hold to payerWalletID, releasing the hold.
	ReleaseCompensation(ctx context.Context, payerWalletID, partyWalletID, holdID int64, compensation, refund money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error)

	// Debit and Credit are raw balance mutations used by the penalty and
	// payout engines (collect_penalty, offset_negative_balance, payout
	// creation). Both append a Transaction.
	Debit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error)
	Credit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error)

	GetHold(ctx context.Context, id int64) (*FundsHold, error)
	GetActiveHold(ctx context.Context, walletID, shiftID int64, kind HoldKind) (*FundsHold, error)
	ListExpiredHolds(ctx context.Context, before time.Time, limit int) ([]*FundsHold, error)

	GetTransactionByIdempotencyKey(ctx context.Context, idemKey string) (*Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]*Transaction, error)

	Reverse(ctx context.Context, transactionID int64, reason string, adminID int64) (*Transaction, error)

	// SumActiveHolds computes the sum of active holds for a wallet — used to
	// rebuild wallet.reserved from the active holds on recovery.
	SumActiveHolds(ctx context.Context, walletID int64) (money.Cents, error)

	// ListByStatus returns up to limit wallets in the given status, for the
	// auto-topup (active) and suspension (grace_period) jobs.
	ListByStatus(ctx context.Context, status Status, limit int) ([]*Wallet, error)

	// ListPayable returns wallets with available >= minAvailable and a user
	// role in the given set, for the weekly payout sweep.
	ListPayable(ctx context.Context, minAvailable money.Cents, roles []string, limit int) ([]*Wallet, error)
}
