// Package wallet implements the platform's per-user wallet ledger: balance
// and reserved-funds bookkeeping, idempotent transactions, funds holds
// (including the escrow variant used by the dispute engine), and the
// grace-period/suspension state machine triggered by a failed top-up.
//
// Every public Service method is a single atomic unit: the wallet row (and
// any counterparty wallet row, in a fixed low-id-first order) is locked for
// the duration of the mutation, and a Transaction row is always appended in
// the same unit that changes a balance. No component outside this package
// mutates a Wallet row directly.
package wallet

import (
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Status is the wallet's availability state.
type Status string

const (
	StatusActive      Status = "active"
	StatusGracePeriod Status = "grace_period"
	StatusSuspended   Status = "suspended"
)

// AutoTopup configures automatic replenishment when available balance
// drops below a threshold.
type AutoTopup struct {
	Enabled       bool
	Threshold     money.Cents
	Amount        money.Cents
	PaymentMethod string
}

// Wallet is a single-currency account belonging to exactly one user
// (staff, company, or agency — the schema is shared; behavior differs at
// the routing layer in the reservation/payout/penalty packages).
type Wallet struct {
	ID                int64
	UserID            int64
	Balance           money.Cents
	Reserved          money.Cents
	MinimumBalance    money.Cents
	AutoTopup         AutoTopup
	Status            Status
	GracePeriodEndsAt *time.Time
	LastFailedTopupAt *time.Time
	ExternalAccountID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Available is the portion of balance not currently reserved against a
// shift hold or escrow. Invariant: Balance >= Reserved >= 0.
func (w *Wallet) Available() money.Cents {
	return w.Balance.Sub(w.Reserved)
}

// IsUsable reports whether the wallet may be reserved against or paid out
// of — i.e. not currently suspended.
func (w *Wallet) IsUsable() bool {
	return w.Status != StatusSuspended
}

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TxTopup           TransactionType = "topup"
	TxReserve         TransactionType = "reserve"
	TxRelease         TransactionType = "release"
	TxSettlement      TransactionType = "settlement"
	TxCommission      TransactionType = "commission"
	TxPayout          TransactionType = "payout"
	TxRefund          TransactionType = "refund"
	TxCancellationFee TransactionType = "cancellation_fee"
	TxPenalty         TransactionType = "penalty"
)

// TransactionStatus is the lifecycle state of a Transaction row.
type TransactionStatus string

const (
	TxStatusPending   TransactionStatus = "pending"
	TxStatusCompleted TransactionStatus = "completed"
	TxStatusFailed    TransactionStatus = "failed"
	TxStatusCancelled TransactionStatus = "cancelled"
)

// Transaction is the append-only record of every balance change. Once
// Status is "completed" a row is never mutated again except that an explicit
// admin Reverse sets its ReversedAt; the balance correction itself is a new
// compensating Transaction.
type Transaction struct {
	ID                  int64
	WalletID            int64
	Type                TransactionType
	Amount              money.Cents
	Fee                 money.Cents
	NetAmount           money.Cents
	Status              TransactionStatus
	IdempotencyKey      string
	RelatedShiftID      *int64
	ProcessorChargeID   string
	ProcessorTransferID string
	ProcessorPayoutID   string
	Description         string
	CreatedAt           time.Time
	CompletedAt         *time.Time
	ReversedAt          *time.Time
	ReversalOfID        *int64
}

// HoldStatus is the lifecycle state of a FundsHold.
type HoldStatus string

const (
	HoldActive   HoldStatus = "active"
	HoldReleased HoldStatus = "released"
	HoldSettled  HoldStatus = "settled"
	HoldExpired  HoldStatus = "expired"
)

// HoldKind distinguishes an ordinary shift reservation from the escrow
// variant the dispute engine creates. The spec models escrow as a FundsHold
// carrying a description flag ("ESCROW:"); Kind is the structured
// equivalent of that flag — see the Open Questions entry on agency strike
// tagging in DESIGN.md for why this repo prefers a field over a string tag.
type HoldKind string

const (
	HoldKindShift  HoldKind = "shift"
	HoldKindEscrow HoldKind = "escrow"
)

// FundsHold represents money moved from a wallet's available balance into
// its reserved balance against a specific shift (or, for the escrow kind,
// against a dispute over that shift). At most one active hold of a given
// kind exists per (wallet_id, shift_id).
type FundsHold struct {
	ID         int64
	WalletID   int64
	ShiftID    int64
	Amount     money.Cents
	Kind       HoldKind
	Status     HoldStatus
	ExpiresAt  *time.Time
	ReleasedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Errors returned by Service methods.
var (
	ErrWalletNotFound      = errors.New("wallet: not found")
	ErrHoldNotFound        = errors.New("wallet: funds hold not found")
	ErrTransactionNotFound = errors.New("wallet: transaction not found")
	ErrDuplicateHold       = errors.New("wallet: an active hold already exists for this shift and wallet")
	ErrInvalidAutoTopup    = errors.New("wallet: auto-topup fields must all be set when enabled")
	ErrAlreadyReversed     = errors.New("wallet: transaction already reversed")
)
