// Package payout implements the two payout paths (spec §4.H): a
// user-initiated instant payout charged a flat fee, and the scheduler's
// weekly sweep that pays every eligible staff/agency wallet in full. A
// Payout only ever starts pending here; in_transit and paid are driven by
// the payment processor's webhook, dispatched through internal/processor,
// never by a direct core transition.
package payout

import (
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Wire constants (spec §6).
const (
	InstantFeeRate      = 0.015
	InstantMinimum      = "10.00"
	WeeklyMinimum       = "50.00"
	WeeklyPayoutWeekday = time.Friday
)

var (
	ErrNotFound            = errors.New("payout: not found")
	ErrBelowMinimum        = errors.New("payout: amount is below the minimum payout threshold")
	ErrNotSchedulingDay    = errors.New("payout: weekly payouts only run on the scheduled weekday")
	ErrNotPending          = errors.New("payout: payout is not in pending state")
	ErrNothingToPay        = errors.New("payout: wallet has nothing payable")
)

// Method mirrors processor.Method: standard (ACH, multi-day) or instant
// (debit-card rail, same-day, fee-bearing).
type Method string

const (
	MethodStandard Method = "standard"
	MethodInstant  Method = "instant"
)

// Status is the payout's lifecycle state. pending is the only state this
// package ever sets directly; the rest are driven by processor webhooks.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInTransit  Status = "in_transit"
	StatusPaid       Status = "paid"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Payout is a single withdrawal of available balance to a user's external
// account. Amount is the effective amount after any negative-balance
// offset; OffsetApplied plus Amount is what was actually debited from the
// wallet.
type Payout struct {
	ID                int64
	UserID            int64
	WalletID          int64
	Amount            money.Cents
	Fee               money.Cents
	NetAmount         money.Cents
	OffsetApplied     money.Cents
	Method            Method
	Status            Status
	ProcessorPayoutID string
	IdempotencyKey    string
	RequestedAt       time.Time
	ProcessedAt       *time.Time
	FailReason        string
}
