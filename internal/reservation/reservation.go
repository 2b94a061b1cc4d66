// Package reservation is the reserve → settle → cancel core of the
// shift-lifecycle financial engine. It composes shift.Store (the record of
// what was posted and accepted) with wallet.Service (the ledger) — it never
// mutates a wallet row directly, only through wallet.Service's atomic
// operations.
package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

var (
	ErrScheduledReserveNotFound = errors.New("reservation: scheduled reserve not found")
	ErrNoActiveHold             = errors.New("reservation: no active funds hold for this shift")
	ErrNoAcceptedApplicant      = errors.New("reservation: shift has no single accepted applicant")
	ErrInvalidCanceller         = errors.New("reservation: cancelled_by must be worker, company, or platform")
)

// CancelledBy identifies which party triggered process_cancellation; the
// refund/compensation split depends on it.
type CancelledBy string

const (
	CancelledByWorker   CancelledBy = "worker"
	CancelledByCompany  CancelledBy = "company"
	CancelledByPlatform CancelledBy = "platform"
)

// ScheduledReserveStatus is the lifecycle state of a ScheduledReserve row.
type ScheduledReserveStatus string

const (
	ScheduledReservePending    ScheduledReserveStatus = "pending"
	ScheduledReserveProcessing ScheduledReserveStatus = "processing"
	ScheduledReserveCompleted  ScheduledReserveStatus = "completed"
	ScheduledReserveFailed     ScheduledReserveStatus = "failed"
	ScheduledReserveCancelled  ScheduledReserveStatus = "cancelled"
)

// ScheduledReserve is one pending fund reservation for a non-first day of a
// multi-day shift, executed by the scheduler when execute_at passes.
type ScheduledReserve struct {
	ID            int64
	ShiftID       int64
	WalletID      int64
	ShiftDate     time.Time
	Amount        money.Cents
	ExecuteAt     time.Time
	Status        ScheduledReserveStatus
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Store persists ScheduledReserve rows. FundsHold/Transaction persistence
// lives entirely in wallet.Store; this package only needs its own
// schedule-of-future-reserves bookkeeping.
type Store interface {
	CreateScheduledReserve(ctx context.Context, r *ScheduledReserve) (*ScheduledReserve, error)
	GetScheduledReserve(ctx context.Context, id int64) (*ScheduledReserve, error)
	UpdateScheduledReserveStatus(ctx context.Context, id int64, status ScheduledReserveStatus, failureReason string) error
	ListDueScheduledReserves(ctx context.Context, before time.Time, limit int) ([]*ScheduledReserve, error)
	ListScheduledReservesForShift(ctx context.Context, shiftID int64) ([]*ScheduledReserve, error)
}
