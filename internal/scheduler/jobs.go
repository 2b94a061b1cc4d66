package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/penalty"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/verification"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// sweepLimit bounds how many rows a single tick of a sweep job processes.
// A job that hits the limit picks up the remainder on its next tick rather
// than running unbounded against a large backlog.
const sweepLimit = 500

// Services bundles the domain services the default job table closes over.
// ExternalAccountOf resolves a user's payout destination for
// process_weekly_payouts; it may be nil in an environment with no payout
// processor configured.
type Services struct {
	Wallet            *wallet.Service
	Reservation       *reservation.Service
	Dispute           *dispute.Service
	Penalty           *penalty.Service
	Payout            *payout.Service
	Verification      *verification.Service
	ExternalAccountOf func(userID int64) string
}

// DefaultTasks builds the job table (spec §4.J): one Task per scheduled
// job, each closing over the Services it needs. Callers pass the result to
// New to construct a Scheduler.
func DefaultTasks(svc Services) []*Task {
	return []*Task{
		{
			Name:     "weekly_payout",
			Interval: time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Payout.ProcessWeeklyPayouts(ctx, svc.ExternalAccountOf, sweepLimit)
				if errors.Is(err, payout.ErrNotSchedulingDay) {
					return nil
				}
				return err
			},
		},
		{
			Name:     "auto_approve_shifts",
			Interval: 15 * time.Minute,
			Handler: func(ctx context.Context) error {
				_, err := svc.Verification.CheckAutoApproveShifts(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "auto_topup_check",
			Interval: 5 * time.Minute,
			Handler: func(ctx context.Context) error {
				_, err := svc.Wallet.CheckAutoTopup(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "expire_funds_holds",
			Interval: 30 * time.Minute,
			Handler: func(ctx context.Context) error {
				_, err := svc.Wallet.ExpireHolds(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "dispute_deadline_check",
			Interval: 24 * time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Dispute.AutoResolveOverdueDisputes(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "reserve_upcoming_shift_days",
			Interval: time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Reservation.ExpireDueScheduledReserves(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "check_wallet_suspensions",
			Interval: time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Wallet.CheckWalletSuspensions(ctx, sweepLimit)
				return err
			},
		},
		{
			Name:     "process_no_show_sweep",
			Interval: time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Penalty.ProcessNoShowSweep(ctx, sweepLimit)
				return err
			},
		},
		{
			// Not in the published job table; supplements it per the
			// inactivity write-off this sweep implements (penalty engine
			// §4.G) with a daily cadence matched to the original
			// implementation's nightly batch.
			Name:     "negative_balance_writeoff",
			Interval: 24 * time.Hour,
			Handler: func(ctx context.Context) error {
				_, err := svc.Penalty.WriteOffStaleNegativeBalances(ctx, sweepLimit)
				return err
			},
		},
	}
}
