package reservation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pentedigital/extrashifty/internal/apperr"
	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/traces"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// PlatformFeeRate is the commission settle_shift retains, per the wallet
// ledger's single-rate fee schedule.
const PlatformFeeRate = 0.15

// LateCancelHoursRate is the fixed compensation paid to the worker/agency
// when a company cancels inside 24 hours of shift start.
const LateCancelHoursRate = 0.85

// Service implements reserve_shift_funds, schedule_subsequent_reserves,
// execute_scheduled_reserve, settle_shift, and process_cancellation. It
// composes shift.Store (the posting/application record) and wallet.Service
// (the ledger) without ever touching a wallet row directly.
type Service struct {
	store   Store
	shifts  shift.Store
	wallets *wallet.Service
	clock   clock.Clock
	logger  *slog.Logger
}

func NewService(store Store, shifts shift.Store, wallets *wallet.Service, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, shifts: shifts, wallets: wallets, clock: clk, logger: logger}
}

// dailyCost computes round2(duration_hours x hourly_rate) for the shift's
// first scheduled day.
func dailyCost(s *shift.Shift) money.Cents {
	return s.HourlyRate.MulFloatRoundHalfUp(s.DurationHours())
}

// ReserveShiftFunds implements reserve_shift_funds. The payer wallet is the
// shift's routed owner (agency in Mode B, company otherwise).
func (s *Service) ReserveShiftFunds(ctx context.Context, shiftID int64, idemKey string) (*wallet.FundsHold, error) {
	ctx, span := traces.StartSpan(ctx, "reservation.ReserveShiftFunds", traces.ShiftID(shiftID), traces.IdempotencyKey(idemKey))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	payer, err := s.wallets.GetOrCreate(ctx, sh.PayerWalletOwnerID())
	if err != nil {
		return nil, err
	}
	if !payer.IsUsable() {
		return nil, &apperr.WalletSuspendedError{WalletID: payer.ID, Status: string(payer.Status)}
	}

	cost := dailyCost(sh)
	required := cost.Add(payer.MinimumBalance)
	if payer.Available().LessThan(required) {
		return nil, &apperr.InsufficientFundsError{
			Required:       required.String(),
			Available:      payer.Available().String(),
			Shortfall:      required.Sub(payer.Available()).String(),
			MinimumBalance: payer.MinimumBalance.String(),
		}
	}

	expiresAt := sh.EndMoment().Add(24 * time.Hour)
	hold, _, err := s.wallets.Reserve(ctx, payer.ID, shiftID, cost, wallet.HoldKindShift, &expiresAt, idemKey)
	return hold, err
}

// ScheduleSubsequentReserves implements schedule_subsequent_reserves: one
// ScheduledReserve row per day after the first, executing 48h before that
// day's start. A day whose execute_at has already passed is promoted so the
// scheduler picks it up on its next sweep rather than waiting for a
// recomputed future time.
func (s *Service) ScheduleSubsequentReserves(ctx context.Context, shiftID int64, days []time.Time) ([]*ScheduledReserve, error) {
	ctx, span := traces.StartSpan(ctx, "reservation.ScheduleSubsequentReserves", traces.ShiftID(shiftID))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	payer, err := s.wallets.GetOrCreate(ctx, sh.PayerWalletOwnerID())
	if err != nil {
		return nil, err
	}
	cost := dailyCost(sh)

	var out []*ScheduledReserve
	for _, day := range days {
		executeAt := day.Add(-48 * time.Hour)
		row := &ScheduledReserve{
			ShiftID:   shiftID,
			WalletID:  payer.ID,
			ShiftDate: day,
			Amount:    cost,
			ExecuteAt: executeAt,
			Status:    ScheduledReservePending,
			CreatedAt: s.clock.Now(),
		}
		created, err := s.store.CreateScheduledReserve(ctx, row)
		if err != nil {
			return out, err
		}
		out = append(out, created)
	}
	return out, nil
}

// ExecuteScheduledReserve implements execute_scheduled_reserve: it repeats
// the reserve path for a single day. If the reserve fails (InsufficientFunds
// or any other error) the row is marked failed with the reason recorded, and
// the error is also returned to the caller.
func (s *Service) ExecuteScheduledReserve(ctx context.Context, id int64) (*wallet.FundsHold, error) {
	ctx, span := traces.StartSpan(ctx, "reservation.ExecuteScheduledReserve", attribute.Int64("scheduled_reserve.id", id))
	defer span.End()

	row, err := s.store.GetScheduledReserve(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Status != ScheduledReservePending {
		return nil, nil
	}

	if err := s.store.UpdateScheduledReserveStatus(ctx, id, ScheduledReserveProcessing, ""); err != nil {
		return nil, err
	}

	idemKey := fmt.Sprintf("scheduled_reserve:%d", id)
	hold, _, err := s.wallets.Reserve(ctx, row.WalletID, row.ShiftID, row.Amount, wallet.HoldKindShift, nil, idemKey)
	if err != nil {
		s.logger.Warn("scheduled reserve failed", "scheduled_reserve_id", id, "error", err)
		_ = s.store.UpdateScheduledReserveStatus(ctx, id, ScheduledReserveFailed, err.Error())
		return nil, err
	}

	if err := s.store.UpdateScheduledReserveStatus(ctx, id, ScheduledReserveCompleted, ""); err != nil {
		return nil, err
	}
	return hold, nil
}

// recipientUserID resolves who gets paid for a shift: the agency in Mode B,
// otherwise the sole accepted applicant.
func (s *Service) recipientUserID(ctx context.Context, sh *shift.Shift) (int64, error) {
	if sh.IsAgencyManaged && sh.PostedByAgencyID != nil {
		return *sh.PostedByAgencyID, nil
	}
	app, err := s.shifts.SoleAcceptedApplicant(ctx, sh.ID)
	if err != nil {
		return 0, ErrNoAcceptedApplicant
	}
	return app.ApplicantID, nil
}

// SettleShift implements settle_shift. Hours used default from actualHours,
// then shift.ActualHoursWorked, then the scheduled duration.
func (s *Service) SettleShift(ctx context.Context, shiftID int64, actualHours *float64) ([]*wallet.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "reservation.SettleShift", traces.ShiftID(shiftID))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}

	hours := sh.HoursWorked()
	if actualHours != nil {
		hours = *actualHours
	}

	gross := sh.HourlyRate.MulFloatRoundHalfUp(hours)
	platformFee := gross.MulFloatRoundHalfUp(PlatformFeeRate)
	recipientAmount := gross.Sub(platformFee)

	payer, err := s.wallets.GetOrCreate(ctx, sh.PayerWalletOwnerID())
	if err != nil {
		return nil, err
	}
	recipientUserID, err := s.recipientUserID(ctx, sh)
	if err != nil {
		return nil, err
	}
	recipient, err := s.wallets.GetOrCreate(ctx, recipientUserID)
	if err != nil {
		return nil, err
	}

	hold, err := s.wallets.GetActiveHold(ctx, payer.ID, shiftID, wallet.HoldKindShift)
	if err != nil {
		return nil, ErrNoActiveHold
	}

	idemKeyBase := fmt.Sprintf("settle:shift:%d", shiftID)
	txs, err := s.wallets.Settle(ctx, payer.ID, recipient.ID, hold.ID, gross, platformFee, recipientAmount, shiftID, idemKeyBase)
	if err != nil {
		return nil, err
	}

	if err := s.shifts.UpdateShiftStatus(ctx, shiftID, shift.StatusCompleted); err != nil {
		s.logger.Error("settle_shift succeeded but shift status update failed", "shift_id", shiftID, "error", err)
	}
	return txs, nil
}

// ProcessCancellation implements process_cancellation, applying the
// cancelled_by x hours-before-start policy table to split the active hold
// between a refund to the payer and compensation to the worker/agency.
func (s *Service) ProcessCancellation(ctx context.Context, shiftID int64, cancelledBy CancelledBy, at time.Time) ([]*wallet.Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "reservation.ProcessCancellation", traces.ShiftID(shiftID))
	defer span.End()

	switch cancelledBy {
	case CancelledByWorker, CancelledByCompany, CancelledByPlatform:
	default:
		return nil, ErrInvalidCanceller
	}

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	payer, err := s.wallets.GetOrCreate(ctx, sh.PayerWalletOwnerID())
	if err != nil {
		return nil, err
	}
	hold, err := s.wallets.GetActiveHold(ctx, payer.ID, shiftID, wallet.HoldKindShift)
	if err != nil {
		return nil, ErrNoActiveHold
	}

	deltaHours := sh.StartTime.Sub(at).Hours()
	compensation := s.compensationDue(sh, cancelledBy, deltaHours, hold.Amount)

	idemKeyBase := fmt.Sprintf("cancel:shift:%d", shiftID)
	var txs []*wallet.Transaction

	if compensation.IsZero() {
		_, tx, err := s.wallets.ReleaseHold(ctx, hold.ID, wallet.TxRelease, idemKeyBase+":release")
		if err != nil {
			return nil, err
		}
		if tx != nil {
			txs = append(txs, tx)
		}
	} else {
		partyUserID, err := s.compensationRecipient(ctx, sh)
		if err != nil {
			return nil, err
		}
		party, err := s.wallets.GetOrCreate(ctx, partyUserID)
		if err != nil {
			return nil, err
		}
		refund := hold.Amount.Sub(compensation)
		txs, err = s.wallets.ReleaseCompensation(ctx, payer.ID, party.ID, hold.ID, compensation, refund, shiftID, idemKeyBase)
		if err != nil {
			return nil, err
		}
	}

	if err := s.shifts.UpdateShiftStatus(ctx, shiftID, shift.StatusCancelled); err != nil {
		s.logger.Error("process_cancellation succeeded but shift status update failed", "shift_id", shiftID, "error", err)
	}
	return txs, nil
}

// compensationDue applies the cancellation policy table: worker and
// platform cancellations always fully refund the hold. A company
// cancellation pays nothing 48h or more before start, half the hold at
// 24-48h, and under 24h two hours at the shift rate times
// LateCancelHoursRate, capped at the hold.
func (s *Service) compensationDue(sh *shift.Shift, cancelledBy CancelledBy, deltaHours float64, holdAmount money.Cents) money.Cents {
	if cancelledBy != CancelledByCompany {
		return money.Zero
	}
	switch {
	case deltaHours >= 48:
		return money.Zero
	case deltaHours >= 24:
		return holdAmount.MulFloatRoundHalfUp(0.5)
	default:
		fixed := sh.HourlyRate.MulFloatRoundHalfUp(2 * LateCancelHoursRate)
		if fixed.GreaterThan(holdAmount) {
			return holdAmount
		}
		return fixed
	}
}

// compensationRecipient is the agency wallet owner for agency-supplied
// workers, the worker themselves otherwise.
func (s *Service) compensationRecipient(ctx context.Context, sh *shift.Shift) (int64, error) {
	if sh.IsAgencyManaged && sh.PostedByAgencyID != nil {
		return *sh.PostedByAgencyID, nil
	}
	app, err := s.shifts.SoleAcceptedApplicant(ctx, sh.ID)
	if err != nil {
		return 0, ErrNoAcceptedApplicant
	}
	return app.ApplicantID, nil
}

// ExpireDueScheduledReserves drives execute_scheduled_reserve from the
// scheduler: every row past its execute_at is attempted once per sweep.
func (s *Service) ExpireDueScheduledReserves(ctx context.Context, limit int) (int, error) {
	due, err := s.store.ListDueScheduledReserves(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, row := range due {
		if _, err := s.ExecuteScheduledReserve(ctx, row.ID); err != nil {
			continue
		}
		n++
	}
	return n, nil
}
