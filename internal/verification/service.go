package verification

import (
	"log/slog"

	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/traces"
)

// Service implements clock_in, clock_out, manager_approve_shift,
// manager_reject_shift and check_auto_approve_shifts (spec §4.I). It keeps
// no storage of its own, composing shift.Store directly for the clock
// events and reservation.Service/dispute.Service for the settlement and
// dispute sides of an approval decision — the same composition style
// dispute.Service uses for shift.Store and wallet.Service.
type Service struct {
	shifts       shift.Store
	reservations *reservation.Service
	disputes     *dispute.Service
	clock        clock.Clock
	logger       *slog.Logger
}

func NewService(shifts shift.Store, reservations *reservation.Service, disputes *dispute.Service, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{shifts: shifts, reservations: reservations, disputes: disputes, clock: clk, logger: logger}
}

// ClockIn implements clock_in: the caller must be the shift's sole
// accepted applicant, and the shift must be filled (not already in
// progress or further along).
func (s *Service) ClockIn(ctx context.Context, shiftID, workerID int64) (*shift.Shift, error) {
	ctx, span := traces.StartSpan(ctx, "verification.ClockIn", traces.ShiftID(shiftID), attribute.Int64("user.id", workerID))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSoleApplicant(ctx, sh, workerID); err != nil {
		return nil, err
	}
	if sh.Status != shift.StatusFilled {
		if sh.Status == shift.StatusInProgress || sh.Status == shift.StatusCompleted {
			return nil, ErrAlreadyClockedIn
		}
		return nil, ErrNotInProgress
	}
	if sh.ClockInAt != nil {
		return nil, ErrAlreadyClockedIn
	}

	now := s.clock.Now()
	if err := s.shifts.RecordClockIn(ctx, shiftID, now); err != nil {
		return nil, err
	}
	return s.shifts.GetShift(ctx, shiftID)
}

// ClockOut implements clock_out: records actual_hours_worked as the
// elapsed time since clock-in and transitions the shift to completed.
func (s *Service) ClockOut(ctx context.Context, shiftID, workerID int64) (*shift.Shift, error) {
	ctx, span := traces.StartSpan(ctx, "verification.ClockOut", traces.ShiftID(shiftID), attribute.Int64("user.id", workerID))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if err := s.requireSoleApplicant(ctx, sh, workerID); err != nil {
		return nil, err
	}
	if sh.ClockInAt == nil {
		return nil, ErrNotClockedIn
	}
	if sh.ClockOutAt != nil {
		return nil, ErrAlreadyClockedOut
	}

	now := s.clock.Now()
	actualHours := now.Sub(*sh.ClockInAt).Hours()
	if err := s.shifts.RecordClockOut(ctx, shiftID, now, actualHours); err != nil {
		return nil, err
	}
	if err := s.shifts.UpdateShiftStatus(ctx, shiftID, shift.StatusCompleted); err != nil {
		return nil, err
	}
	return s.shifts.GetShift(ctx, shiftID)
}

func (s *Service) requireSoleApplicant(ctx context.Context, sh *shift.Shift, workerID int64) error {
	app, err := s.shifts.SoleAcceptedApplicant(ctx, sh.ID)
	if err != nil {
		return err
	}
	if app.ApplicantID != workerID {
		return ErrNotSoleApplicant
	}
	return nil
}

// ManagerApproveShift implements manager_approve_shift: validates the
// caller's role and triggers settle_shift with the given (or recorded)
// actual hours.
func (s *Service) ManagerApproveShift(ctx context.Context, shiftID, managerID int64, role ManagerRole, actualHours *float64) (*shift.Shift, error) {
	ctx, span := traces.StartSpan(ctx, "verification.ManagerApproveShift", traces.ShiftID(shiftID))
	defer span.End()

	if !isManagerRole(role) {
		return nil, ErrNotAuthorized
	}
	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if sh.Status != shift.StatusCompleted {
		return nil, ErrNotCompleted
	}
	if open, err := s.disputes.HasOpenDispute(ctx, shiftID); err != nil {
		return nil, err
	} else if open {
		return nil, ErrDisputeOpen
	}

	if _, err := s.reservations.SettleShift(ctx, shiftID, actualHours); err != nil {
		return nil, err
	}
	return s.shifts.GetShift(ctx, shiftID)
}

// ManagerRejectShift implements manager_reject_shift: opens a dispute on
// the shift exactly as create_dispute does, raised by the manager.
func (s *Service) ManagerRejectShift(ctx context.Context, shiftID, managerID int64, role ManagerRole, reason string) (*dispute.Dispute, error) {
	ctx, span := traces.StartSpan(ctx, "verification.ManagerRejectShift", traces.ShiftID(shiftID))
	defer span.End()

	if !isManagerRole(role) {
		return nil, ErrNotAuthorized
	}
	return s.disputes.CreateDispute(ctx, shiftID, managerID, reason, nil)
}

// CheckAutoApproveShifts implements check_auto_approve_shifts, invoked
// every 15 minutes by the scheduler: every completed, clocked-out shift past
// AutoApproveAfter with no open dispute auto-settles with no approver.
func (s *Service) CheckAutoApproveShifts(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "verification.CheckAutoApproveShifts")
	defer span.End()

	cutoff := s.clock.Now().Add(-AutoApproveAfter)
	candidates, err := s.shifts.ListShiftsPendingAutoApprove(ctx, cutoff, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	n := 0
	for _, sh := range candidates {
		open, err := s.disputes.HasOpenDispute(ctx, sh.ID)
		if err != nil {
			s.logger.Error("auto-approve: dispute lookup failed", "shift_id", sh.ID, "error", err)
			continue
		}
		if open {
			continue
		}
		if _, err := s.reservations.SettleShift(ctx, sh.ID, nil); err != nil {
			s.logger.Error("auto-approve: settle failed", "shift_id", sh.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}
