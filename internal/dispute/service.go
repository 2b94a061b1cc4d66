package dispute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/traces"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// ResolutionDeadlineBusinessDays is the arbitration window a new dispute is
// given before auto_resolve_overdue_disputes resolves it for the worker.
const ResolutionDeadlineBusinessDays = 3

// DisputeWindow is how long after shift completion a dispute may still be
// raised.
const DisputeWindow = 7 * 24 * time.Hour

// Service implements create_dispute, resolve_dispute, and
// auto_resolve_overdue_disputes. It composes shift.Store and wallet.Service
// the same way the reservation package does.
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

// Get returns a dispute by id, for read endpoints that don't need the
// CreateDispute/ResolveDispute state-machine checks.
func (s *Service) Get(ctx context.Context, id int64) (*Dispute, error) {
	return s.store.Get(ctx, id)
}

// CreateDispute implements create_dispute. raisedByUserID must be either
// the shift's payer wallet owner (company/agency) or the worker; the
// counterparty is derived automatically.
func (s *Service) CreateDispute(ctx context.Context, shiftID, raisedByUserID int64, reason string, disputedAmount *money.Cents) (*Dispute, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.CreateDispute", traces.ShiftID(shiftID))
	defer span.End()

	sh, err := s.shifts.GetShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if sh.Status != shift.StatusCompleted {
		return nil, ErrShiftNotCompleted
	}
	if sh.ClockOutAt == nil || s.clock.Now().Sub(*sh.ClockOutAt) > DisputeWindow {
		return nil, ErrWindowExpired
	}
	if _, err := s.store.GetOpenOrUnderReviewForShift(ctx, shiftID); err == nil {
		return nil, ErrAlreadyOpen
	} else if err != ErrNotFound {
		return nil, err
	}

	payerID := sh.PayerWalletOwnerID()
	workerID, err := s.workerUserID(ctx, sh)
	if err != nil {
		return nil, err
	}
	againstID := workerID
	if raisedByUserID == workerID {
		againstID = payerID
	}

	payer, err := s.wallets.GetOrCreate(ctx, payerID)
	if err != nil {
		return nil, err
	}
	hold, err := s.wallets.GetActiveHold(ctx, payer.ID, shiftID, wallet.HoldKindShift)
	if err != nil {
		return nil, ErrNoActiveShiftHold
	}

	amount := hold.Amount
	if disputedAmount != nil {
		amount = *disputedAmount
	}
	if amount.GreaterThan(hold.Amount) {
		return nil, ErrDisputedAmountTooLarge
	}

	idemBase := fmt.Sprintf("dispute:create:shift:%d", shiftID)

	// Release the shift hold and re-reserve it split between the
	// undisputed remainder (still a shift hold) and the escrow hold; net
	// reserved is unchanged, exactly as the escrow move is specified.
	if _, _, err := s.wallets.ReleaseHold(ctx, hold.ID, wallet.TxRelease, idemBase+":release"); err != nil {
		return nil, err
	}

	remainder := hold.Amount.Sub(amount)
	if remainder.IsPositive() {
		if _, _, err := s.wallets.Reserve(ctx, payer.ID, shiftID, remainder, wallet.HoldKindShift, hold.ExpiresAt, idemBase+":remainder"); err != nil {
			return nil, err
		}
	}

	escrowHold, _, err := s.wallets.Reserve(ctx, payer.ID, shiftID, amount, wallet.HoldKindEscrow, nil, idemBase+":escrow")
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	d := &Dispute{
		ShiftID:            shiftID,
		RaisedByUserID:     raisedByUserID,
		AgainstUserID:      againstID,
		AmountDisputed:     amount,
		Reason:             reason,
		Status:             StatusOpen,
		EscrowHoldID:       escrowHold.ID,
		ResolutionDeadline: money.AddBusinessDays(now, ResolutionDeadlineBusinessDays),
		CreatedAt:          now,
	}
	return s.store.Create(ctx, d)
}

// SubmitEvidence appends an evidence entry and, on the first submission,
// transitions the dispute from open to under_review.
func (s *Service) SubmitEvidence(ctx context.Context, disputeID int64, entry string) (*Dispute, error) {
	return s.store.AppendEvidence(ctx, disputeID, entry)
}

// ResolveDispute implements resolve_dispute. For a split resolution,
// splitPct is the worker's share regardless of which side raised it.
func (s *Service) ResolveDispute(ctx context.Context, disputeID int64, resolution Resolution, splitPct *int, adminNotes string) (*Dispute, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.ResolveDispute", traces.DisputeID(disputeID))
	defer span.End()

	d, err := s.store.Get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if !d.IsOpenOrUnderReview() {
		return nil, ErrAlreadyResolved
	}

	sh, err := s.shifts.GetShift(ctx, d.ShiftID)
	if err != nil {
		return nil, err
	}
	workerID, err := s.workerUserID(ctx, sh)
	if err != nil {
		return nil, err
	}

	workerSharePct, err := s.resolveWorkerSharePct(d, resolution, splitPct, workerID)
	if err != nil {
		return nil, err
	}

	status := StatusResolvedAgainst
	raiserIsWorker := d.RaisedByUserID == workerID
	raiserWon := (raiserIsWorker && workerSharePct >= 50) || (!raiserIsWorker && workerSharePct < 50)
	if raiserWon {
		status = StatusResolvedForRaiser
	}

	if err := s.settleEscrow(ctx, sh, d, workerID, workerSharePct); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return s.store.Resolve(ctx, disputeID, status, resolution, splitPct, adminNotes, now)
}

func (s *Service) resolveWorkerSharePct(d *Dispute, resolution Resolution, splitPct *int, workerID int64) (int, error) {
	switch resolution {
	case ResolutionSplit:
		if splitPct == nil || *splitPct < 0 || *splitPct > 100 {
			return 0, ErrInvalidSplitPct
		}
		return *splitPct, nil
	case ResolutionForRaiser:
		if d.RaisedByUserID == workerID {
			return 100, nil
		}
		return 0, nil
	case ResolutionAgainstRaiser:
		if d.RaisedByUserID == workerID {
			return 0, nil
		}
		return 100, nil
	default:
		return 0, ErrInvalidResolution
	}
}

// settleEscrow releases the escrow hold, crediting the worker's share and
// refunding the remainder to the payer — the same ReleaseCompensation
// primitive the reservation package uses for late-cancellation payouts.
func (s *Service) settleEscrow(ctx context.Context, sh *shift.Shift, d *Dispute, workerID int64, workerSharePct int) error {
	payer, err := s.wallets.GetOrCreate(ctx, sh.PayerWalletOwnerID())
	if err != nil {
		return err
	}
	worker, err := s.wallets.GetOrCreate(ctx, workerID)
	if err != nil {
		return err
	}

	workerAmount := d.AmountDisputed.MulFloatRoundHalfUp(float64(workerSharePct) / 100.0)
	refund := d.AmountDisputed.Sub(workerAmount)

	idemBase := fmt.Sprintf("dispute:resolve:%d", d.ID)
	_, err = s.wallets.ReleaseCompensation(ctx, payer.ID, worker.ID, d.EscrowHoldID, workerAmount, refund, sh.ID, idemBase)
	return err
}

// AutoResolveOverdueDisputes implements auto_resolve_overdue_disputes,
// invoked daily by the scheduler: every open/under_review dispute past its
// deadline resolves in the worker's favor with a fixed system note.
func (s *Service) AutoResolveOverdueDisputes(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "dispute.AutoResolveOverdueDisputes")
	defer span.End()

	overdue, err := s.store.ListOverdue(ctx, s.clock.Now(), limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range overdue {
		sh, err := s.shifts.GetShift(ctx, d.ShiftID)
		if err != nil {
			s.logger.Error("auto-resolve: shift lookup failed", "dispute_id", d.ID, "error", err)
			continue
		}
		workerID, err := s.workerUserID(ctx, sh)
		if err != nil {
			s.logger.Error("auto-resolve: worker lookup failed", "dispute_id", d.ID, "error", err)
			continue
		}
		resolution := ResolutionForRaiser
		if d.RaisedByUserID != workerID {
			resolution = ResolutionAgainstRaiser
		}
		if _, err := s.ResolveDispute(ctx, d.ID, resolution, nil, "auto-resolved: arbitration deadline passed without admin action"); err != nil {
			s.logger.Error("auto-resolve failed", "dispute_id", d.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// HasOpenDispute reports whether a shift currently has an open or
// under-review dispute, for the verification package's auto-approve guard.
func (s *Service) HasOpenDispute(ctx context.Context, shiftID int64) (bool, error) {
	_, err := s.store.GetOpenOrUnderReviewForShift(ctx, shiftID)
	if err == nil {
		return true, nil
	}
	if err == ErrNotFound {
		return false, nil
	}
	return false, err
}

func (s *Service) workerUserID(ctx context.Context, sh *shift.Shift) (int64, error) {
	if sh.IsAgencyManaged && sh.PostedByAgencyID != nil {
		return *sh.PostedByAgencyID, nil
	}
	app, err := s.shifts.SoleAcceptedApplicant(ctx, sh.ID)
	if err != nil {
		return 0, err
	}
	return app.ApplicantID, nil
}
