package penalty

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/traces"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// Users is the minimal account port the suspension state machine needs:
// flipping a user inactive on suspension and back active when one lifts.
// Defined here, not imported, the same way wallet defines its own
// Processor/Notifier ports rather than depending on a concrete account
// package.
type Users interface {
	SetActive(ctx context.Context, userID int64, active bool) error
}

// Notifier is the notification-sink port used for strike/suspension/appeal
// notices.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, data map[string]string) error
}

// Service implements the no-show detection sweep, strike/suspension state
// machine, negative-balance carry and write-off, and the appeals/emergency
// waiver workflow (spec §4.G). It composes shift.Store and wallet.Service
// the same way dispute.Service does.
type Service struct {
	store   Store
	shifts  shift.Store
	wallets *wallet.Service
	users   Users
	notify  Notifier
	clock   clock.Clock
	logger  *slog.Logger
}

func NewService(store Store, shifts shift.Store, wallets *wallet.Service, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, shifts: shifts, wallets: wallets, clock: clk, logger: logger}
}

// GetPenalty returns a penalty by id.
func (s *Service) GetPenalty(ctx context.Context, id int64) (*Penalty, error) {
	return s.store.GetPenalty(ctx, id)
}

// ListActiveStrikes returns a user's active, non-expired strikes.
func (s *Service) ListActiveStrikes(ctx context.Context, userID int64) ([]*Strike, error) {
	return s.store.ListActiveStrikes(ctx, userID, s.clock.Now())
}

// GetAppeal returns an appeal by id.
func (s *Service) GetAppeal(ctx context.Context, id int64) (*Appeal, error) {
	return s.store.GetAppeal(ctx, id)
}

// GetActiveSuspension returns a user's current suspension, if any.
func (s *Service) GetActiveSuspension(ctx context.Context, userID int64) (*UserSuspension, error) {
	return s.store.GetActiveSuspension(ctx, userID)
}

// WithUsers attaches the account port used to flip active/inactive on
// suspension transitions.
func (s *Service) WithUsers(u Users) *Service {
	s.users = u
	return s
}

// WithNotifier attaches a notification sink.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notify = n
	return s
}

var _ wallet.NegativeBalanceOffsetter = (*Service)(nil)
var _ payout.NegativeBalanceOffsetter = (*Service)(nil)

// ProcessNoShowSweep implements the scheduler's hourly no-show job: every
// filled shift past its grace period with no clock-in and no existing
// penalty row is processed in turn. Per-shift failures are logged and
// skipped rather than aborting the sweep.
func (s *Service) ProcessNoShowSweep(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "penalty.ProcessNoShowSweep")
	defer span.End()

	candidates, err := s.shifts.ListNoShowCandidates(ctx, s.clock.Now(), NoShowGrace, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	n := 0
	for _, sh := range candidates {
		if _, err := s.store.GetPenaltyByShift(ctx, sh.ID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			s.logger.Error("no-show sweep: penalty lookup failed", "shift_id", sh.ID, "error", err)
			continue
		}
		if _, err := s.ProcessNoShow(ctx, sh); err != nil {
			s.logger.Error("no-show sweep: process failed", "shift_id", sh.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// ProcessNoShow implements the no-show penalty flow for a single shift.
// The payer's hold is always released in full (the shift never happened)
// and the shift is cancelled. For an agency-managed shift the penalty
// lands on the supplying agency's own wallet and reliability record — the
// worker carries no strike and no penalty of their own. Otherwise the
// worker's first-ever no-show is a warning-only Strike with zero penalty;
// later no-shows charge PenaltyRate of the shift's value (collected from
// available balance first, any shortfall carried as a negative balance)
// and add a Strike, unless a non-warning strike was already recorded for
// this user earlier today (the same-day cap still records the penalty).
func (s *Service) ProcessNoShow(ctx context.Context, sh *shift.Shift) (*Penalty, error) {
	ctx, span := traces.StartSpan(ctx, "penalty.ProcessNoShow", traces.ShiftID(sh.ID))
	defer span.End()
	done := observeOp("process_no_show")
	defer done()

	app, err := s.shifts.SoleAcceptedApplicant(ctx, sh.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	workerID := app.ApplicantID
	payerID := sh.PayerWalletOwnerID()

	payer, err := s.wallets.GetOrCreate(ctx, payerID)
	if err != nil {
		return nil, err
	}
	if hold, err := s.wallets.GetActiveHold(ctx, payer.ID, sh.ID, wallet.HoldKindShift); err == nil {
		idemKey := fmt.Sprintf("penalty:release:shift:%d", sh.ID)
		if _, _, err := s.wallets.ReleaseHold(ctx, hold.ID, wallet.TxRelease, idemKey); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, wallet.ErrHoldNotFound) {
		return nil, err
	}

	if err := s.shifts.UpdateShiftStatus(ctx, sh.ID, shift.StatusCancelled); err != nil {
		s.logger.Error("no-show: shift status update failed", "shift_id", sh.ID, "error", err)
	}

	now := s.clock.Now()
	grossValue := sh.HourlyRate.MulFloatRoundHalfUp(sh.DurationHours())

	if sh.IsAgencyManaged && sh.PostedByAgencyID != nil {
		agencyID := *sh.PostedByAgencyID
		pen, err := s.store.CreatePenalty(ctx, &Penalty{
			UserID: agencyID, ShiftID: sh.ID, Amount: grossValue.MulFloatRoundHalfUp(PenaltyRate),
			Reason: "no_show_agency_supplied", Status: PenaltyPending, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			return nil, err
		}
		pen, err = s.collect(ctx, pen)
		if err != nil {
			return nil, err
		}
		if err := s.recordAgencyStrike(ctx, agencyID, sh.ID, now); err != nil {
			s.logger.Error("no-show: agency strike recording failed", "agency_id", agencyID, "error", err)
		}
		return pen, nil
	}

	priorStrikes, err := s.store.ListStrikesByUser(ctx, workerID)
	if err != nil {
		return nil, err
	}
	if len(priorStrikes) == 0 {
		strike, err := s.store.CreateStrike(ctx, &Strike{
			UserID: workerID, ShiftID: &sh.ID, Reason: "no_show_first_offense",
			CreatedAt: now, ExpiresAt: now.Add(StrikeWindow), IsActive: true, IsWarningOnly: true,
		})
		if err != nil {
			return nil, err
		}
		strikesIssuedTotal.Inc()
		s.notifyUser(ctx, workerID, "strike_warning", map[string]string{"shift_id": fmt.Sprintf("%d", sh.ID), "strike_id": fmt.Sprintf("%d", strike.ID)})
		return nil, nil
	}

	sameDayCap := false
	for _, st := range priorStrikes {
		if !st.IsWarningOnly && sameUTCDate(st.CreatedAt, now) {
			sameDayCap = true
			break
		}
	}
	if !sameDayCap {
		strike, err := s.store.CreateStrike(ctx, &Strike{
			UserID: workerID, ShiftID: &sh.ID, Reason: "no_show",
			CreatedAt: now, ExpiresAt: now.Add(StrikeWindow), IsActive: true,
		})
		if err != nil {
			return nil, err
		}
		strikesIssuedTotal.Inc()
		s.notifyUser(ctx, workerID, "strike_issued", map[string]string{"shift_id": fmt.Sprintf("%d", sh.ID), "strike_id": fmt.Sprintf("%d", strike.ID)})
	}

	pen, err := s.store.CreatePenalty(ctx, &Penalty{
		UserID: workerID, ShiftID: sh.ID, Amount: grossValue.MulFloatRoundHalfUp(PenaltyRate),
		Reason: "no_show", Status: PenaltyPending, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		return nil, err
	}
	pen, err = s.collect(ctx, pen)
	if err != nil {
		return nil, err
	}

	if err := s.evaluateSuspension(ctx, workerID); err != nil {
		s.logger.Error("no-show: suspension evaluation failed", "user_id", workerID, "error", err)
	}

	return pen, nil
}

// sameUTCDate reports whether a and b fall on the same calendar date in UTC.
func sameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// collect charges the worker's wallet up to their available balance and
// carries any shortfall as a negative balance, transitioning the Penalty
// to collected or leaving it pending with a partial CollectedAmount.
func (s *Service) collect(ctx context.Context, pen *Penalty) (*Penalty, error) {
	idemKey := fmt.Sprintf("penalty:collect:%d", pen.ID)
	collectNow, shortfall, err := s.collectFromWallet(ctx, pen.UserID, pen.Amount, &pen.ShiftID, idemKey)
	if err != nil {
		return nil, err
	}

	status := PenaltyCollected
	if shortfall.IsPositive() {
		status = PenaltyPending
	}
	return s.store.UpdatePenaltyStatus(ctx, pen.ID, status, collectNow, nil)
}

// collectFromWallet charges amount against the user's available balance
// first, carrying whatever it can't cover as negative balance rather than
// letting wallet.Debit push Available below zero. Every charge that isn't
// a straightforward debit against a known-sufficient balance — penalty
// collection, the frivolous-appeal fee — goes through this, never a bare
// wallets.Debit for the full amount.
func (s *Service) collectFromWallet(ctx context.Context, userID int64, amount money.Cents, shiftID *int64, idemKey string) (collected, shortfall money.Cents, err error) {
	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return money.Zero, money.Zero, err
	}

	collected = money.Min(amount, money.Max(w.Available(), money.Zero))
	shortfall = amount.Sub(collected)

	if collected.IsPositive() {
		if _, err := s.wallets.Debit(ctx, w.ID, collected, wallet.TxPenalty, shiftID, idemKey); err != nil {
			return money.Zero, money.Zero, err
		}
	}
	if shortfall.IsPositive() {
		if _, err := s.store.AddToNegativeBalance(ctx, userID, shortfall, s.clock.Now()); err != nil {
			return money.Zero, money.Zero, err
		}
	}
	return collected, shortfall, nil
}

// evaluateSuspension suspends a user for SuspensionLength when their
// countable active strikes reach SuspensionStrikeThreshold within
// StrikeWindow.
func (s *Service) evaluateSuspension(ctx context.Context, userID int64) error {
	now := s.clock.Now()
	active, err := s.store.ListActiveStrikes(ctx, userID, now)
	if err != nil {
		return err
	}
	countable := 0
	for _, st := range active {
		if st.IsCountable(now) {
			countable++
		}
	}
	if countable < SuspensionStrikeThreshold {
		return nil
	}
	if _, err := s.store.GetActiveSuspension(ctx, userID); err == nil {
		return nil
	} else if !errors.Is(err, ErrSuspensionNotFound) {
		return err
	}

	until := now.Add(SuspensionLength)
	if _, err := s.store.CreateSuspension(ctx, &UserSuspension{
		UserID:         userID,
		Reason:         fmt.Sprintf("%d active strikes within %s", countable, StrikeWindow),
		SuspendedAt:    now,
		SuspendedUntil: &until,
		IsActive:       true,
	}); err != nil {
		return err
	}
	suspensionsIssuedTotal.Inc()

	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err == nil {
		if serr := s.wallets.Suspend(ctx, w.ID); serr != nil {
			s.logger.Error("suspension: wallet suspend failed", "user_id", userID, "error", serr)
		}
	}
	if s.users != nil {
		if uerr := s.users.SetActive(ctx, userID, false); uerr != nil {
			s.logger.Error("suspension: user deactivation failed", "user_id", userID, "error", uerr)
		}
	}
	s.notifyUser(ctx, userID, "suspended", map[string]string{"until": until.Format(time.RFC3339)})
	return nil
}

// recordAgencyStrike logs a no-show against the supplying agency and
// notifies at the 2-strike (warning) and 5-strike (suspension review)
// thresholds spec.md's Open Questions recommend for this first-class
// reliability record.
func (s *Service) recordAgencyStrike(ctx context.Context, agencyUserID, shiftID int64, now time.Time) error {
	if _, err := s.store.CreateAgencyStrike(ctx, &AgencyStrike{AgencyUserID: agencyUserID, ShiftID: shiftID, CreatedAt: now}); err != nil {
		return err
	}
	count, err := s.store.CountAgencyStrikes(ctx, agencyUserID, now.Add(-StrikeWindow))
	if err != nil {
		return err
	}
	switch {
	case count >= AgencySuspensionThreshold:
		s.notifyUser(ctx, agencyUserID, "agency_suspension_review", map[string]string{"strike_count": fmt.Sprintf("%d", count)})
	case count >= AgencyWarningThreshold:
		s.notifyUser(ctx, agencyUserID, "agency_warning", map[string]string{"strike_count": fmt.Sprintf("%d", count)})
	}
	return nil
}

// OffsetOnTopup implements wallet.NegativeBalanceOffsetter: a successful
// topup first repays any outstanding negative balance before the user sees
// the credit reflected in their spendable balance. offset is debited back
// out of the just-credited amount in the same wallet.
func (s *Service) OffsetOnTopup(ctx context.Context, userID int64, credited money.Cents) (money.Cents, error) {
	nb, err := s.store.GetOrCreateNegativeBalance(ctx, userID)
	if err != nil {
		return money.Zero, err
	}
	if nb.Amount.IsZero() {
		return money.Zero, nil
	}

	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return money.Zero, err
	}

	offset := money.Min(nb.Amount, credited)
	if offset.IsZero() || offset.IsNegative() {
		return money.Zero, nil
	}

	idemKey := fmt.Sprintf("penalty:offset:%d:%d", userID, s.clock.Now().UnixNano())
	if _, err := s.wallets.Debit(ctx, w.ID, offset, wallet.TxPenalty, nil, idemKey); err != nil {
		return money.Zero, err
	}
	if _, err := s.store.ReduceNegativeBalance(ctx, userID, offset, s.clock.Now()); err != nil {
		return money.Zero, err
	}
	return offset, nil
}

// OffsetPayout implements payout.NegativeBalanceOffsetter. Unlike
// OffsetOnTopup, it never debits the wallet: the payout flow already
// debits the wallet once for the gross amount requested, so offsetting a
// payout only reduces the separate negative-balance ledger by whatever
// the payout covers, rather than clawing back a second time from the
// wallet.
func (s *Service) OffsetPayout(ctx context.Context, userID int64, amount money.Cents) (money.Cents, error) {
	nb, err := s.store.GetOrCreateNegativeBalance(ctx, userID)
	if err != nil {
		return money.Zero, err
	}
	if nb.Amount.IsZero() {
		return money.Zero, nil
	}

	offset := money.Min(nb.Amount, amount)
	if offset.IsZero() || offset.IsNegative() {
		return money.Zero, nil
	}

	if _, err := s.store.ReduceNegativeBalance(ctx, userID, offset, s.clock.Now()); err != nil {
		return money.Zero, err
	}
	return offset, nil
}

// WriteOffStaleNegativeBalances implements the 180-day inactivity
// write-off job: a negative balance untouched for NegativeBalanceWriteoffAfter
// is forgiven rather than chased indefinitely.
func (s *Service) WriteOffStaleNegativeBalances(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "penalty.WriteOffStaleNegativeBalances")
	defer span.End()

	before := s.clock.Now().Add(-NegativeBalanceWriteoffAfter)
	stale, err := s.store.ListStaleNegativeBalances(ctx, before, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	n := 0
	for _, nb := range stale {
		if _, err := s.store.ReduceNegativeBalance(ctx, nb.UserID, nb.Amount, s.clock.Now()); err != nil {
			s.logger.Error("write-off failed", "user_id", nb.UserID, "error", err)
			continue
		}
		s.logger.Info("negative balance written off", "user_id", nb.UserID, "amount", nb.Amount.String())
		n++
	}
	return n, nil
}

// SubmitAppeal implements submit_appeal. The appeal window is measured
// from the sanction's own creation time: AppealWindowDefault for a
// penalty or strike, AppealWindowSuspension for a suspension. An
// emergencyType claim is rejected outright if the user already holds an
// EmergencyWaiver for the current calendar year.
func (s *Service) SubmitAppeal(ctx context.Context, userID int64, appealType AppealType, relatedID int64, reason string, evidenceURLs []string, emergencyType string) (*Appeal, error) {
	ctx, span := traces.StartSpan(ctx, "penalty.SubmitAppeal", attribute.Int64("user.id", userID))
	defer span.End()

	sanctionCreatedAt, err := s.sanctionCreatedAt(ctx, appealType, relatedID, userID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	deadline := sanctionCreatedAt.Add(appealWindow(appealType))
	if now.After(deadline) {
		return nil, ErrAppealWindowClosed
	}

	if _, err := s.store.GetPendingAppealFor(ctx, appealType, relatedID); err == nil {
		return nil, ErrDuplicateAppeal
	} else if !errors.Is(err, ErrAppealNotFound) {
		return nil, err
	}

	if emergencyType != "" {
		if _, err := s.store.GetEmergencyWaiverForYear(ctx, userID, now.Year()); err == nil {
			return nil, ErrEmergencyWaiverClaimed
		} else if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}

	return s.store.CreateAppeal(ctx, &Appeal{
		UserID:         userID,
		AppealType:     appealType,
		RelatedID:      relatedID,
		Reason:         reason,
		EvidenceURLs:   evidenceURLs,
		EmergencyType:  emergencyType,
		Status:         AppealPending,
		AppealDeadline: deadline,
		CreatedAt:      now,
	})
}

// sanctionCreatedAt resolves the creation timestamp of the sanctioned
// Penalty/Strike/UserSuspension, validating it belongs to userID.
func (s *Service) sanctionCreatedAt(ctx context.Context, appealType AppealType, relatedID, userID int64) (time.Time, error) {
	switch appealType {
	case AppealPenalty:
		p, err := s.store.GetPenalty(ctx, relatedID)
		if err != nil {
			return time.Time{}, err
		}
		if p.UserID != userID {
			return time.Time{}, ErrInvalidAppeal
		}
		return p.CreatedAt, nil
	case AppealStrike:
		st, err := s.store.GetStrike(ctx, relatedID)
		if err != nil {
			return time.Time{}, err
		}
		if st.UserID != userID {
			return time.Time{}, ErrInvalidAppeal
		}
		return st.CreatedAt, nil
	case AppealSuspension:
		susp, err := s.store.GetActiveSuspension(ctx, userID)
		if err != nil {
			return time.Time{}, err
		}
		if susp.ID != relatedID {
			return time.Time{}, ErrInvalidAppeal
		}
		return susp.SuspendedAt, nil
	default:
		return time.Time{}, ErrInvalidAppeal
	}
}

// ReviewAppeal implements review_appeal: approving reverses the
// underlying sanction's effect (refunding a collected penalty, lifting a
// strike or suspension), and — for an approved emergency claim — records
// the user's one-per-calendar-year EmergencyWaiver.
func (s *Service) ReviewAppeal(ctx context.Context, appealID int64, approve bool, reviewerID int64, frivolous bool) (*Appeal, error) {
	ctx, span := traces.StartSpan(ctx, "penalty.ReviewAppeal", attribute.Int64("appeal.id", appealID))
	defer span.End()

	a, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if a.Status != AppealPending {
		return nil, ErrAppealAlreadyReviewed
	}

	now := s.clock.Now()
	status := AppealDenied
	if approve {
		status = AppealApproved
		if err := s.applyApprovedAppeal(ctx, a); err != nil {
			return nil, err
		}
		if a.EmergencyType != "" {
			if _, err := s.store.CreateEmergencyWaiver(ctx, &EmergencyWaiver{
				UserID: a.UserID, Year: now.Year(), AppealID: a.ID, EmergencyType: a.EmergencyType,
			}); err != nil {
				s.logger.Error("emergency waiver recording failed", "appeal_id", a.ID, "error", err)
			}
		}
	} else if frivolous {
		fee := money.MustParse(FrivolousAppealFee)
		idemKey := fmt.Sprintf("penalty:frivolous_fee:%d", a.ID)
		if _, _, ferr := s.collectFromWallet(ctx, a.UserID, fee, nil, idemKey); ferr != nil {
			s.logger.Error("frivolous appeal fee charge failed", "appeal_id", a.ID, "error", ferr)
		}
	}

	updated, err := s.store.UpdateAppealStatus(ctx, appealID, status, now)
	if err != nil {
		return nil, err
	}
	if frivolous {
		updated.FrivolousFeeCharged = true
	}
	s.notifyUser(ctx, a.UserID, "appeal_reviewed", map[string]string{"appeal_id": fmt.Sprintf("%d", a.ID), "status": string(status)})
	return updated, nil
}

func (s *Service) applyApprovedAppeal(ctx context.Context, a *Appeal) error {
	switch a.AppealType {
	case AppealPenalty:
		p, err := s.store.GetPenalty(ctx, a.RelatedID)
		if err != nil {
			return err
		}
		if p.CollectedAmount.IsPositive() {
			w, err := s.wallets.GetOrCreate(ctx, p.UserID)
			if err != nil {
				return err
			}
			idemKey := fmt.Sprintf("penalty:refund:%d", p.ID)
			if _, err := s.wallets.Credit(ctx, w.ID, p.CollectedAmount, wallet.TxRefund, &p.ShiftID, idemKey); err != nil {
				return err
			}
		}
		shortfall := p.Amount.Sub(p.CollectedAmount)
		if shortfall.IsPositive() {
			if _, err := s.store.ReduceNegativeBalance(ctx, p.UserID, shortfall, s.clock.Now()); err != nil {
				return err
			}
		}
		_, err = s.store.UpdatePenaltyStatus(ctx, p.ID, PenaltyWaived, p.CollectedAmount, &a.UserID)
		return err
	case AppealStrike:
		return s.store.DeactivateStrike(ctx, a.RelatedID)
	case AppealSuspension:
		susp, err := s.store.LiftSuspension(ctx, a.RelatedID, &a.UserID)
		if err != nil {
			return err
		}
		w, err := s.wallets.GetOrCreate(ctx, susp.UserID)
		if err == nil {
			if rerr := s.wallets.Reactivate(ctx, w.ID, money.Zero); rerr != nil {
				s.logger.Error("suspension lift: wallet reactivate failed", "user_id", susp.UserID, "error", rerr)
			}
		}
		if s.users != nil {
			if uerr := s.users.SetActive(ctx, susp.UserID, true); uerr != nil {
				s.logger.Error("suspension lift: user reactivation failed", "user_id", susp.UserID, "error", uerr)
			}
		}
		return nil
	default:
		return ErrInvalidAppeal
	}
}

// WithdrawAppeal implements withdraw_appeal: a user may withdraw their own
// pending appeal before it's reviewed.
func (s *Service) WithdrawAppeal(ctx context.Context, appealID, userID int64) (*Appeal, error) {
	a, err := s.store.GetAppeal(ctx, appealID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, ErrInvalidAppeal
	}
	if a.Status != AppealPending {
		return nil, ErrAppealAlreadyReviewed
	}
	return s.store.UpdateAppealStatus(ctx, appealID, AppealWithdrawn, s.clock.Now())
}

func (s *Service) notifyUser(ctx context.Context, userID int64, kind string, data map[string]string) {
	if s.notify == nil {
		return
	}
	if err := s.notify.Notify(ctx, userID, kind, data); err != nil {
		s.logger.Error("notification failed", "user_id", userID, "kind", kind, "error", err)
	}
}
