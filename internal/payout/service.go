package payout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pentedigital/extrashifty/internal/apperr"
	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/traces"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// Processor is the narrow payout capability this service depends on,
// defined locally rather than importing internal/processor directly — the
// same decoupling wallet.Processor gives the topup path.
type Processor interface {
	Payout(ctx context.Context, amount money.Cents, externalAccountID string, method Method, idemKey string) (processorPayoutID string, err error)
	CancelPayout(ctx context.Context, processorPayoutID string) error
}

// NegativeBalanceOffsetter lets the penalty package's outstanding debt be
// repaid out of a payout request before the remainder reaches the user.
// Unlike wallet.NegativeBalanceOffsetter's topup-time hook, OffsetPayout
// must never debit the wallet itself: the payout flow debits the wallet
// exactly once, for the gross amount requested, and the offset only
// reduces the separate negative-balance ledger out of that same gross
// amount.
type NegativeBalanceOffsetter interface {
	OffsetPayout(ctx context.Context, userID int64, amount money.Cents) (offset money.Cents, err error)
}

// Service implements request_instant_payout and process_weekly_payouts
// (spec §4.H). It composes wallet.Service for balance debits and the
// Processor port for the actual transfer; it never transitions a Payout
// to in_transit/paid itself — that happens via the processor webhook.
type Service struct {
	store     Store
	wallets   *wallet.Service
	processor Processor
	offsetter NegativeBalanceOffsetter
	clock     clock.Clock
	logger    *slog.Logger
}

func NewService(store Store, wallets *wallet.Service, processor Processor, clk clock.Clock, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, wallets: wallets, processor: processor, clock: clk, logger: logger}
}

// WithNegativeBalanceOffsetter attaches the penalty package's debt hook.
func (s *Service) WithNegativeBalanceOffsetter(o NegativeBalanceOffsetter) *Service {
	s.offsetter = o
	return s
}

// RequestInstantPayout implements request_instant_payout. Any outstanding
// negative balance is offset out of the gross amount requested first; the
// $10 minimum and the 1.5% instant-rail fee are both evaluated against
// what's left over (the effective amount), not the gross. The wallet is
// debited exactly once, for the gross amount — the offset only reduces the
// separate negative-balance ledger, it never touches the wallet itself.
func (s *Service) RequestInstantPayout(ctx context.Context, userID int64, amount money.Cents, externalAccountID, idemKey string) (*Payout, error) {
	ctx, span := traces.StartSpan(ctx, "payout.RequestInstantPayout",
		attribute.Int64("user.id", userID), traces.Amount(amount.String()), traces.IdempotencyKey(idemKey))
	defer span.End()
	done := observeOp("request_instant_payout")
	defer done()

	if existing, err := s.store.GetByIdempotencyKey(ctx, idemKey); err == nil {
		return existing, nil
	} else if err != ErrNotFound {
		return nil, err
	}

	w, err := s.wallets.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !w.IsUsable() {
		return nil, &apperr.WalletSuspendedError{WalletID: w.ID, Status: string(w.Status)}
	}
	if w.Available().LessThan(amount) {
		return nil, &apperr.InsufficientFundsError{
			Required: amount.String(), Available: w.Available().String(),
			Shortfall: amount.Sub(w.Available()).String(),
		}
	}

	offset := money.Zero
	if s.offsetter != nil {
		if o, oerr := s.offsetter.OffsetPayout(ctx, userID, amount); oerr != nil {
			s.logger.Error("payout: negative balance offset failed", "user_id", userID, "error", oerr)
		} else {
			offset = o
		}
	}
	effective := amount.Sub(offset)

	minimum := money.MustParse(InstantMinimum)
	if effective.LessThan(minimum) {
		return nil, ErrBelowMinimum
	}

	fee := effective.MulFloatRoundHalfUp(InstantFeeRate)
	net := effective.Sub(fee)

	if _, err := s.wallets.Debit(ctx, w.ID, amount, wallet.TxPayout, nil, idemKey); err != nil {
		span.RecordError(err)
		return nil, err
	}

	now := s.clock.Now()
	po, err := s.store.Create(ctx, &Payout{
		UserID:         userID,
		WalletID:       w.ID,
		Amount:         effective,
		Fee:            fee,
		NetAmount:      net,
		OffsetApplied:  offset,
		Method:         MethodInstant,
		Status:         StatusPending,
		IdempotencyKey: idemKey,
		RequestedAt:    now,
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	processorID, perr := s.processor.Payout(ctx, net, externalAccountID, MethodInstant, idemKey)
	if perr != nil {
		s.logger.Error("instant payout processor call failed", "payout_id", po.ID, "error", perr)
		return s.MarkFailed(ctx, po.ID, perr.Error())
	}
	return s.store.UpdateStatus(ctx, po.ID, StatusPending, processorID, "", nil)
}

// ProcessWeeklyPayouts implements process_weekly_payouts, invoked by the
// scheduler with a Friday guard: every eligible staff/agency wallet with
// available balance at or above WeeklyMinimum has any outstanding negative
// balance offset first, then is paid out in full via the standard
// (multi-day ACH) rail. If the effective remainder after the offset falls
// below WeeklyMinimum, the payout itself is skipped — but the offset
// already applied still stands, so the wallet is only ever debited for
// what actually left it.
func (s *Service) ProcessWeeklyPayouts(ctx context.Context, externalAccountOf func(userID int64) string, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "payout.ProcessWeeklyPayouts")
	defer span.End()

	now := s.clock.Now()
	if now.Weekday() != WeeklyPayoutWeekday {
		return 0, ErrNotSchedulingDay
	}

	minimum := money.MustParse(WeeklyMinimum)
	wallets, err := s.wallets.ListPayable(ctx, minimum, []string{"staff", "agency"}, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	n := 0
	for _, w := range wallets {
		amount := w.Available()
		idemKey := fmt.Sprintf("payout:weekly:%d:%s", w.UserID, now.Format("2006-01-02"))
		if _, err := s.store.GetByIdempotencyKey(ctx, idemKey); err == nil {
			continue
		} else if err != ErrNotFound {
			s.logger.Error("weekly payout: idempotency lookup failed", "wallet_id", w.ID, "error", err)
			continue
		}

		offset := money.Zero
		if s.offsetter != nil {
			if o, oerr := s.offsetter.OffsetPayout(ctx, w.UserID, amount); oerr != nil {
				s.logger.Error("weekly payout: negative balance offset failed", "wallet_id", w.ID, "error", oerr)
			} else {
				offset = o
			}
		}
		effective := amount.Sub(offset)

		if effective.LessThan(minimum) {
			if offset.IsPositive() {
				if _, err := s.wallets.Debit(ctx, w.ID, offset, wallet.TxPenalty, nil, idemKey+":offset"); err != nil {
					s.logger.Error("weekly payout: offset-only debit failed", "wallet_id", w.ID, "error", err)
				}
			}
			continue
		}

		if _, err := s.wallets.Debit(ctx, w.ID, amount, wallet.TxPayout, nil, idemKey); err != nil {
			s.logger.Error("weekly payout: debit failed", "wallet_id", w.ID, "error", err)
			continue
		}

		po, err := s.store.Create(ctx, &Payout{
			UserID: w.UserID, WalletID: w.ID, Amount: effective, Fee: money.Zero, NetAmount: effective,
			OffsetApplied: offset, Method: MethodStandard, Status: StatusPending,
			IdempotencyKey: idemKey, RequestedAt: now,
		})
		if err != nil {
			s.logger.Error("weekly payout: create failed", "wallet_id", w.ID, "error", err)
			continue
		}

		externalID := ""
		if externalAccountOf != nil {
			externalID = externalAccountOf(w.UserID)
		}
		processorID, perr := s.processor.Payout(ctx, effective, externalID, MethodStandard, idemKey)
		if perr != nil {
			s.logger.Error("weekly payout: processor call failed", "payout_id", po.ID, "error", perr)
			if _, uerr := s.MarkFailed(ctx, po.ID, perr.Error()); uerr != nil {
				s.logger.Error("weekly payout: failure status update failed", "payout_id", po.ID, "error", uerr)
			}
			continue
		}
		if _, err := s.store.UpdateStatus(ctx, po.ID, StatusPending, processorID, "", nil); err != nil {
			s.logger.Error("weekly payout: status update failed", "payout_id", po.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// MarkInTransit, MarkPaid and MarkFailed apply the processor webhook's
// effect to a Payout row. The core flows above call only MarkFailed, when
// the processor call itself returns an error; otherwise a payout leaves
// pending only through a webhook delivery.
func (s *Service) MarkInTransit(ctx context.Context, payoutID int64, processorPayoutID string) (*Payout, error) {
	return s.store.UpdateStatus(ctx, payoutID, StatusInTransit, processorPayoutID, "", nil)
}

func (s *Service) MarkPaid(ctx context.Context, payoutID int64, at time.Time) (*Payout, error) {
	return s.store.UpdateStatus(ctx, payoutID, StatusPaid, "", "", &at)
}

func (s *Service) MarkFailed(ctx context.Context, payoutID int64, reason string) (*Payout, error) {
	po, err := s.store.UpdateStatus(ctx, payoutID, StatusFailed, "", reason, nil)
	if err != nil {
		return nil, err
	}
	// A failed instant/standard payout returns what was actually debited
	// from the wallet — the effective amount plus whatever offset was
	// carved out of the same gross debit — rather than leaving it stranded.
	refund := po.Amount.Add(po.OffsetApplied)
	if _, err := s.wallets.Credit(ctx, po.WalletID, refund, wallet.TxRefund, nil, fmt.Sprintf("payout:refund:%d", po.ID)); err != nil {
		s.logger.Error("payout failure refund failed", "payout_id", po.ID, "error", err)
	}
	return po, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Payout, error) {
	return s.store.Get(ctx, id)
}

// GetByProcessorID looks up a payout by the processor's own payout id, for
// matching an inbound webhook event back to its Payout row.
func (s *Service) GetByProcessorID(ctx context.Context, processorPayoutID string) (*Payout, error) {
	return s.store.GetByProcessorID(ctx, processorPayoutID)
}

func (s *Service) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*Payout, error) {
	return s.store.ListByUser(ctx, userID, limit, offset)
}
