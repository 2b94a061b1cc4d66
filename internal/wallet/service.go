package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pentedigital/extrashifty/internal/apperr"
	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/traces"
)

// Processor is the payment-processor port this service charges against on
// topup. The concrete Stripe-backed implementation lives in
// internal/processor; defining the port here (rather than importing that
// package) keeps wallet free of a dependency on any one processor.
type Processor interface {
	Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (externalID string, err error)
}

// Notifier is the notification-sink port used to emit the topup_failed
// notice on a failed charge.
type Notifier interface {
	Notify(ctx context.Context, userID int64, kind string, data map[string]string) error
}

// NegativeBalanceOffsetter lets the penalty package hook into a successful
// topup to repay any outstanding negative balance before the remainder
// credits available balance, per the "penalty collection priority" flow.
type NegativeBalanceOffsetter interface {
	OffsetOnTopup(ctx context.Context, userID int64, credited money.Cents) (offset money.Cents, err error)
}

// Service is the thin orchestration layer over Store: validation, processor
// calls, tracing spans and metrics, structured logging. Mirrors the
// composition of ledger.Ledger over ledger.Store.
type Service struct {
	store     Store
	processor Processor
	notifier  Notifier
	offsetter NegativeBalanceOffsetter
	clock     clock.Clock
	logger    *slog.Logger

	gracePeriod time.Duration
}

// NewService constructs a Service. notifier and offsetter may be nil.
func NewService(store Store, processor Processor, clk clock.Clock, gracePeriod time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, processor: processor, clock: clk, gracePeriod: gracePeriod, logger: logger}
}

// WithNotifier attaches a notification sink.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// WithNegativeBalanceOffsetter attaches the penalty package's offset hook.
func (s *Service) WithNegativeBalanceOffsetter(o NegativeBalanceOffsetter) *Service {
	s.offsetter = o
	return s
}

// StoreRef exposes the underlying Store for components that need direct
// access to its wider read surface (reservation, dispute, penalty, payout).
func (s *Service) StoreRef() Store {
	return s.store
}

func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*Wallet, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.GetOrCreate", attribute.Int64("user.id", userID))
	defer span.End()
	done := observeOp("get_or_create")
	defer done()

	w, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return w, err
}

func (s *Service) Get(ctx context.Context, walletID int64) (*Wallet, error) {
	return s.store.GetByID(ctx, walletID)
}

// ConfigureAutoTopup validates that all fields are present when enabling
// auto-topup, per the wallet ledger's public contract.
func (s *Service) ConfigureAutoTopup(ctx context.Context, walletID int64, cfg AutoTopup) error {
	ctx, span := traces.StartSpan(ctx, "wallet.ConfigureAutoTopup", traces.WalletID(walletID))
	defer span.End()
	done := observeOp("configure_auto_topup")
	defer done()

	if cfg.Enabled {
		if cfg.Threshold.IsZero() || cfg.Amount.IsZero() || cfg.PaymentMethod == "" {
			return ErrInvalidAutoTopup
		}
	}
	err := s.store.ConfigureAutoTopup(ctx, walletID, cfg)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// Topup charges the processor then credits balance, replay-safe on idemKey.
// On processor failure it writes a failed Transaction, transitions the
// wallet to grace_period for s.gracePeriod, and emits a topup_failed notice.
func (s *Service) Topup(ctx context.Context, userID int64, amount money.Cents, paymentMethodID, idemKey string) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.Topup",
		attribute.Int64("user.id", userID), traces.Amount(amount.String()), traces.IdempotencyKey(idemKey))
	defer span.End()
	done := observeOp("topup")
	defer done()

	if amount.IsZero() || amount.IsNegative() {
		return nil, apperr.Validation("topup amount must be positive")
	}

	if existing, err := s.store.GetTransactionByIdempotencyKey(ctx, idemKey); err == nil {
		return existing, nil
	} else if err != ErrTransactionNotFound {
		span.RecordError(err)
		return nil, err
	}

	w, err := s.store.GetOrCreate(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	externalID, chargeErr := s.processor.Charge(ctx, amount, paymentMethodID, idemKey)
	processorFailed := chargeErr != nil

	graceEndsAt := s.clock.Now().Add(s.gracePeriod)
	tx, err := s.store.Topup(ctx, w.ID, amount, idemKey, externalID, processorFailed, graceEndsAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if processorFailed {
		s.logger.Warn("topup processor charge failed", "user_id", userID, "wallet_id", w.ID, "error", chargeErr)
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, userID, "topup_failed", map[string]string{
				"wallet_id": fmt.Sprintf("%d", w.ID),
				"amount":    amount.String(),
				"reason":    chargeErr.Error(),
			})
		}
		return tx, &apperr.ProcessorFailedError{Reason: chargeErr.Error()}
	}

	if s.offsetter != nil {
		if offset, oerr := s.offsetter.OffsetOnTopup(ctx, userID, amount); oerr != nil {
			s.logger.Error("negative balance offset failed", "user_id", userID, "error", oerr)
		} else if offset.IsPositive() {
			s.logger.Info("topup offset negative balance", "user_id", userID, "offset", offset.String())
		}
	}

	return tx, nil
}

// Reactivate transitions a wallet out of grace_period/suspended only when
// available balance meets requiredMin.
func (s *Service) Reactivate(ctx context.Context, walletID int64, requiredMin money.Cents) error {
	ctx, span := traces.StartSpan(ctx, "wallet.Reactivate", traces.WalletID(walletID))
	defer span.End()

	w, err := s.store.GetByID(ctx, walletID)
	if err != nil {
		return err
	}
	if w.Status == StatusActive {
		return nil
	}
	if w.Available().LessThan(requiredMin) {
		return &apperr.InsufficientFundsError{
			Required:  requiredMin.String(),
			Available: w.Available().String(),
			Shortfall: requiredMin.Sub(w.Available()).String(),
		}
	}
	return s.store.SetStatus(ctx, walletID, StatusActive, nil)
}

// Suspend transitions a wallet to suspended, used by the penalty engine's
// suspension evaluation.
func (s *Service) Suspend(ctx context.Context, walletID int64) error {
	ctx, span := traces.StartSpan(ctx, "wallet.Suspend", traces.WalletID(walletID))
	defer span.End()
	walletSuspensionsTotal.Inc()
	return s.store.SetStatus(ctx, walletID, StatusSuspended, nil)
}

func (s *Service) Reserve(ctx context.Context, walletID, shiftID int64, amount money.Cents, kind HoldKind, expiresAt *time.Time, idemKey string) (*FundsHold, *Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.Reserve",
		traces.WalletID(walletID), traces.ShiftID(shiftID), traces.Amount(amount.String()), traces.IdempotencyKey(idemKey))
	defer span.End()
	done := observeOp("reserve")
	defer done()

	w, err := s.store.GetByID(ctx, walletID)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if !w.IsUsable() {
		return nil, nil, &apperr.WalletSuspendedError{WalletID: walletID, Status: string(w.Status)}
	}
	if w.Available().LessThan(amount) {
		return nil, nil, &apperr.InsufficientFundsError{
			Required: amount.String(), Available: w.Available().String(),
			Shortfall: amount.Sub(w.Available()).String(), MinimumBalance: w.MinimumBalance.String(),
		}
	}

	hold, tx, err := s.store.Reserve(ctx, walletID, shiftID, amount, kind, expiresAt, idemKey)
	if err != nil {
		span.RecordError(err)
	}
	return hold, tx, err
}

func (s *Service) ReleaseHold(ctx context.Context, holdID int64, txType TransactionType, idemKey string) (*FundsHold, *Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.ReleaseHold", traces.HoldID(holdID), traces.IdempotencyKey(idemKey))
	defer span.End()
	done := observeOp("release_hold")
	defer done()
	h, tx, err := s.store.ReleaseHold(ctx, holdID, txType, idemKey)
	if err != nil {
		span.RecordError(err)
	}
	return h, tx, err
}

func (s *Service) Settle(ctx context.Context, payerWalletID, recipientWalletID, payerHoldID int64, gross, commission, recipientAmount money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.Settle",
		traces.WalletID(payerWalletID), traces.ShiftID(relatedShiftID), traces.Amount(gross.String()))
	defer span.End()
	done := observeOp("settle")
	defer done()
	txs, err := s.store.Settle(ctx, payerWalletID, recipientWalletID, payerHoldID, gross, commission, recipientAmount, relatedShiftID, idemKeyBase)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return txs, err
}

func (s *Service) ReleaseCompensation(ctx context.Context, payerWalletID, partyWalletID, holdID int64, compensation, refund money.Cents, relatedShiftID int64, idemKeyBase string) ([]*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.ReleaseCompensation", traces.WalletID(payerWalletID), traces.ShiftID(relatedShiftID))
	defer span.End()
	done := observeOp("release_compensation")
	defer done()
	txs, err := s.store.ReleaseCompensation(ctx, payerWalletID, partyWalletID, holdID, compensation, refund, relatedShiftID, idemKeyBase)
	if err != nil {
		span.RecordError(err)
	}
	return txs, err
}

func (s *Service) Debit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	done := observeOp("debit")
	defer done()
	return s.store.Debit(ctx, walletID, amount, txType, relatedShiftID, idemKey)
}

func (s *Service) Credit(ctx context.Context, walletID int64, amount money.Cents, txType TransactionType, relatedShiftID *int64, idemKey string) (*Transaction, error) {
	done := observeOp("credit")
	defer done()
	return s.store.Credit(ctx, walletID, amount, txType, relatedShiftID, idemKey)
}

func (s *Service) GetHold(ctx context.Context, id int64) (*FundsHold, error) {
	return s.store.GetHold(ctx, id)
}

func (s *Service) GetActiveHold(ctx context.Context, walletID, shiftID int64, kind HoldKind) (*FundsHold, error) {
	return s.store.GetActiveHold(ctx, walletID, shiftID, kind)
}

// ExpireHolds releases every active hold past its expiry, for the scheduler
// job that sweeps abandoned reservations.
func (s *Service) ExpireHolds(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.ExpireHolds")
	defer span.End()

	holds, err := s.store.ListExpiredHolds(ctx, s.clock.Now(), limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	n := 0
	for _, h := range holds {
		idemKey := fmt.Sprintf("expire:%d", h.ID)
		if _, _, err := s.store.ReleaseHold(ctx, h.ID, TxRelease, idemKey); err != nil {
			s.logger.Error("failed to release expired hold", "hold_id", h.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

func (s *Service) ListTransactions(ctx context.Context, walletID int64, limit, offset int) ([]*Transaction, error) {
	return s.store.ListTransactions(ctx, walletID, limit, offset)
}

func (s *Service) Reverse(ctx context.Context, transactionID int64, reason string, adminID int64) (*Transaction, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.Reverse", attribute.Int64("transaction.id", transactionID))
	defer span.End()
	done := observeOp("reverse")
	defer done()
	tx, err := s.store.Reverse(ctx, transactionID, reason, adminID)
	if err != nil {
		span.RecordError(err)
	}
	return tx, err
}

func (s *Service) ListByStatus(ctx context.Context, status Status, limit int) ([]*Wallet, error) {
	return s.store.ListByStatus(ctx, status, limit)
}

// CheckAutoTopup implements auto_topup_check: every active wallet with
// auto-topup enabled whose available balance has dropped below its
// configured threshold is charged for its configured amount. A processor
// failure here goes through the same grace-period path as an explicit
// Topup failure; it does not stop the sweep.
func (s *Service) CheckAutoTopup(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.CheckAutoTopup")
	defer span.End()

	wallets, err := s.store.ListByStatus(ctx, StatusActive, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	n := 0
	for _, w := range wallets {
		if !w.AutoTopup.Enabled || w.AutoTopup.Threshold.IsZero() || w.AutoTopup.Amount.IsZero() {
			continue
		}
		if !w.Available().LessThan(w.AutoTopup.Threshold) {
			continue
		}
		idemKey := fmt.Sprintf("autotopup:%d:%s", w.UserID, s.clock.Now().Format("2006-01-02T15"))
		if _, err := s.Topup(ctx, w.UserID, w.AutoTopup.Amount, w.AutoTopup.PaymentMethod, idemKey); err != nil {
			s.logger.Error("auto-topup failed", "wallet_id", w.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// CheckWalletSuspensions implements check_wallet_suspensions: every wallet
// whose grace period has elapsed without a successful top-up is suspended.
func (s *Service) CheckWalletSuspensions(ctx context.Context, limit int) (int, error) {
	ctx, span := traces.StartSpan(ctx, "wallet.CheckWalletSuspensions")
	defer span.End()

	wallets, err := s.store.ListByStatus(ctx, StatusGracePeriod, limit)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	now := s.clock.Now()
	n := 0
	for _, w := range wallets {
		if w.GracePeriodEndsAt == nil || w.GracePeriodEndsAt.After(now) {
			continue
		}
		if err := s.Suspend(ctx, w.ID); err != nil {
			s.logger.Error("failed to suspend wallet past grace period", "wallet_id", w.ID, "error", err)
			continue
		}
		s.logger.Warn("wallet suspended, grace period expired", "wallet_id", w.ID, "user_id", w.UserID)
		if s.notifier != nil {
			_ = s.notifier.Notify(ctx, w.UserID, "wallet_suspended", map[string]string{
				"wallet_id": fmt.Sprintf("%d", w.ID),
				"reason":    "grace_period_expired",
			})
		}
		n++
	}
	return n, nil
}

func (s *Service) ListPayable(ctx context.Context, minAvailable money.Cents, roles []string, limit int) ([]*Wallet, error) {
	return s.store.ListPayable(ctx, minAvailable, roles, limit)
}
