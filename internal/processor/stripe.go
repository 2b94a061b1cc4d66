package processor

import (
	"context"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/pentedigital/extrashifty/internal/circuitbreaker"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/retry"
)

// stripeBreakerKey is the single circuit key Stripe calls trip against —
// one processor, one breaker. A per-destination key would make sense for
// Transfer/Payout if we ever routed through more than one rail.
const stripeBreakerKey = "stripe"

const (
	stripeMaxAttempts = 3
	stripeBaseDelay   = 200 * time.Millisecond
	stripeBreakerMax  = 5
	stripeBreakerCool = 30 * time.Second
)

// StripeProcessor implements Port against the real Stripe API: PaymentIntent
// for charges, Transfer for connected-account moves (agency/worker payouts
// routed through Stripe Connect), and Payout for cash-out to an external
// bank account. Every call passes an IdempotencyKey so retried operations
// (our own retry wrapper, or a caller's at-least-once delivery) never
// double-charge. Network-level failures are retried with backoff and gated
// by a circuit breaker; a card decline or other business-level rejection is
// never retried — it surfaces as Result{OK:false} on the first attempt.
type StripeProcessor struct {
	sc      *client.API
	logger  *slog.Logger
	breaker *circuitbreaker.Breaker
}

// NewStripeProcessor constructs a processor bound to apiKey.
func NewStripeProcessor(apiKey string, logger *slog.Logger) *StripeProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	sc := &client.API{}
	sc.Init(apiKey, nil)
	return &StripeProcessor{sc: sc, logger: logger, breaker: circuitbreaker.New(stripeBreakerMax, stripeBreakerCool)}
}

var _ Port = (*StripeProcessor)(nil)

func (p *StripeProcessor) Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (Result, error) {
	if !p.breaker.Allow(stripeBreakerKey) {
		return Result{}, circuitbreaker.ErrOpen
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(amount.Int64()),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		PaymentMethod:      stripe.String(paymentMethodID),
		Confirm:            stripe.Bool(true),
		OffSession:         stripe.Bool(true),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
	}
	params.IdempotencyKey = stripe.String(idemKey)
	params.Context = ctx

	var pi *stripe.PaymentIntent
	err := p.withRetry(ctx, func() error {
		var callErr error
		pi, callErr = p.sc.PaymentIntents.New(params)
		return callErr
	})
	if err != nil {
		p.logger.Warn("stripe charge failed", "error", err, "idempotency_key", idemKey)
		return Result{OK: false, FailReason: stripeErrMessage(err)}, nil
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return Result{OK: false, FailReason: string(pi.Status), ExternalID: pi.ID}, nil
	}
	return Result{OK: true, ExternalID: pi.ID}, nil
}

func (p *StripeProcessor) Transfer(ctx context.Context, amount money.Cents, destinationExternalID, idemKey string) (Result, error) {
	if !p.breaker.Allow(stripeBreakerKey) {
		return Result{}, circuitbreaker.ErrOpen
	}

	params := &stripe.TransferParams{
		Amount:      stripe.Int64(amount.Int64()),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(destinationExternalID),
	}
	params.IdempotencyKey = stripe.String(idemKey)
	params.Context = ctx

	var tr *stripe.Transfer
	err := p.withRetry(ctx, func() error {
		var callErr error
		tr, callErr = p.sc.Transfers.New(params)
		return callErr
	})
	if err != nil {
		p.logger.Warn("stripe transfer failed", "error", err, "idempotency_key", idemKey)
		return Result{OK: false, FailReason: stripeErrMessage(err)}, nil
	}
	return Result{OK: true, ExternalID: tr.ID}, nil
}

func (p *StripeProcessor) Payout(ctx context.Context, amount money.Cents, externalID string, method Method, idemKey string) (Result, error) {
	if !p.breaker.Allow(stripeBreakerKey) {
		return Result{}, circuitbreaker.ErrOpen
	}

	speed := "standard"
	if method == MethodInstant {
		speed = "instant"
	}
	params := &stripe.PayoutParams{
		Amount:      stripe.Int64(amount.Int64()),
		Currency:    stripe.String(string(stripe.CurrencyUSD)),
		Destination: stripe.String(externalID),
		Method:      stripe.String(speed),
	}
	params.IdempotencyKey = stripe.String(idemKey)
	params.Context = ctx

	var po *stripe.Payout
	err := p.withRetry(ctx, func() error {
		var callErr error
		po, callErr = p.sc.Payouts.New(params)
		return callErr
	})
	if err != nil {
		p.logger.Warn("stripe payout failed", "error", err, "idempotency_key", idemKey)
		return Result{OK: false, FailReason: stripeErrMessage(err)}, nil
	}
	return Result{OK: true, ExternalID: po.ID}, nil
}

func (p *StripeProcessor) CancelPayout(ctx context.Context, externalID string) error {
	params := &stripe.PayoutCancelParams{}
	params.Context = ctx
	_, err := p.sc.Payouts.Cancel(externalID, params)
	return err
}

// withRetry runs call with backoff, tripping the shared breaker on the
// final failure and resetting it on success. A Stripe API error (card
// decline, validation) is a business outcome, not a transient fault, so it
// is wrapped as permanent and never retried.
func (p *StripeProcessor) withRetry(ctx context.Context, call func() error) error {
	err := retry.Do(ctx, stripeMaxAttempts, stripeBaseDelay, func() error {
		err := call()
		if err == nil {
			return nil
		}
		if _, ok := err.(*stripe.Error); ok {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		p.breaker.RecordFailure(stripeBreakerKey)
		return err
	}
	p.breaker.RecordSuccess(stripeBreakerKey)
	return nil
}

func stripeErrMessage(err error) string {
	if stripeErr, ok := err.(*stripe.Error); ok {
		return string(stripeErr.Code)
	}
	return err.Error()
}
