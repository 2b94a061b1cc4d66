// Package processor implements the payment-processor port (spec §4.D): a
// narrow charge/transfer/payout/cancel_payout capability that the wallet
// and payout packages reach through the adapters in adapter.go, plus the
// ProcessedWebhookEvent idempotency store that makes webhook delivery
// replay-safe. The concrete implementation wraps the Stripe Go SDK, the
// one teacher go.mod dependency that was present but unused — this package
// is where it becomes load-bearing.
package processor

import (
	"context"
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Method enumerates the destination speed for a payout.
type Method string

const (
	MethodStandard Method = "standard"
	MethodInstant  Method = "instant"
)

// Result is the outcome of a charge/transfer/payout call.
type Result struct {
	ExternalID string
	OK         bool
	FailReason string
}

// Port is the abstract payment-processor capability. No component outside
// this package imports Stripe directly — wallet and payout each declare
// their own narrower processor interface, which adapter.go bridges to Port.
type Port interface {
	// Charge debits a payment method for amount, idempotent on idemKey.
	Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (Result, error)
	// Transfer moves funds to a connected account, idempotent on idemKey.
	Transfer(ctx context.Context, amount money.Cents, destinationExternalID, idemKey string) (Result, error)
	// Payout pays external funds out to externalID via method, idempotent on idemKey.
	Payout(ctx context.Context, amount money.Cents, externalID string, method Method, idemKey string) (Result, error)
	// CancelPayout attempts to cancel an in-flight payout.
	CancelPayout(ctx context.Context, externalID string) error
}

// ErrTransient marks a processor failure the caller should treat as
// retryable (network/timeout) rather than a hard decline.
var ErrTransient = errors.New("processor: transient failure")

// WebhookEvent is the provider-agnostic shape an event handler dispatches
// against, the Port-side half of the Stripe webhook payload.
type WebhookEvent struct {
	EventID   string
	EventType string
	RawBody   []byte
	Received  time.Time
}
