package processor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"
)

// ErrAlreadyProcessed is returned by Store.Record when event_id collides
// with an existing row — the caller should treat this as a no-op replay,
// not a failure.
var ErrAlreadyProcessed = errors.New("processor: webhook event already processed")

// ProcessedWebhookEvent is the idempotency record for a delivered webhook.
// A second delivery of the same EventID is a no-op that returns Result
// unchanged, per the spec's webhook dispatcher contract.
type ProcessedWebhookEvent struct {
	ID        int64
	EventID   string
	EventType string
	Result    string
	CreatedAt time.Time
}

// Store persists ProcessedWebhookEvent rows, unique on EventID.
type Store interface {
	Record(ctx context.Context, eventID, eventType, result string) (*ProcessedWebhookEvent, error)
	Get(ctx context.Context, eventID string) (*ProcessedWebhookEvent, error)
}

// EffectFunc applies a webhook's side effect (e.g. marking a Payout paid)
// and returns a short machine-readable result string to store alongside the
// event id.
type EffectFunc func(ctx context.Context, event WebhookEvent) (result string, err error)

// Dispatcher records event_id in Store in the same transaction it applies
// the effect, via Store implementations backed by *sql.Tx; the in-memory
// Store used in tests applies both under a single mutex instead.
type Dispatcher struct {
	store  Store
	logger *slog.Logger
}

func NewDispatcher(store Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, logger: logger}
}

// Dispatch applies effect exactly once per EventID. A second delivery
// returns the stored result without invoking effect again.
func (d *Dispatcher) Dispatch(ctx context.Context, event WebhookEvent, effect EffectFunc) (string, error) {
	if existing, err := d.store.Get(ctx, event.EventID); err == nil {
		d.logger.Info("webhook event replayed", "event_id", event.EventID, "event_type", event.EventType)
		return existing.Result, nil
	}

	result, err := effect(ctx, event)
	if err != nil {
		return "", err
	}

	if _, err := d.store.Record(ctx, event.EventID, event.EventType, result); err != nil {
		if errors.Is(err, ErrAlreadyProcessed) {
			existing, gerr := d.store.Get(ctx, event.EventID)
			if gerr != nil {
				return "", gerr
			}
			return existing.Result, nil
		}
		return "", err
	}
	return result, nil
}

// ParseEventID extracts the provider event id from a raw Stripe webhook
// payload without fully decoding it, so malformed optional fields elsewhere
// in the payload never block idempotency tracking.
func ParseEventID(raw []byte) (id, eventType string, err error) {
	var envelope struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return "", "", err
	}
	if envelope.ID == "" {
		return "", "", errors.New("processor: webhook payload missing event id")
	}
	return envelope.ID, envelope.Type, nil
}
