package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_AppliesEffectOnce(t *testing.T) {
	store := NewMemoryStore()
	d := NewDispatcher(store, nil)

	calls := 0
	effect := func(ctx context.Context, event WebhookEvent) (string, error) {
		calls++
		return "payout_marked_paid", nil
	}

	event := WebhookEvent{EventID: "evt_1", EventType: "payout.paid"}

	r1, err := d.Dispatch(context.Background(), event, effect)
	require.NoError(t, err)
	assert.Equal(t, "payout_marked_paid", r1)
	assert.Equal(t, 1, calls)

	r2, err := d.Dispatch(context.Background(), event, effect)
	require.NoError(t, err)
	assert.Equal(t, "payout_marked_paid", r2)
	assert.Equal(t, 1, calls, "replayed event must not re-invoke the effect")
}

func TestParseEventID(t *testing.T) {
	id, typ, err := ParseEventID([]byte(`{"id":"evt_abc","type":"payout.paid"}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_abc", id)
	assert.Equal(t, "payout.paid", typ)

	_, _, err = ParseEventID([]byte(`{"type":"payout.paid"}`))
	assert.Error(t, err)
}
