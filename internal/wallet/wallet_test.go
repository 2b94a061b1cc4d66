package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
)

type fakeProcessor struct {
	fail bool
}

func (f *fakeProcessor) Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (string, error) {
	if f.fail {
		return "", errors.New("card declined")
	}
	return "ch_" + idemKey, nil
}

func newTestService(fail bool) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	clk := clock.NewFrozen(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeProcessor{fail: fail}, clk, 48*time.Hour, nil)
	return svc, store
}

func TestService_Topup_Success(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	tx, err := svc.Topup(ctx, 1, money.MustParse("25.00"), "pm_1", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, TxStatusCompleted, tx.Status)

	w, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("25.00"), w.Balance)
	assert.Equal(t, StatusActive, w.Status)
}

func TestService_Topup_Replay(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	tx1, err := svc.Topup(ctx, 1, money.MustParse("10.00"), "pm_1", "idem-replay")
	require.NoError(t, err)

	tx2, err := svc.Topup(ctx, 1, money.MustParse("10.00"), "pm_1", "idem-replay")
	require.NoError(t, err)
	assert.Equal(t, tx1.ID, tx2.ID)

	w, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("10.00"), w.Balance, "replay must not double-credit")
}

func TestService_Topup_ProcessorFailure_EntersGracePeriod(t *testing.T) {
	svc, _ := newTestService(true)
	ctx := context.Background()

	_, err := svc.Topup(ctx, 1, money.MustParse("10.00"), "pm_1", "idem-fail")
	require.Error(t, err)

	w, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusGracePeriod, w.Status)
	require.NotNil(t, w.GracePeriodEndsAt)
	assert.True(t, w.GracePeriodEndsAt.After(time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)))
	assert.True(t, w.Balance.IsZero())
}

func TestService_Reserve_InsufficientFunds(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	w, err := svc.GetOrCreate(ctx, 1)
	require.NoError(t, err)

	_, _, err = svc.Reserve(ctx, w.ID, 100, money.MustParse("50.00"), HoldKindShift, nil, "idem-reserve")
	require.Error(t, err)
}

func TestService_Reserve_And_ReleaseHold(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	_, err := svc.Topup(ctx, 1, money.MustParse("100.00"), "pm_1", "idem-fund")
	require.NoError(t, err)
	w, _ := svc.GetOrCreate(ctx, 1)

	hold, _, err := svc.Reserve(ctx, w.ID, 100, money.MustParse("50.00"), HoldKindShift, nil, "idem-reserve-1")
	require.NoError(t, err)
	assert.Equal(t, HoldActive, hold.Status)

	w, _ = svc.Get(ctx, w.ID)
	assert.Equal(t, money.MustParse("50.00"), w.Reserved)
	assert.Equal(t, money.MustParse("50.00"), w.Available())

	_, _, err = svc.ReleaseHold(ctx, hold.ID, TxRelease, "idem-release-1")
	require.NoError(t, err)

	w, _ = svc.Get(ctx, w.ID)
	assert.True(t, w.Reserved.IsZero())
	assert.Equal(t, money.MustParse("100.00"), w.Available())
}

func TestService_Reserve_DuplicateHold(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	_, err := svc.Topup(ctx, 1, money.MustParse("100.00"), "pm_1", "idem-fund-2")
	require.NoError(t, err)
	w, _ := svc.GetOrCreate(ctx, 1)

	_, _, err = svc.Reserve(ctx, w.ID, 200, money.MustParse("10.00"), HoldKindShift, nil, "idem-a")
	require.NoError(t, err)

	_, _, err = svc.Reserve(ctx, w.ID, 200, money.MustParse("10.00"), HoldKindShift, nil, "idem-b")
	assert.ErrorIs(t, err, ErrDuplicateHold)
}

func TestService_Settle(t *testing.T) {
	svc, _ := newTestService(false)
	ctx := context.Background()

	_, err := svc.Topup(ctx, 1, money.MustParse("100.00"), "pm_1", "idem-fund-3")
	require.NoError(t, err)
	payer, _ := svc.GetOrCreate(ctx, 1)
	recipient, _ := svc.GetOrCreate(ctx, 2)

	hold, _, err := svc.Reserve(ctx, payer.ID, 300, money.MustParse("100.00"), HoldKindShift, nil, "idem-settle-reserve")
	require.NoError(t, err)

	gross := money.MustParse("80.00")
	commission := money.MustParse("12.00")
	recipientAmount := money.MustParse("68.00")

	txs, err := svc.Settle(ctx, payer.ID, recipient.ID, hold.ID, gross, commission, recipientAmount, 300, "idem-settle-1")
	require.NoError(t, err)
	require.Len(t, txs, 3) // refund, commission, settlement

	payer, _ = svc.Get(ctx, payer.ID)
	recipient, _ = svc.Get(ctx, recipient.ID)

	assert.True(t, payer.Reserved.IsZero())
	assert.Equal(t, money.MustParse("20.00"), payer.Balance, "only gross leaves balance; the unused hold remainder was never removed from it")
	assert.Equal(t, money.MustParse("68.00"), recipient.Balance)
}

func TestWallet_AvailableAndUsable(t *testing.T) {
	w := &Wallet{Balance: money.MustParse("50.00"), Reserved: money.MustParse("20.00"), Status: StatusGracePeriod}
	assert.Equal(t, money.MustParse("30.00"), w.Available())
	assert.True(t, w.IsUsable())

	w.Status = StatusSuspended
	assert.False(t, w.IsUsable())
}
