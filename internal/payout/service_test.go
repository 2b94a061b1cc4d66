package payout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

type stubWalletProcessor struct{}

func (stubWalletProcessor) Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (string, error) {
	return "ch_" + idemKey, nil
}

type stubPayoutProcessor struct {
	fail bool
}

func (s stubPayoutProcessor) Payout(ctx context.Context, amount money.Cents, externalAccountID string, method Method, idemKey string) (string, error) {
	if s.fail {
		return "", assert.AnError
	}
	return "po_" + idemKey, nil
}

func (s stubPayoutProcessor) CancelPayout(ctx context.Context, processorPayoutID string) error {
	return nil
}

func newTestEnv(t *testing.T, now time.Time, fail bool) (*Service, *wallet.Service) {
	t.Helper()
	clk := clock.NewFrozen(now)
	walletStore := wallet.NewMemoryStore()
	walletSvc := wallet.NewService(walletStore, stubWalletProcessor{}, clk, 48*time.Hour, nil)
	store := NewMemoryStore()
	svc := NewService(store, walletSvc, stubPayoutProcessor{fail: fail}, clk, nil)
	return svc, walletSvc
}

// stubOffsetter mimics penalty.Service.OffsetPayout without ever touching a
// wallet: it caps the offset at the outstanding debt and the amount being
// paid out, and decrements debt as it's applied.
type stubOffsetter struct {
	debt money.Cents
}

func (o *stubOffsetter) OffsetPayout(ctx context.Context, userID int64, amount money.Cents) (money.Cents, error) {
	offset := money.Min(o.debt, amount)
	o.debt = o.debt.Sub(offset)
	return offset, nil
}

func TestRequestInstantPayout_ChargesFeeAndDebitsGross(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC) // a Friday
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	po, err := svc.RequestInstantPayout(ctx, 9, money.MustParse("50.00"), "acct_ext", "payout-1")
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("0.75"), po.Fee) // 1.5% of 50.00
	assert.Equal(t, money.MustParse("49.25"), po.NetAmount)
	assert.Equal(t, StatusPending, po.Status)

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("50.00"), w.Balance)
}

func TestRequestInstantPayout_BelowMinimumRejected(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC)
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	_, err = svc.RequestInstantPayout(ctx, 9, money.MustParse("5.00"), "acct_ext", "payout-2")
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestRequestInstantPayout_IsIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC)
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	first, err := svc.RequestInstantPayout(ctx, 9, money.MustParse("20.00"), "acct_ext", "payout-3")
	require.NoError(t, err)
	second, err := svc.RequestInstantPayout(ctx, 9, money.MustParse("20.00"), "acct_ext", "payout-3")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestRequestInstantPayout_OffsetsDebtWithoutDoubleDebiting(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC) // a Friday
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	offsetter := &stubOffsetter{debt: money.MustParse("20.00")}
	svc.WithNegativeBalanceOffsetter(offsetter)

	po, err := svc.RequestInstantPayout(ctx, 9, money.MustParse("50.00"), "acct_ext", "payout-offset-1")
	require.NoError(t, err)

	// offset=20 -> effective=30; fee is 1.5% of the effective amount, not the gross.
	assert.Equal(t, money.MustParse("20.00"), po.OffsetApplied)
	assert.Equal(t, money.MustParse("30.00"), po.Amount)
	assert.Equal(t, money.MustParse("0.45"), po.Fee)
	assert.Equal(t, money.MustParse("29.55"), po.NetAmount)
	assert.Equal(t, money.Zero, offsetter.debt)

	// Wallet is debited once for the full gross (50.00), not gross+offset.
	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("50.00"), w.Balance)
}

func TestRequestInstantPayout_OffsetBelowMinimumRejected(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC)
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	offsetter := &stubOffsetter{debt: money.MustParse("45.00")}
	svc.WithNegativeBalanceOffsetter(offsetter)

	// Gross (50.00) clears the raw $10 minimum, but the effective remainder
	// after the 45.00 offset (5.00) does not.
	_, err = svc.RequestInstantPayout(ctx, 9, money.MustParse("50.00"), "acct_ext", "payout-offset-2")
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestProcessWeeklyPayouts_RejectsOffSchedulingDay(t *testing.T) {
	now := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC) // a Thursday
	svc, _ := newTestEnv(t, now, false)
	ctx := context.Background()

	_, err := svc.ProcessWeeklyPayouts(ctx, nil, 10)
	assert.ErrorIs(t, err, ErrNotSchedulingDay)
}

func TestProcessWeeklyPayouts_OffsetsDebtBeforePaying(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC) // a Friday
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	offsetter := &stubOffsetter{debt: money.MustParse("20.00")}
	svc.WithNegativeBalanceOffsetter(offsetter)

	n, err := svc.ProcessWeeklyPayouts(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, money.Zero, offsetter.debt)

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.Zero, w.Balance) // full 100.00 leaves the wallet in a single debit

	po, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("80.00"), po.Amount) // 100.00 - 20.00 offset
	assert.Equal(t, money.MustParse("20.00"), po.OffsetApplied)
}

func TestProcessWeeklyPayouts_SkipsPayoutWhenEffectiveBelowMinimumButStillOffsets(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC) // a Friday
	svc, walletSvc := newTestEnv(t, now, false)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	offsetter := &stubOffsetter{debt: money.MustParse("70.00")}
	svc.WithNegativeBalanceOffsetter(offsetter)

	n, err := svc.ProcessWeeklyPayouts(ctx, nil, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, n) // 100.00 - 70.00 = 30.00, below the 50.00 weekly minimum

	assert.Equal(t, money.Zero, offsetter.debt) // the 70.00 was still deducted

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("30.00"), w.Balance) // only the offset left the wallet
}

func TestMarkFailed_RefundsDebitedAmount(t *testing.T) {
	now := time.Date(2026, 8, 7, 10, 0, 0, 0, time.UTC)
	svc, walletSvc := newTestEnv(t, now, true)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	po, err := svc.RequestInstantPayout(ctx, 9, money.MustParse("50.00"), "acct_ext", "payout-4")
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, po.Status)

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("100.00"), w.Balance)
}
