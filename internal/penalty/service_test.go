package penalty

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

type stubProcessor struct{}

func (stubProcessor) Charge(ctx context.Context, amount money.Cents, paymentMethodID, idemKey string) (string, error) {
	return "ch_" + idemKey, nil
}

func newTestEnv(t *testing.T, now time.Time) (*Service, *shift.MemoryStore, *wallet.Service) {
	t.Helper()
	clk := clock.NewFrozen(now)
	walletStore := wallet.NewMemoryStore()
	walletSvc := wallet.NewService(walletStore, stubProcessor{}, clk, 48*time.Hour, nil)
	shiftStore := shift.NewMemoryStore()
	penaltyStore := NewMemoryStore()
	svc := NewService(penaltyStore, shiftStore, walletSvc, clk, nil)
	walletSvc.WithNegativeBalanceOffsetter(svc)
	return svc, shiftStore, walletSvc
}

// setupFilledNoShowShift creates a filled shift whose start time is already
// past grace, with a funded payer hold and an accepted but un-clocked-in
// worker.
func setupFilledNoShowShift(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, walletSvc *wallet.Service, now time.Time) *shift.Shift {
	t.Helper()
	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-1")
	require.NoError(t, err)

	start := now.Add(-1 * time.Hour)
	end := start.Add(8 * time.Hour)
	s, err := shiftStore.CreateShift(ctx, &shift.Shift{
		CompanyID:  1,
		Date:       start,
		StartTime:  start,
		EndTime:    end,
		HourlyRate: money.MustParse("20.00"),
		SpotsTotal: 1,
		Status:     shift.StatusOpen,
		CreatedAt:  now,
	})
	require.NoError(t, err)

	app, err := shiftStore.CreateApplication(ctx, &shift.Application{ShiftID: s.ID, ApplicantID: 9, Status: shift.ApplicationPending, CreatedAt: now})
	require.NoError(t, err)
	_, updated, err := shiftStore.AcceptApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, shift.StatusFilled, updated.Status)

	_, _, err = walletSvc.Reserve(ctx, companyWallet.ID, s.ID, money.MustParse("160.00"), wallet.HoldKindShift, nil, "reserve-1")
	require.NoError(t, err)

	return updated
}

func TestProcessNoShow_FirstOffenseIsWarningOnlyWithZeroPenalty(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	s := setupFilledNoShowShift(t, ctx, shiftStore, walletSvc, now)
	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-worker")
	require.NoError(t, err)

	pen, err := svc.ProcessNoShow(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, pen)

	workerWallet, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("100.00"), workerWallet.Balance)

	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, companyWallet.Balance, companyWallet.Available())

	active, err := svc.store.ListStrikesByUser(ctx, 9)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.True(t, active[0].IsWarningOnly)
}

func TestProcessNoShow_CollectsPenaltyAndReleasesHold(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	s := setupFilledNoShowShift(t, ctx, shiftStore, walletSvc, now)

	// A prior no-show already used up the first-offense leniency.
	_, err := svc.store.CreateStrike(ctx, &Strike{
		UserID: 9, Reason: "no_show_first_offense", CreatedAt: now.Add(-14 * 24 * time.Hour),
		ExpiresAt: now.Add(-14*24*time.Hour + StrikeWindow), IsActive: true, IsWarningOnly: true,
	})
	require.NoError(t, err)

	workerWallet, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-worker")
	require.NoError(t, err)

	pen, err := svc.ProcessNoShow(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, PenaltyCollected, pen.Status)
	assert.Equal(t, money.MustParse("80.00"), pen.Amount) // 50% of 160.00

	workerWallet, err = walletSvc.Get(ctx, workerWallet.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("20.00"), workerWallet.Balance)

	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("500.00"), companyWallet.Balance)
	assert.Equal(t, companyWallet.Balance, companyWallet.Available())

	updatedShift, err := shiftStore.GetShift(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCancelled, updatedShift.Status)

	active, err := svc.store.ListActiveStrikes(ctx, 9, now)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "no_show", active[0].Reason)
}

func TestProcessNoShow_InsufficientBalanceCarriesNegativeBalance(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	s := setupFilledNoShowShift(t, ctx, shiftStore, walletSvc, now)
	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = svc.store.CreateStrike(ctx, &Strike{
		UserID: 9, Reason: "no_show_first_offense", CreatedAt: now.Add(-14 * 24 * time.Hour),
		ExpiresAt: now.Add(-14*24*time.Hour + StrikeWindow), IsActive: true, IsWarningOnly: true,
	})
	require.NoError(t, err)

	pen, err := svc.ProcessNoShow(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, PenaltyPending, pen.Status)
	assert.True(t, pen.CollectedAmount.IsZero())

	nb, err := svc.store.GetOrCreateNegativeBalance(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("80.00"), nb.Amount)
}

func TestEvaluateSuspension_ThresholdTriggersSuspension(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, _, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)

	for i := 0; i < SuspensionStrikeThreshold; i++ {
		_, err := svc.store.CreateStrike(ctx, &Strike{
			UserID: 9, Reason: "no_show", CreatedAt: now, ExpiresAt: now.Add(StrikeWindow), IsActive: true,
		})
		require.NoError(t, err)
	}

	require.NoError(t, svc.evaluateSuspension(ctx, 9))

	susp, err := svc.store.GetActiveSuspension(ctx, 9)
	require.NoError(t, err)
	assert.True(t, susp.IsActive)

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, wallet.StatusSuspended, w.Status)
}

func TestOffsetOnTopup_RepaysNegativeBalanceFirst(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, _, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = svc.store.AddToNegativeBalance(ctx, 9, money.MustParse("30.00"), now)
	require.NoError(t, err)

	_, err = walletSvc.Topup(ctx, 9, money.MustParse("50.00"), "pm_9", "topup-1")
	require.NoError(t, err)

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("20.00"), w.Balance)

	nb, err := svc.store.GetOrCreateNegativeBalance(ctx, 9)
	require.NoError(t, err)
	assert.True(t, nb.Amount.IsZero())
}

func TestSubmitAppeal_RejectsAfterWindowCloses(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, _, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	_, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	shiftID := int64(1)
	pen, err := svc.store.CreatePenalty(ctx, &Penalty{UserID: 9, ShiftID: shiftID, Amount: money.MustParse("80.00"), Status: PenaltyPending, CreatedAt: now})
	require.NoError(t, err)

	clk := svc.clock.(*clock.Frozen)
	clk.Advance(AppealWindowDefault + time.Hour)

	_, err = svc.SubmitAppeal(ctx, 9, AppealPenalty, pen.ID, "I was there", nil, "")
	assert.ErrorIs(t, err, ErrAppealWindowClosed)
}

func TestReviewAppeal_ApprovedPenaltyRefundsCollectedAmount(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, _, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	w, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, 9, money.MustParse("100.00"), "pm_9", "fund-9")
	require.NoError(t, err)

	shiftID := int64(1)
	pen, err := svc.store.CreatePenalty(ctx, &Penalty{UserID: 9, ShiftID: shiftID, Amount: money.MustParse("80.00"), Status: PenaltyPending, CreatedAt: now})
	require.NoError(t, err)
	pen, err = svc.collect(ctx, pen)
	require.NoError(t, err)
	require.Equal(t, PenaltyCollected, pen.Status)

	appeal, err := svc.SubmitAppeal(ctx, 9, AppealPenalty, pen.ID, "I was there", nil, "")
	require.NoError(t, err)

	reviewed, err := svc.ReviewAppeal(ctx, appeal.ID, true, 1, false)
	require.NoError(t, err)
	assert.Equal(t, AppealApproved, reviewed.Status)

	w, err = walletSvc.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("100.00"), w.Balance)

	finalPen, err := svc.store.GetPenalty(ctx, pen.ID)
	require.NoError(t, err)
	assert.Equal(t, PenaltyWaived, finalPen.Status)
}
