package dispute

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
	disputeStore := NewMemoryStore()
	svc := NewService(disputeStore, shiftStore, walletSvc, clk, nil)
	return svc, shiftStore, walletSvc
}

func setupCompletedShift(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, walletSvc *wallet.Service, now time.Time) (*shift.Shift, *wallet.Wallet) {
	t.Helper()
	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-"+now.String())
	require.NoError(t, err)

	start := now.Add(-24 * time.Hour)
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

	app, err := shiftStore.CreateApplication(ctx, &shift.Application{ShiftID: s.ID, ApplicantID: 2, Status: shift.ApplicationPending, CreatedAt: now})
	require.NoError(t, err)
	_, _, err = shiftStore.AcceptApplication(ctx, app.ID)
	require.NoError(t, err)

	hold, _, err := walletSvc.Reserve(ctx, companyWallet.ID, s.ID, money.MustParse("160.00"), wallet.HoldKindShift, nil, "reserve-"+now.String())
	require.NoError(t, err)
	_ = hold

	clockOut := end
	require.NoError(t, shiftStore.RecordClockOut(ctx, s.ID, clockOut, 8))
	require.NoError(t, shiftStore.UpdateShiftStatus(ctx, s.ID, shift.StatusCompleted))

	s, err = shiftStore.GetShift(ctx, s.ID)
	require.NoError(t, err)
	return s, companyWallet
}

func TestCreateDispute_MovesReservedIntoEscrow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	s, companyWallet := setupCompletedShift(t, ctx, shiftStore, walletSvc, now)

	d, err := svc.CreateDispute(ctx, s.ID, 2, "worker says shift was cut short", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOpen, d.Status)
	assert.Equal(t, money.MustParse("160.00"), d.AmountDisputed)
	assert.Equal(t, int64(2), d.RaisedByUserID)
	assert.Equal(t, int64(1), d.AgainstUserID)

	w, err := walletSvc.Get(ctx, companyWallet.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("160.00"), w.Reserved, "reserved is unchanged net after moving to escrow")
}

func TestCreateDispute_RejectsSecondOpenDispute(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	s, _ := setupCompletedShift(t, ctx, shiftStore, walletSvc, now)

	_, err := svc.CreateDispute(ctx, s.ID, 2, "first", nil)
	require.NoError(t, err)

	_, err = svc.CreateDispute(ctx, s.ID, 1, "second", nil)
	assert.ErrorIs(t, err, ErrAlreadyOpen)
}

func TestResolveDispute_ForRaiserWorker_PaysWorkerInFull(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	s, companyWallet := setupCompletedShift(t, ctx, shiftStore, walletSvc, now)
	d, err := svc.CreateDispute(ctx, s.ID, 2, "worker raises", nil)
	require.NoError(t, err)

	resolved, err := svc.ResolveDispute(ctx, d.ID, ResolutionForRaiser, nil, "admin sides with worker")
	require.NoError(t, err)
	assert.Equal(t, StatusResolvedForRaiser, resolved.Status)

	worker, err := walletSvc.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("160.00"), worker.Balance)

	company, err := walletSvc.Get(ctx, companyWallet.ID)
	require.NoError(t, err)
	assert.True(t, company.Reserved.IsZero())
}

func TestResolveDispute_Split(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	s, _ := setupCompletedShift(t, ctx, shiftStore, walletSvc, now)
	d, err := svc.CreateDispute(ctx, s.ID, 1, "company raises", nil)
	require.NoError(t, err)

	splitPct := 30
	resolved, err := svc.ResolveDispute(ctx, d.ID, ResolutionSplit, &splitPct, "split the difference")
	require.NoError(t, err)
	assert.Equal(t, StatusResolvedForRaiser, resolved.Status) // company (raiser) gets 70%, majority

	worker, err := walletSvc.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("48.00"), worker.Balance) // 30% of 160.00
}

func TestAutoResolveOverdueDisputes_FavorsWorker(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	s, _ := setupCompletedShift(t, ctx, shiftStore, walletSvc, now)
	d, err := svc.CreateDispute(ctx, s.ID, 1, "company raises", nil)
	require.NoError(t, err)

	// Advance the frozen clock past the 3-business-day deadline.
	frozen := clock.NewFrozen(d.ResolutionDeadline.Add(time.Hour))
	svc2 := NewService(svc.store, shiftStore, walletSvc, frozen, nil)

	n, err := svc2.AutoResolveOverdueDisputes(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	worker, err := walletSvc.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("160.00"), worker.Balance)
}
