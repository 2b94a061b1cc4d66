package reservation

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
	resStore := NewMemoryStore()
	svc := NewService(resStore, shiftStore, walletSvc, clk, nil)
	return svc, shiftStore, walletSvc
}

func postOpenShift(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, companyID int64, start, end time.Time) *shift.Shift {
	t.Helper()
	s, err := shiftStore.CreateShift(ctx, &shift.Shift{
		CompanyID:  companyID,
		Date:       start,
		StartTime:  start,
		EndTime:    end,
		HourlyRate: money.MustParse("20.00"),
		SpotsTotal: 1,
		Status:     shift.StatusOpen,
		CreatedAt:  time.Now().UTC(),
	})
	require.NoError(t, err)
	return s
}

func acceptApplicant(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, shiftID, applicantID int64) {
	t.Helper()
	app, err := shiftStore.CreateApplication(ctx, &shift.Application{ShiftID: shiftID, ApplicantID: applicantID, Status: shift.ApplicationPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, _, err = shiftStore.AcceptApplication(ctx, app.ID)
	require.NoError(t, err)
}

func TestReserveShiftFunds_Success(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	_, err = walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-co")
	require.NoError(t, err)

	start := now.Add(48 * time.Hour)
	end := start.Add(8 * time.Hour)
	s := postOpenShift(t, ctx, shiftStore, 1, start, end)
	acceptApplicant(t, ctx, shiftStore, s.ID, 2)

	hold, err := svc.ReserveShiftFunds(ctx, s.ID, "idem-reserve-1")
	require.NoError(t, err)
	assert.Equal(t, wallet.HoldActive, hold.Status)
	assert.Equal(t, money.MustParse("160.00"), hold.Amount) // 8h x $20

	w, err := walletSvc.Get(ctx, companyWallet.ID)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("160.00"), w.Reserved)
}

func TestReserveShiftFunds_InsufficientFunds(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc, shiftStore, _ := newTestEnv(t, now)

	start := now.Add(48 * time.Hour)
	end := start.Add(8 * time.Hour)
	s := postOpenShift(t, ctx, shiftStore, 1, start, end)
	acceptApplicant(t, ctx, shiftStore, s.ID, 2)

	_, err := svc.ReserveShiftFunds(ctx, s.ID, "idem-reserve-2")
	require.Error(t, err)
}

func TestSettleShift_ModeA(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	companyWallet, _ := walletSvc.GetOrCreate(ctx, 1)
	_, err := walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-co-2")
	require.NoError(t, err)

	start := now.Add(48 * time.Hour)
	end := start.Add(8 * time.Hour)
	s := postOpenShift(t, ctx, shiftStore, 1, start, end)
	acceptApplicant(t, ctx, shiftStore, s.ID, 2)

	_, err = svc.ReserveShiftFunds(ctx, s.ID, "idem-reserve-3")
	require.NoError(t, err)

	txs, err := svc.SettleShift(ctx, s.ID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	worker, err := walletSvc.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	// gross = 160.00, platform fee 15% = 24.00, recipient = 136.00
	assert.Equal(t, money.MustParse("136.00"), worker.Balance)

	updatedShift, err := shiftStore.GetShift(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCompleted, updatedShift.Status)
}

func TestProcessCancellation_WorkerAlwaysFullRefund(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	companyWallet, _ := walletSvc.GetOrCreate(ctx, 1)
	_, err := walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-co-3")
	require.NoError(t, err)

	start := now.Add(2 * time.Hour) // inside 24h window
	end := start.Add(8 * time.Hour)
	s := postOpenShift(t, ctx, shiftStore, 1, start, end)
	acceptApplicant(t, ctx, shiftStore, s.ID, 2)

	_, err = svc.ReserveShiftFunds(ctx, s.ID, "idem-reserve-4")
	require.NoError(t, err)

	_, err = svc.ProcessCancellation(ctx, s.ID, CancelledByWorker, now)
	require.NoError(t, err)

	w, err := walletSvc.Get(ctx, companyWallet.ID)
	require.NoError(t, err)
	assert.True(t, w.Reserved.IsZero())
	assert.Equal(t, money.MustParse("500.00"), w.Available())
}

func TestProcessCancellation_CompanyLateCancel(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)

	companyWallet, _ := walletSvc.GetOrCreate(ctx, 1)
	_, err := walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-co-4")
	require.NoError(t, err)

	start := now.Add(10 * time.Hour) // Δh = 10, inside 24h bucket
	end := start.Add(8 * time.Hour)
	s := postOpenShift(t, ctx, shiftStore, 1, start, end)
	acceptApplicant(t, ctx, shiftStore, s.ID, 2)

	_, err = svc.ReserveShiftFunds(ctx, s.ID, "idem-reserve-5")
	require.NoError(t, err)

	txs, err := svc.ProcessCancellation(ctx, s.ID, CancelledByCompany, now)
	require.NoError(t, err)
	require.NotEmpty(t, txs)

	worker, err := walletSvc.GetOrCreate(ctx, 2)
	require.NoError(t, err)
	// 2h x $20 x 0.85 = $34.00 compensation
	assert.Equal(t, money.MustParse("34.00"), worker.Balance)
}
