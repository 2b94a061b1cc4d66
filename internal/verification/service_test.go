package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/clock"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/reservation"
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
	reservationSvc := reservation.NewService(reservation.NewMemoryStore(), shiftStore, walletSvc, clk, nil)
	disputeSvc := dispute.NewService(dispute.NewMemoryStore(), shiftStore, walletSvc, clk, nil)
	svc := NewService(shiftStore, reservationSvc, disputeSvc, clk, nil)
	return svc, shiftStore, walletSvc
}

// setupFilledShift creates a filled, funded shift with an accepted worker,
// ready to clock in.
func setupFilledShift(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, walletSvc *wallet.Service, now time.Time) *shift.Shift {
	t.Helper()
	return setupFilledShiftFor(t, ctx, shiftStore, walletSvc, now, 9, "reserve-1")
}

func setupFilledShiftFor(t *testing.T, ctx context.Context, shiftStore *shift.MemoryStore, walletSvc *wallet.Service, now time.Time, applicantID int64, idemKey string) *shift.Shift {
	t.Helper()
	companyWallet, err := walletSvc.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	if companyWallet.Balance.IsZero() {
		_, err = walletSvc.Topup(ctx, companyWallet.UserID, money.MustParse("500.00"), "pm_1", "fund-"+idemKey)
		require.NoError(t, err)
	}

	start := now.Add(-2 * time.Hour)
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

	app, err := shiftStore.CreateApplication(ctx, &shift.Application{ShiftID: s.ID, ApplicantID: applicantID, Status: shift.ApplicationPending, CreatedAt: now})
	require.NoError(t, err)
	_, updated, err := shiftStore.AcceptApplication(ctx, app.ID)
	require.NoError(t, err)
	require.Equal(t, shift.StatusFilled, updated.Status)

	_, _, err = walletSvc.Reserve(ctx, companyWallet.ID, s.ID, money.MustParse("160.00"), wallet.HoldKindShift, nil, idemKey)
	require.NoError(t, err)

	return updated
}

func TestClockIn_RejectsNonApplicant(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()
	s := setupFilledShift(t, ctx, shiftStore, walletSvc, now)

	_, err := svc.ClockIn(ctx, s.ID, 999)
	assert.ErrorIs(t, err, ErrNotSoleApplicant)
}

func TestClockInClockOut_RecordsActualHoursAndCompletes(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()
	s := setupFilledShift(t, ctx, shiftStore, walletSvc, now)

	sh, err := svc.ClockIn(ctx, s.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusInProgress, sh.Status)
	require.NotNil(t, sh.ClockInAt)

	clk := svc.clock.(*clock.Frozen)
	clk.Advance(8 * time.Hour)

	sh, err = svc.ClockOut(ctx, s.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCompleted, sh.Status)
	require.NotNil(t, sh.ActualHoursWorked)
	assert.InDelta(t, 8.0, *sh.ActualHoursWorked, 0.01)
}

func TestManagerApproveShift_SettlesAndPaysWorker(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()
	s := setupFilledShift(t, ctx, shiftStore, walletSvc, now)

	_, err := svc.ClockIn(ctx, s.ID, 9)
	require.NoError(t, err)
	svc.clock.(*clock.Frozen).Advance(8 * time.Hour)
	_, err = svc.ClockOut(ctx, s.ID, 9)
	require.NoError(t, err)

	sh, err := svc.ManagerApproveShift(ctx, s.ID, 1, RoleCompanyOwner, nil)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCompleted, sh.Status)

	workerWallet, err := walletSvc.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("136.00"), workerWallet.Balance) // 160.00 less 15% commission
}

func TestManagerApproveShift_RejectsUnauthorizedRole(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()
	s := setupFilledShift(t, ctx, shiftStore, walletSvc, now)

	_, err := svc.ClockIn(ctx, s.ID, 9)
	require.NoError(t, err)
	_, err = svc.ClockOut(ctx, s.ID, 9)
	require.NoError(t, err)

	_, err = svc.ManagerApproveShift(ctx, s.ID, 1, ManagerRole("worker"), nil)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestManagerRejectShift_CreatesDispute(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()
	s := setupFilledShift(t, ctx, shiftStore, walletSvc, now)

	_, err := svc.ClockIn(ctx, s.ID, 9)
	require.NoError(t, err)
	_, err = svc.ClockOut(ctx, s.ID, 9)
	require.NoError(t, err)

	d, err := svc.ManagerRejectShift(ctx, s.ID, 1, RoleAdmin, "hours look wrong")
	require.NoError(t, err)
	assert.Equal(t, dispute.StatusOpen, d.Status)
}

func TestCheckAutoApproveShifts_SettlesEligibleShiftsAndSkipsDisputed(t *testing.T) {
	now := time.Date(2026, 8, 3, 12, 0, 0, 0, time.UTC)
	svc, shiftStore, walletSvc := newTestEnv(t, now)
	ctx := context.Background()

	s1 := setupFilledShift(t, ctx, shiftStore, walletSvc, now)
	_, err := svc.ClockIn(ctx, s1.ID, 9)
	require.NoError(t, err)
	_, err = svc.ClockOut(ctx, s1.ID, 9)
	require.NoError(t, err)
	_, err = svc.ManagerRejectShift(ctx, s1.ID, 1, RoleAdmin, "disputed")
	require.NoError(t, err)

	s2 := setupFilledShiftFor(t, ctx, shiftStore, walletSvc, now, 10, "reserve-2")
	_, err = svc.ClockIn(ctx, s2.ID, 10)
	require.NoError(t, err)
	svc.clock.(*clock.Frozen).Advance(8 * time.Hour)
	_, err = svc.ClockOut(ctx, s2.ID, 10)
	require.NoError(t, err)

	clk := svc.clock.(*clock.Frozen)
	clk.Advance(AutoApproveAfter + time.Hour)

	n, err := svc.CheckAutoApproveShifts(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sh1, err := shiftStore.GetShift(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, shift.StatusCompleted, sh1.Status)

	worker10Wallet, err := walletSvc.GetOrCreate(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("136.00"), worker10Wallet.Balance)
}
