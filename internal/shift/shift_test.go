package shift

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pentedigital/extrashifty/internal/money"
)

func newTestShift(companyID int64) *Shift {
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	return &Shift{
		CompanyID:  companyID,
		Date:       date,
		StartTime:  date.Add(9 * time.Hour),
		EndTime:    date.Add(17 * time.Hour),
		HourlyRate: money.MustParse("20.00"),
		SpotsTotal: 1,
		Status:     StatusOpen,
		CreatedAt:  time.Now().UTC(),
	}
}

func TestShift_DurationHours_SameDay(t *testing.T) {
	s := newTestShift(1)
	assert.Equal(t, 8.0, s.DurationHours())
}

func TestShift_DurationHours_OvernightWraps(t *testing.T) {
	date := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	s := &Shift{
		StartTime: date.Add(22 * time.Hour),
		EndTime:   date.Add(6 * time.Hour), // 06:00, before start-of-day clock time
	}
	assert.Equal(t, 8.0, s.DurationHours())
}

func TestShift_PayerWalletOwnerID_ModeA(t *testing.T) {
	s := newTestShift(42)
	assert.Equal(t, int64(42), s.PayerWalletOwnerID())
}

func TestShift_PayerWalletOwnerID_ModeB(t *testing.T) {
	agencyID := int64(7)
	clientID := int64(42)
	s := newTestShift(42)
	s.IsAgencyManaged = true
	s.PostedByAgencyID = &agencyID
	s.ClientCompanyID = &clientID
	assert.Equal(t, int64(7), s.PayerWalletOwnerID())
}

func TestMemoryStore_CreateShift_RejectsAgencyFieldsMissing(t *testing.T) {
	store := NewMemoryStore()
	s := newTestShift(1)
	s.IsAgencyManaged = true

	_, err := store.CreateShift(context.Background(), s)
	assert.ErrorIs(t, err, ErrAgencyFieldsMissing)
}

func TestMemoryStore_AcceptApplication_FillsShift(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.CreateShift(ctx, newTestShift(1))
	require.NoError(t, err)

	app, err := store.CreateApplication(ctx, &Application{ShiftID: s.ID, ApplicantID: 9, Status: ApplicationPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	acceptedApp, updatedShift, err := store.AcceptApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, ApplicationAccepted, acceptedApp.Status)
	assert.Equal(t, StatusFilled, updatedShift.Status)
	assert.Equal(t, 1, updatedShift.SpotsFilled)

	sole, err := store.SoleAcceptedApplicant(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), sole.ApplicantID)
}

func TestMemoryStore_CreateApplication_DuplicateRejected(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	s, err := store.CreateShift(ctx, newTestShift(1))
	require.NoError(t, err)

	_, err = store.CreateApplication(ctx, &Application{ShiftID: s.ID, ApplicantID: 9, Status: ApplicationPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	_, err = store.CreateApplication(ctx, &Application{ShiftID: s.ID, ApplicantID: 9, Status: ApplicationPending, CreatedAt: time.Now().UTC()})
	assert.ErrorIs(t, err, ErrAlreadyApplied)
}

func TestMemoryStore_AcceptApplication_NotOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	shiftSeed := newTestShift(1)
	shiftSeed.SpotsTotal = 1
	s, err := store.CreateShift(ctx, shiftSeed)
	require.NoError(t, err)

	app1, err := store.CreateApplication(ctx, &Application{ShiftID: s.ID, ApplicantID: 9, Status: ApplicationPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)
	_, _, err = store.AcceptApplication(ctx, app1.ID)
	require.NoError(t, err)

	app2, err := store.CreateApplication(ctx, &Application{ShiftID: s.ID, ApplicantID: 11, Status: ApplicationPending, CreatedAt: time.Now().UTC()})
	require.NoError(t, err)

	_, _, err = store.AcceptApplication(ctx, app2.ID)
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestMemoryStore_ListNoShowCandidates(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	filled := newTestShift(1)
	filled.Status = StatusFilled
	s, err := store.CreateShift(ctx, filled)
	require.NoError(t, err)

	now := s.StartTime.Add(45 * time.Minute)
	candidates, err := store.ListNoShowCandidates(ctx, now, 30*time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, s.ID, candidates[0].ID)

	require.NoError(t, store.RecordClockIn(ctx, s.ID, now))
	candidates, err = store.ListNoShowCandidates(ctx, now, 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
