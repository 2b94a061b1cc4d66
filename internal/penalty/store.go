package penalty

import (
	"context"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Store persists penalties, strikes, negative balances, suspensions,
// appeals and emergency waivers. As with wallet.Store, each method is a
// single atomic unit.
type Store interface {
	CreatePenalty(ctx context.Context, p *Penalty) (*Penalty, error)
	GetPenalty(ctx context.Context, id int64) (*Penalty, error)
	GetPenaltyByShift(ctx context.Context, shiftID int64) (*Penalty, error)
	UpdatePenaltyStatus(ctx context.Context, id int64, status PenaltyStatus, collected money.Cents, waivedBy *int64) (*Penalty, error)

	CreateStrike(ctx context.Context, s *Strike) (*Strike, error)
	GetStrike(ctx context.Context, id int64) (*Strike, error)
	// ListActiveStrikes returns a user's active, non-expired strikes,
	// for the suspension-threshold check and for appeal display.
	ListActiveStrikes(ctx context.Context, userID int64, now time.Time) ([]*Strike, error)
	// ListStrikesByUser returns every strike ever recorded for a user,
	// active or not, for the first-offense and same-day-cap checks.
	ListStrikesByUser(ctx context.Context, userID int64) ([]*Strike, error)
	DeactivateStrike(ctx context.Context, id int64) error

	CreateAgencyStrike(ctx context.Context, s *AgencyStrike) (*AgencyStrike, error)
	CountAgencyStrikes(ctx context.Context, agencyUserID int64, since time.Time) (int, error)

	// GetOrCreateNegativeBalance returns the user's singleton negative
	// balance row, creating a zero one if none exists.
	GetOrCreateNegativeBalance(ctx context.Context, userID int64) (*NegativeBalance, error)
	AddToNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error)
	ReduceNegativeBalance(ctx context.Context, userID int64, amount money.Cents, at time.Time) (*NegativeBalance, error)
	// ListStaleNegativeBalances returns balances with no activity since
	// before, for the 180-day inactivity write-off job.
	ListStaleNegativeBalances(ctx context.Context, before time.Time, limit int) ([]*NegativeBalance, error)

	CreateSuspension(ctx context.Context, s *UserSuspension) (*UserSuspension, error)
	GetActiveSuspension(ctx context.Context, userID int64) (*UserSuspension, error)
	LiftSuspension(ctx context.Context, id int64, liftedBy *int64) (*UserSuspension, error)

	CreateAppeal(ctx context.Context, a *Appeal) (*Appeal, error)
	GetAppeal(ctx context.Context, id int64) (*Appeal, error)
	// GetPendingAppealFor returns the pending appeal for a given
	// (appealType, relatedID), if any, for the one-pending-appeal-per-item rule.
	GetPendingAppealFor(ctx context.Context, appealType AppealType, relatedID int64) (*Appeal, error)
	UpdateAppealStatus(ctx context.Context, id int64, status AppealStatus, at time.Time) (*Appeal, error)

	CreateEmergencyWaiver(ctx context.Context, w *EmergencyWaiver) (*EmergencyWaiver, error)
	GetEmergencyWaiverForYear(ctx context.Context, userID int64, year int) (*EmergencyWaiver, error)
}
