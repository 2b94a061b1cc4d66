// Package penalty implements the penalty, strike & suspension engine
// (spec §4.G): no-show detection, graduated sanctions (warning → strike →
// 30-day suspension), negative-balance carry and write-off, same-day caps,
// first-offense leniency, and the 7-day/72-hour appeals process with
// emergency waivers. It composes shift.Store and wallet.Service exactly as
// reservation and dispute do.
package penalty

import (
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

// Wire constants (spec §6).
const (
	PenaltyRate                  = 0.50
	StrikeWindow                 = 90 * 24 * time.Hour
	SuspensionLength             = 30 * 24 * time.Hour
	NoShowGrace                  = 30 * time.Minute
	NegativeBalanceWriteoffAfter = 180 * 24 * time.Hour
	FrivolousAppealFee           = "25.00"
	SuspensionStrikeThreshold    = 3
	AgencyWarningThreshold       = 2
	AgencySuspensionThreshold    = 5
	AppealWindowDefault          = 7 * 24 * time.Hour
	AppealWindowSuspension       = 72 * time.Hour
)

var (
	ErrNotFound               = errors.New("penalty: not found")
	ErrStrikeNotFound         = errors.New("penalty: strike not found")
	ErrSuspensionNotFound     = errors.New("penalty: suspension not found")
	ErrAppealNotFound         = errors.New("penalty: appeal not found")
	ErrAlreadyNoShow          = errors.New("penalty: shift already has a no-show penalty recorded")
	ErrAppealWindowClosed     = errors.New("penalty: appeal window has closed")
	ErrDuplicateAppeal        = errors.New("penalty: an appeal is already pending for this item")
	ErrInvalidAppeal          = errors.New("penalty: appeal_type/related_id combination is invalid")
	ErrAppealAlreadyReviewed  = errors.New("penalty: appeal already reviewed")
	ErrEmergencyWaiverClaimed = errors.New("penalty: an emergency waiver was already claimed this calendar year")
)

// PenaltyStatus is the lifecycle state of a Penalty row.
type PenaltyStatus string

const (
	PenaltyPending     PenaltyStatus = "pending"
	PenaltyCollected   PenaltyStatus = "collected"
	PenaltyWaived      PenaltyStatus = "waived"
	PenaltyWrittenOff  PenaltyStatus = "written_off"
)

// Penalty is a monetary charge levied on a user, typically 50% of shift
// cost for a no-show.
type Penalty struct {
	ID               int64
	UserID           int64
	ShiftID          int64
	Amount           money.Cents
	Reason           string
	Status           PenaltyStatus
	CollectedAmount  money.Cents
	WaivedBy         *int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Strike is a time-limited mark on a user's record. Three active,
// non-warning strikes within the strike window trigger a suspension.
type Strike struct {
	ID            int64
	UserID        int64
	ShiftID       *int64
	Reason        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	IsActive      bool
	IsWarningOnly bool
}

// IsCountable reports whether s counts toward the suspension threshold as
// of now: active, non-warning, and still inside its expiry window.
func (s *Strike) IsCountable(now time.Time) bool {
	return s.IsActive && !s.IsWarningOnly && s.ExpiresAt.After(now)
}

// AgencyStrike is the first-class reliability-record entity recommended by
// spec.md §9's Open Questions, replacing the source's
// `description LIKE 'agency-supplied%'` Transaction-tag hack: a structured
// record of an agency-supplied no-show, counted the same way user Strikes
// are (2 → warning, 5 → suspension review) but against the agency itself
// rather than the individual worker it supplied.
type AgencyStrike struct {
	ID           int64
	AgencyUserID int64
	ShiftID      int64
	CreatedAt    time.Time
}

// NegativeBalance is the singleton debt record a user carries when a
// penalty could not be fully absorbed by their wallet balance.
type NegativeBalance struct {
	ID             int64
	UserID         int64
	Amount         money.Cents
	LastActivityAt time.Time
}

// UserSuspension marks a user inactive, optionally until a fixed date
// (nil SuspendedUntil means indefinite, e.g. the inactivity write-off).
type UserSuspension struct {
	ID              int64
	UserID          int64
	Reason          string
	SuspendedAt     time.Time
	SuspendedUntil  *time.Time
	IsActive        bool
	LiftedBy        *int64
}

// AppealType is the kind of sanction an Appeal contests.
type AppealType string

const (
	AppealPenalty    AppealType = "penalty"
	AppealStrike     AppealType = "strike"
	AppealSuspension AppealType = "suspension"
)

// AppealStatus is the lifecycle state of an Appeal.
type AppealStatus string

const (
	AppealPending   AppealStatus = "pending"
	AppealApproved  AppealStatus = "approved"
	AppealDenied    AppealStatus = "denied"
	AppealWithdrawn AppealStatus = "withdrawn"
)

// Appeal contests a Penalty, Strike, or UserSuspension (RelatedID names the
// row of that AppealType). An EmergencyType claim may draw on the user's
// one-per-calendar-year EmergencyWaiver when approved.
type Appeal struct {
	ID                  int64
	UserID              int64
	AppealType          AppealType
	RelatedID           int64
	Reason              string
	EvidenceURLs        []string
	EmergencyType       string
	Status              AppealStatus
	AppealDeadline      time.Time
	FrivolousFeeCharged bool
	EmergencyWaiverUsed bool
	CreatedAt           time.Time
	ReviewedAt          *time.Time
}

// EmergencyWaiver records that a user has claimed their one emergency
// waiver for a given calendar year.
type EmergencyWaiver struct {
	ID            int64
	UserID        int64
	Year          int
	AppealID      int64
	EmergencyType string
}

// appealWindow returns the review window for an AppealType, per spec §6.
func appealWindow(t AppealType) time.Duration {
	if t == AppealSuspension {
		return AppealWindowSuspension
	}
	return AppealWindowDefault
}
