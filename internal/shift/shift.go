// Package shift holds the Shift and Application entities shared by the
// reservation, dispute, penalty, payout, and verification components. It
// owns no money movement itself — it is the record of what work was posted,
// who applied, and what was actually worked — and is composed into those
// packages the way the ledger package is composed into the wallet service.
package shift

import (
	"context"
	"errors"
	"time"

	"github.com/pentedigital/extrashifty/internal/money"
)

var (
	ErrNotFound            = errors.New("shift: not found")
	ErrApplicationNotFound = errors.New("shift: application not found")
	ErrInvalidSpots        = errors.New("shift: spots_filled cannot exceed spots_total")
	ErrAlreadyApplied      = errors.New("shift: applicant already has an application for this shift")
	ErrNotOpen             = errors.New("shift: not open for applications")
	ErrAgencyFieldsMissing = errors.New("shift: agency-managed shifts require posted_by_agency_id and client_company_id")
)

// Status is the shift's lifecycle state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusOpen       Status = "open"
	StatusFilled     Status = "filled"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Shift is a single posted block of work. Mode A (direct) shifts are posted
// by a company and paid out of the company's wallet; Mode B (agency-managed)
// shifts carry both PostedByAgencyID and ClientCompanyID and are paid out of
// the agency's wallet instead.
type Shift struct {
	ID                int64
	CompanyID         int64
	PostedByAgencyID  *int64
	ClientCompanyID   *int64
	IsAgencyManaged   bool
	Date              time.Time
	StartTime         time.Time
	EndTime           time.Time
	HourlyRate        money.Cents
	SpotsTotal        int
	SpotsFilled       int
	Status            Status
	ClockInAt         *time.Time
	ClockOutAt        *time.Time
	ActualHoursWorked *float64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PayerWalletOwnerID is the user id whose wallet funds this shift: the
// agency's in Mode B, the company's otherwise. Reservation, dispute, and
// penalty routing all key off this single method rather than re-deriving
// the Mode A/B branch in each caller.
func (s *Shift) PayerWalletOwnerID() int64 {
	if s.IsAgencyManaged && s.PostedByAgencyID != nil {
		return *s.PostedByAgencyID
	}
	return s.CompanyID
}

// EndMoment returns the shift's actual end instant, wrapping an overnight
// end time (EndTime before StartTime on the clock) to the following day.
func (s *Shift) EndMoment() time.Time {
	end := s.EndTime
	if end.Before(s.StartTime) {
		end = end.Add(24 * time.Hour)
	}
	return end
}

// DurationHours returns the shift's scheduled duration, wrapping an
// overnight end time (EndTime before StartTime on the clock) to span past
// midnight.
func (s *Shift) DurationHours() float64 {
	return s.EndMoment().Sub(s.StartTime).Hours()
}

// HoursWorked resolves the hours to bill: the clocked actual hours if
// present, else the scheduled duration.
func (s *Shift) HoursWorked() float64 {
	if s.ActualHoursWorked != nil {
		return *s.ActualHoursWorked
	}
	return s.DurationHours()
}

// IsMultiDay reports whether this shift spans more than one calendar day of
// scheduled reserves (the reservation package schedules one ScheduledReserve
// per day after the first).
func (s *Shift) IsMultiDay(days int) bool {
	return days > 1
}

// ApplicationStatus is the lifecycle state of an Application.
type ApplicationStatus string

const (
	ApplicationPending   ApplicationStatus = "pending"
	ApplicationAccepted  ApplicationStatus = "accepted"
	ApplicationRejected  ApplicationStatus = "rejected"
	ApplicationWithdrawn ApplicationStatus = "withdrawn"
)

// Application is a single user's request to work a shift. At most one row
// per (ShiftID, ApplicantID); a shift has at most one accepted application
// per filled spot.
type Application struct {
	ID          int64
	ShiftID     int64
	ApplicantID int64
	Status      ApplicationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Store persists shifts and applications. Each method is a single atomic
// unit; callers needing read-then-write consistency (e.g. accepting an
// application while incrementing spots_filled) use the combined methods
// below rather than composing Get+Update themselves.
type Store interface {
	CreateShift(ctx context.Context, s *Shift) (*Shift, error)
	GetShift(ctx context.Context, id int64) (*Shift, error)
	UpdateShiftStatus(ctx context.Context, id int64, status Status) error
	RecordClockIn(ctx context.Context, id int64, at time.Time) error
	RecordClockOut(ctx context.Context, id int64, at time.Time, actualHours float64) error
	ListShiftsPendingAutoApprove(ctx context.Context, completedBefore time.Time, limit int) ([]*Shift, error)
	// ListNoShowCandidates returns filled shifts whose start time plus grace
	// has passed as of now with no clock-in recorded, for the penalty
	// engine's hourly no-show sweep. Shifts that already have a Penalty row
	// are excluded by the caller via penalty.Store, not here, since this
	// package has no knowledge of Penalty.
	ListNoShowCandidates(ctx context.Context, now time.Time, grace time.Duration, limit int) ([]*Shift, error)

	CreateApplication(ctx context.Context, a *Application) (*Application, error)
	GetApplication(ctx context.Context, id int64) (*Application, error)
	// AcceptApplication transitions an application to accepted and, in the
	// same atomic unit, increments the parent shift's spots_filled,
	// transitioning the shift to filled once spots_total is reached.
	AcceptApplication(ctx context.Context, applicationID int64) (*Application, *Shift, error)
	RejectApplication(ctx context.Context, applicationID int64) (*Application, error)
	ListAcceptedApplications(ctx context.Context, shiftID int64) ([]*Application, error)
	SoleAcceptedApplicant(ctx context.Context, shiftID int64) (*Application, error)
}
