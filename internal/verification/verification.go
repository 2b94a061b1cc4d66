// Package verification implements clock-in/clock-out recording and the
// manager approve/reject/auto-approve pipeline that gates shift settlement
// (spec §4.I). It composes shift.Store directly for the clock events and
// reservation.Service/dispute.Service for the settlement and dispute sides
// of an approval decision, the same composition style reservation uses for
// wallet.Service.
package verification

import (
	"errors"
	"time"
)

// AutoApproveAfter is how long a completed, clocked-out shift waits for a
// manager decision before it auto-settles.
const AutoApproveAfter = 24 * time.Hour

var (
	ErrNotSoleApplicant  = errors.New("verification: caller is not the shift's accepted applicant")
	ErrNotInProgress     = errors.New("verification: shift is not in progress")
	ErrNotClockedIn      = errors.New("verification: shift has no clock-in recorded")
	ErrAlreadyClockedIn  = errors.New("verification: shift already has a clock-in recorded")
	ErrAlreadyClockedOut = errors.New("verification: shift already has a clock-out recorded")
	ErrNotCompleted      = errors.New("verification: shift is not completed")
	ErrNotAuthorized     = errors.New("verification: caller is not authorized to approve or reject this shift")
	ErrDisputeOpen       = errors.New("verification: shift has an open dispute")
)

// ManagerRole is the set of roles ManagerApproveShift/ManagerRejectShift
// authorize: a company owner or an admin. CheckAutoApproveShifts runs
// without a caller role.
type ManagerRole string

const (
	RoleCompanyOwner ManagerRole = "company_owner"
	RoleAdmin        ManagerRole = "admin"
)

// isManagerRole reports whether role is one of the roles authorized to
// approve or reject a shift.
func isManagerRole(role ManagerRole) bool {
	return role == RoleCompanyOwner || role == RoleAdmin
}
