// Package apperr defines the closed error taxonomy shared by every
// component: validation, authorization, conflict, insufficient-funds, and
// generic not-found/forbidden errors that the HTTP layer (out of scope
// here) maps to status codes.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors usable with errors.Is.
var (
	ErrNotFound          = errors.New("apperr: not found")
	ErrForbidden         = errors.New("apperr: forbidden")
	ErrValidation        = errors.New("apperr: validation failed")
	ErrConflict          = errors.New("apperr: conflict")
	ErrAlreadyReviewed   = errors.New("apperr: already reviewed")
	ErrIdempotencyReplay = errors.New("apperr: idempotency key reused with a different payload")
)

// InsufficientFundsError carries the shortfall detail a caller needs to
// explain a failed reserve or payout to a user.
type InsufficientFundsError struct {
	Required       string
	Available      string
	Shortfall      string
	MinimumBalance string
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: required=%s available=%s shortfall=%s minimum_balance=%s",
		e.Required, e.Available, e.Shortfall, e.MinimumBalance)
}

// WalletSuspendedError reports that a wallet cannot be used while
// suspended or in its grace period.
type WalletSuspendedError struct {
	WalletID int64
	Status   string
}

func (e *WalletSuspendedError) Error() string {
	return fmt.Sprintf("wallet %d is %s", e.WalletID, e.Status)
}

// ProcessorFailedError wraps a payment-processor port failure.
type ProcessorFailedError struct {
	Reason string
}

func (e *ProcessorFailedError) Error() string {
	return "payment processor failed: " + e.Reason
}

// NotFound builds an ErrNotFound wrapping a resource description.
func NotFound(what string) error {
	return fmt.Errorf("%s: %w", what, ErrNotFound)
}

// Forbidden builds an ErrForbidden wrapping a reason.
func Forbidden(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrForbidden)
}

// Validation builds an ErrValidation wrapping a reason.
func Validation(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrValidation)
}

// Conflict builds an ErrConflict wrapping a reason.
func Conflict(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrConflict)
}
