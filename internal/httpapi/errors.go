// Package httpapi wires the wallet, shift, reservation, dispute, penalty,
// payout, and verification services onto gin HTTP routes — the spec §6
// external interface contract. Handlers are thin: they decode JSON, call a
// service method, and map the result (or the apperr taxonomy) to a status
// code.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/apperr"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/penalty"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/verification"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// writeError maps a service error to an HTTP status/body. Every service in
// this module returns either a sentinel from its own package or one wrapped
// from apperr; unrecognized errors fall through to 500 rather than leaking
// detail.
func writeError(c *gin.Context, err error) {
	var insufficient *apperr.InsufficientFundsError
	var suspended *apperr.WalletSuspendedError
	var processorFailed *apperr.ProcessorFailedError

	switch {
	case errors.As(err, &insufficient):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":           "insufficient_funds",
			"message":         err.Error(),
			"required":        insufficient.Required,
			"available":       insufficient.Available,
			"shortfall":       insufficient.Shortfall,
			"minimum_balance": insufficient.MinimumBalance,
		})
	case errors.As(err, &suspended):
		c.JSON(http.StatusConflict, gin.H{"error": "wallet_suspended", "message": err.Error()})
	case errors.As(err, &processorFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": "processor_failed", "message": err.Error()})

	case errors.Is(err, apperr.ErrNotFound),
		errors.Is(err, wallet.ErrWalletNotFound),
		errors.Is(err, wallet.ErrHoldNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound),
		errors.Is(err, shift.ErrNotFound),
		errors.Is(err, shift.ErrApplicationNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, penalty.ErrNotFound),
		errors.Is(err, penalty.ErrStrikeNotFound),
		errors.Is(err, penalty.ErrSuspensionNotFound),
		errors.Is(err, penalty.ErrAppealNotFound),
		errors.Is(err, payout.ErrNotFound),
		errors.Is(err, reservation.ErrScheduledReserveNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found", "message": err.Error()})

	case errors.Is(err, apperr.ErrForbidden),
		errors.Is(err, verification.ErrNotAuthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": err.Error()})

	case errors.Is(err, apperr.ErrValidation),
		errors.Is(err, shift.ErrInvalidSpots),
		errors.Is(err, shift.ErrAgencyFieldsMissing):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})

	case errors.Is(err, apperr.ErrConflict),
		errors.Is(err, apperr.ErrAlreadyReviewed),
		errors.Is(err, shift.ErrAlreadyApplied),
		errors.Is(err, shift.ErrNotOpen),
		errors.Is(err, dispute.ErrAlreadyOpen),
		errors.Is(err, payout.ErrNotSchedulingDay):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict", "message": err.Error()})

	case errors.Is(err, apperr.ErrIdempotencyReplay):
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_replay", "message": err.Error()})

	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "An unexpected error occurred"})
	}
}
