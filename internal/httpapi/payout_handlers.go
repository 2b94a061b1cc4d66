package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/payout"
)

// PayoutHandler exposes instant-payout requests and payout history.
// Weekly scheduled payouts and processor status transitions (in_transit,
// paid, failed) run out of the scheduler and the processor webhook, not
// through this handler.
type PayoutHandler struct {
	payouts *payout.Service
}

func NewPayoutHandler(p *payout.Service) *PayoutHandler {
	return &PayoutHandler{payouts: p}
}

type requestPayoutRequest struct {
	Amount            string `json:"amount"`
	ExternalAccountID string `json:"externalAccountId"`
}

// RequestInstantPayout requests an immediate, fee-bearing payout for the
// authenticated user, idempotent on the Idempotency-Key header.
func (h *PayoutHandler) RequestInstantPayout(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	var req requestPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	amount, ok := money.Parse(req.Amount)
	if !ok || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "amount must be a positive decimal"})
		return
	}
	idemKey := c.GetHeader("Idempotency-Key")
	if idemKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Idempotency-Key header is required"})
		return
	}

	p, err := h.payouts.RequestInstantPayout(c.Request.Context(), userID, amount, req.ExternalAccountID, idemKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payoutJSON(p))
}

// GetPayout returns a single payout by id.
func (h *PayoutHandler) GetPayout(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("payoutId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid payout id"})
		return
	}
	p, err := h.payouts.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, payoutJSON(p))
}

// ListMyPayouts lists the authenticated user's payout history.
func (h *PayoutHandler) ListMyPayouts(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	limit, offset := parseLimitOffset(c, 50)
	payouts, err := h.payouts.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payouts": payoutsJSON(payouts), "count": len(payouts)})
}
