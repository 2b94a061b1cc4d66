package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// WalletHandler exposes the wallet service's balance, top-up, and
// transaction-history endpoints.
type WalletHandler struct {
	wallets *wallet.Service
}

func NewWalletHandler(w *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: w}
}

// GetMyWallet returns (creating if needed) the authenticated user's wallet.
func (h *WalletHandler) GetMyWallet(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	w, err := h.wallets.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, walletJSON(w))
}

type autoTopupRequest struct {
	Enabled       bool   `json:"enabled"`
	Threshold     string `json:"threshold"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"paymentMethod"`
}

// ConfigureAutoTopup sets or clears the authenticated user's auto-topup rule.
func (h *WalletHandler) ConfigureAutoTopup(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	var req autoTopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	threshold, ok := money.Parse(req.Threshold)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid threshold amount"})
		return
	}
	amount, ok := money.Parse(req.Amount)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid topup amount"})
		return
	}

	w, err := h.wallets.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	cfg := wallet.AutoTopup{
		Enabled:       req.Enabled,
		Threshold:     threshold,
		Amount:        amount,
		PaymentMethod: req.PaymentMethod,
	}
	if err := h.wallets.ConfigureAutoTopup(c.Request.Context(), w.ID, cfg); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "auto-topup updated"})
}

type topupRequest struct {
	Amount          string `json:"amount"`
	PaymentMethodID string `json:"paymentMethodId"`
}

// Topup charges the authenticated user's payment method and credits their
// wallet, idempotent on the Idempotency-Key header.
func (h *WalletHandler) Topup(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	var req topupRequest
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

	tx, err := h.wallets.Topup(c.Request.Context(), userID, amount, req.PaymentMethodID, idemKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(tx))
}

// ListTransactions returns the authenticated user's wallet ledger, newest first.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	w, err := h.wallets.GetOrCreate(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}

	limit, offset := parseLimitOffset(c, 50)
	txs, err := h.wallets.ListTransactions(c.Request.Context(), w.ID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionsJSON(txs), "count": len(txs)})
}

// GetHold returns a single funds hold by id.
func (h *WalletHandler) GetHold(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("holdId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid hold id"})
		return
	}
	hold, err := h.wallets.GetHold(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, holdJSON(hold))
}

type reverseRequest struct {
	Reason string `json:"reason"`
}

// Reverse appends a compensating transaction reversing a completed one.
// Admin-only: a ledger correction outside the normal settlement/dispute flow.
func (h *WalletHandler) Reverse(c *gin.Context) {
	txID, err := strconv.ParseInt(c.Param("transactionId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid transaction id"})
		return
	}
	var req reverseRequest
	_ = c.ShouldBindJSON(&req)

	adminID := auth.GetAuthenticatedUserID(c)
	tx, err := h.wallets.Reverse(c.Request.Context(), txID, req.Reason, adminID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, transactionJSON(tx))
}

func parseLimitOffset(c *gin.Context, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	offset = 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
