package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/money"
)

// DisputeHandler exposes dispute creation, evidence submission, and
// resolution endpoints.
type DisputeHandler struct {
	disputes *dispute.Service
}

func NewDisputeHandler(d *dispute.Service) *DisputeHandler {
	return &DisputeHandler{disputes: d}
}

type createDisputeRequest struct {
	ShiftID        int64  `json:"shiftId"`
	Reason         string `json:"reason"`
	DisputedAmount string `json:"disputedAmount"`
}

// CreateDispute raises a dispute over a completed shift, escrowing the
// disputed amount pending resolution.
func (h *DisputeHandler) CreateDispute(c *gin.Context) {
	var req createDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	var amountPtr *money.Cents
	if req.DisputedAmount != "" {
		amount, ok := money.Parse(req.DisputedAmount)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid disputedAmount"})
			return
		}
		amountPtr = &amount
	}

	raisedBy := auth.GetAuthenticatedUserID(c)
	d, err := h.disputes.CreateDispute(c.Request.Context(), req.ShiftID, raisedBy, req.Reason, amountPtr)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, disputeJSON(d))
}

// GetDispute returns a single dispute by id.
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("disputeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid dispute id"})
		return
	}
	d, err := h.disputes.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeJSON(d))
}

type submitEvidenceRequest struct {
	Entry string `json:"entry"`
}

// SubmitEvidence appends an evidence entry to an open dispute.
func (h *DisputeHandler) SubmitEvidence(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("disputeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid dispute id"})
		return
	}
	var req submitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Entry == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "entry is required"})
		return
	}
	d, err := h.disputes.SubmitEvidence(c.Request.Context(), id, req.Entry)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeJSON(d))
}

type resolveDisputeRequest struct {
	Resolution string `json:"resolution"`
	SplitPct   *int   `json:"splitPct"`
	AdminNotes string `json:"adminNotes"`
}

// ResolveDispute settles the escrowed funds per the arbitration decision.
// Admin-only.
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("disputeId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid dispute id"})
		return
	}
	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	var resolution dispute.Resolution
	switch req.Resolution {
	case "for_raiser":
		resolution = dispute.ResolutionForRaiser
	case "against_raiser":
		resolution = dispute.ResolutionAgainstRaiser
	case "split":
		resolution = dispute.ResolutionSplit
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "resolution must be for_raiser, against_raiser, or split"})
		return
	}

	d, err := h.disputes.ResolveDispute(c.Request.Context(), id, resolution, req.SplitPct, req.AdminNotes)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeJSON(d))
}
