package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/penalty"
)

// PenaltyHandler exposes the no-show/strike/suspension sanction record and
// appeal endpoints.
type PenaltyHandler struct {
	penalties *penalty.Service
}

func NewPenaltyHandler(p *penalty.Service) *PenaltyHandler {
	return &PenaltyHandler{penalties: p}
}

// GetPenalty returns a single penalty by id.
func (h *PenaltyHandler) GetPenalty(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("penaltyId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid penalty id"})
		return
	}
	p, err := h.penalties.GetPenalty(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, penaltyJSON(p))
}

// ListMyStrikes returns the authenticated user's active strikes.
func (h *PenaltyHandler) ListMyStrikes(c *gin.Context) {
	userID := auth.GetAuthenticatedUserID(c)
	strikes, err := h.penalties.ListActiveStrikes(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"strikes": strikesJSON(strikes), "count": len(strikes)})
}

type submitAppealRequest struct {
	AppealType    string   `json:"appealType"`
	RelatedID     int64    `json:"relatedId"`
	Reason        string   `json:"reason"`
	EvidenceURLs  []string `json:"evidenceUrls"`
	EmergencyType string   `json:"emergencyType"`
}

// SubmitAppeal contests a penalty, strike, or suspension.
func (h *PenaltyHandler) SubmitAppeal(c *gin.Context) {
	var req submitAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	var appealType penalty.AppealType
	switch req.AppealType {
	case "penalty":
		appealType = penalty.AppealPenalty
	case "strike":
		appealType = penalty.AppealStrike
	case "suspension":
		appealType = penalty.AppealSuspension
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "appealType must be penalty, strike, or suspension"})
		return
	}

	userID := auth.GetAuthenticatedUserID(c)
	a, err := h.penalties.SubmitAppeal(c.Request.Context(), userID, appealType, req.RelatedID, req.Reason, req.EvidenceURLs, req.EmergencyType)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, appealJSON(a))
}

// GetAppeal returns a single appeal by id.
func (h *PenaltyHandler) GetAppeal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("appealId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid appeal id"})
		return
	}
	a, err := h.penalties.GetAppeal(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appealJSON(a))
}

type reviewAppealRequest struct {
	Approve   bool `json:"approve"`
	Frivolous bool `json:"frivolous"`
}

// ReviewAppeal approves or denies a pending appeal. Admin-only.
func (h *PenaltyHandler) ReviewAppeal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("appealId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid appeal id"})
		return
	}
	var req reviewAppealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	reviewerID := auth.GetAuthenticatedUserID(c)
	a, err := h.penalties.ReviewAppeal(c.Request.Context(), id, req.Approve, reviewerID, req.Frivolous)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appealJSON(a))
}

// WithdrawAppeal withdraws the authenticated user's own pending appeal.
func (h *PenaltyHandler) WithdrawAppeal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("appealId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid appeal id"})
		return
	}
	userID := auth.GetAuthenticatedUserID(c)
	a, err := h.penalties.WithdrawAppeal(c.Request.Context(), id, userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, appealJSON(a))
}
