package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/verification"
)

// VerificationHandler exposes clock-in/out and manager review endpoints.
type VerificationHandler struct {
	verification *verification.Service
}

func NewVerificationHandler(v *verification.Service) *VerificationHandler {
	return &VerificationHandler{verification: v}
}

// ClockIn records the authenticated worker's clock-in for a shift they are
// the sole accepted applicant on.
func (h *VerificationHandler) ClockIn(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	workerID := auth.GetAuthenticatedUserID(c)
	s, err := h.verification.ClockIn(c.Request.Context(), shiftID, workerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shiftJSON(s))
}

// ClockOut records the authenticated worker's clock-out, completing the shift.
func (h *VerificationHandler) ClockOut(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	workerID := auth.GetAuthenticatedUserID(c)
	s, err := h.verification.ClockOut(c.Request.Context(), shiftID, workerID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shiftJSON(s))
}

type managerApproveRequest struct {
	Role        string   `json:"role"`
	ActualHours *float64 `json:"actualHours"`
}

// ManagerApprove approves a completed shift's hours and triggers settlement.
func (h *VerificationHandler) ManagerApprove(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	var req managerApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	role, ok := parseManagerRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "role must be company_owner or admin"})
		return
	}

	managerID := auth.GetAuthenticatedUserID(c)
	s, err := h.verification.ManagerApproveShift(c.Request.Context(), shiftID, managerID, role, req.ActualHours)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shiftJSON(s))
}

type managerRejectRequest struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// ManagerReject rejects the clocked hours and opens a dispute.
func (h *VerificationHandler) ManagerReject(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	var req managerRejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}
	role, ok := parseManagerRole(req.Role)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "role must be company_owner or admin"})
		return
	}

	managerID := auth.GetAuthenticatedUserID(c)
	d, err := h.verification.ManagerRejectShift(c.Request.Context(), shiftID, managerID, role, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputeJSON(d))
}

func parseManagerRole(role string) (verification.ManagerRole, bool) {
	switch role {
	case "company_owner":
		return verification.RoleCompanyOwner, true
	case "admin":
		return verification.RoleAdmin, true
	default:
		return "", false
	}
}
