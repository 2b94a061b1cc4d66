package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/money"
	"github.com/pentedigital/extrashifty/internal/shift"
)

// ShiftHandler exposes shift posting and application endpoints. The shift
// package has no Service of its own — these handlers call shift.Store
// directly, the same way the reservation/dispute/penalty services do.
type ShiftHandler struct {
	shifts shift.Store
}

func NewShiftHandler(s shift.Store) *ShiftHandler {
	return &ShiftHandler{shifts: s}
}

type postShiftRequest struct {
	PostedByAgencyID *int64 `json:"postedByAgencyId"`
	ClientCompanyID  *int64 `json:"clientCompanyId"`
	Date             string `json:"date"`
	StartTime        string `json:"startTime"`
	EndTime          string `json:"endTime"`
	HourlyRate       string `json:"hourlyRate"`
	SpotsTotal       int    `json:"spotsTotal"`
}

// PostShift creates a new open shift, owned by the authenticated company
// (or, when postedByAgencyId is set, an agency posting on a client's behalf).
func (h *ShiftHandler) PostShift(c *gin.Context) {
	companyID := auth.GetAuthenticatedUserID(c)

	var req postShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "date must be RFC3339"})
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "startTime must be RFC3339"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "endTime must be RFC3339"})
		return
	}
	rate, ok := money.Parse(req.HourlyRate)
	if !ok || !rate.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "hourlyRate must be a positive decimal"})
		return
	}
	if req.SpotsTotal <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "spotsTotal must be positive"})
		return
	}

	s := &shift.Shift{
		CompanyID:        companyID,
		PostedByAgencyID: req.PostedByAgencyID,
		ClientCompanyID:  req.ClientCompanyID,
		IsAgencyManaged:  req.PostedByAgencyID != nil,
		Date:             date,
		StartTime:        start,
		EndTime:          end,
		HourlyRate:       rate,
		SpotsTotal:       req.SpotsTotal,
		Status:           shift.StatusOpen,
	}

	created, err := h.shifts.CreateShift(c.Request.Context(), s)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, shiftJSON(created))
}

// GetShift returns a single shift by id.
func (h *ShiftHandler) GetShift(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	s, err := h.shifts.GetShift(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, shiftJSON(s))
}

// Apply records the authenticated worker's application to a shift.
func (h *ShiftHandler) Apply(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	applicantID := auth.GetAuthenticatedUserID(c)

	s, err := h.shifts.GetShift(c.Request.Context(), shiftID)
	if err != nil {
		writeError(c, err)
		return
	}
	if s.Status != shift.StatusOpen {
		writeError(c, shift.ErrNotOpen)
		return
	}

	app, err := h.shifts.CreateApplication(c.Request.Context(), &shift.Application{
		ShiftID:     shiftID,
		ApplicantID: applicantID,
		Status:      shift.ApplicationPending,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, applicationJSON(app))
}

// AcceptApplication accepts a pending application, filling a spot on the shift.
func (h *ShiftHandler) AcceptApplication(c *gin.Context) {
	appID, err := strconv.ParseInt(c.Param("applicationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid application id"})
		return
	}
	app, s, err := h.shifts.AcceptApplication(c.Request.Context(), appID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": applicationJSON(app), "shift": shiftJSON(s)})
}

// RejectApplication rejects a pending application.
func (h *ShiftHandler) RejectApplication(c *gin.Context) {
	appID, err := strconv.ParseInt(c.Param("applicationId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid application id"})
		return
	}
	app, err := h.shifts.RejectApplication(c.Request.Context(), appID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, applicationJSON(app))
}

// ListAcceptedApplications lists the accepted applicants for a shift.
func (h *ShiftHandler) ListAcceptedApplications(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	apps, err := h.shifts.ListAcceptedApplications(c.Request.Context(), shiftID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": applicationsJSON(apps), "count": len(apps)})
}
