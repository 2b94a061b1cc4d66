package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/reservation"
)

// ReservationHandler exposes shift-fund reservation, multi-day scheduling,
// settlement, and cancellation endpoints.
type ReservationHandler struct {
	reservations *reservation.Service
}

func NewReservationHandler(r *reservation.Service) *ReservationHandler {
	return &ReservationHandler{reservations: r}
}

// ReserveFunds reserves the first day's funds for a filled shift.
func (h *ReservationHandler) ReserveFunds(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	idemKey := c.GetHeader("Idempotency-Key")
	if idemKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "Idempotency-Key header is required"})
		return
	}

	hold, err := h.reservations.ReserveShiftFunds(c.Request.Context(), shiftID, idemKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, holdJSON(hold))
}

type scheduleDaysRequest struct {
	Days []string `json:"days"`
}

// ScheduleSubsequentDays schedules one pending reserve per remaining day of
// a multi-day shift.
func (h *ReservationHandler) ScheduleSubsequentDays(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	var req scheduleDaysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	days := make([]time.Time, 0, len(req.Days))
	for _, d := range req.Days {
		t, err := time.Parse(time.RFC3339, d)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "days must be RFC3339 timestamps"})
			return
		}
		days = append(days, t)
	}

	reserves, err := h.reservations.ScheduleSubsequentReserves(c.Request.Context(), shiftID, days)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scheduledReserves": scheduledReservesJSON(reserves), "count": len(reserves)})
}

// SettleShift settles a completed shift: pays the worker, takes the
// platform commission, and refunds any unused reserve.
func (h *ReservationHandler) SettleShift(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}

	var req struct {
		ActualHours *float64 `json:"actualHours"`
	}
	_ = c.ShouldBindJSON(&req)

	txs, err := h.reservations.SettleShift(c.Request.Context(), shiftID, req.ActualHours)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionsJSON(txs), "count": len(txs)})
}

type cancelShiftRequest struct {
	CancelledBy string `json:"cancelledBy"`
}

// CancelShift processes a cancellation, charging the appropriate
// late-cancellation compensation per who cancelled and how close to start.
func (h *ReservationHandler) CancelShift(c *gin.Context) {
	shiftID, err := strconv.ParseInt(c.Param("shiftId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "invalid shift id"})
		return
	}
	var req cancelShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": err.Error()})
		return
	}

	var cancelledBy reservation.CancelledBy
	switch req.CancelledBy {
	case "worker":
		cancelledBy = reservation.CancelledByWorker
	case "company":
		cancelledBy = reservation.CancelledByCompany
	case "platform":
		cancelledBy = reservation.CancelledByPlatform
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "message": "cancelledBy must be worker, company, or platform"})
		return
	}

	txs, err := h.reservations.ProcessCancellation(c.Request.Context(), shiftID, cancelledBy, time.Now())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactionsJSON(txs), "count": len(txs)})
}
