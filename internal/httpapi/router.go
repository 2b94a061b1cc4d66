package httpapi

import (
	"compress/gzip"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pentedigital/extrashifty/internal/auth"
	"github.com/pentedigital/extrashifty/internal/config"
	"github.com/pentedigital/extrashifty/internal/dispute"
	"github.com/pentedigital/extrashifty/internal/health"
	"github.com/pentedigital/extrashifty/internal/logging"
	"github.com/pentedigital/extrashifty/internal/metrics"
	"github.com/pentedigital/extrashifty/internal/payout"
	"github.com/pentedigital/extrashifty/internal/penalty"
	"github.com/pentedigital/extrashifty/internal/processor"
	"github.com/pentedigital/extrashifty/internal/ratelimit"
	"github.com/pentedigital/extrashifty/internal/reservation"
	"github.com/pentedigital/extrashifty/internal/security"
	"github.com/pentedigital/extrashifty/internal/shift"
	"github.com/pentedigital/extrashifty/internal/validation"
	"github.com/pentedigital/extrashifty/internal/verification"
	"github.com/pentedigital/extrashifty/internal/wallet"
)

// Dependencies bundles every service cmd/server wires up. NewRouter builds
// one gin.Engine wiring them onto the spec's external interface, the way
// Server.setupRoutes did for the teacher's single monolithic server.
type Dependencies struct {
	Config       *config.Config
	Logger       *slog.Logger
	DB           *sql.DB
	AuthManager  *auth.Manager
	Wallets      *wallet.Service
	Shifts       shift.Store
	Reservations *reservation.Service
	Disputes     *dispute.Service
	Penalties    *penalty.Service
	Payouts      *payout.Service
	Verification *verification.Service
	Health       *health.Registry
	Webhooks     *processor.Dispatcher
}

// NewRouter builds the gin.Engine serving the external interface: the
// generic middleware stack first (recovery, security headers, CORS, gzip,
// request size limit, rate limit, metrics, request id, logging, timeout),
// then the versioned route groups.
func NewRouter(deps Dependencies) *gin.Engine {
	router := gin.New()

	limiter := ratelimit.New(ratelimit.DefaultConfig())

	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))
	router.Use(security.HeadersMiddleware())
	router.Use(security.CORSMiddleware([]string{"*"}))
	router.Use(gzipMiddleware())
	router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))
	router.Use(limiter.Middleware())
	router.Use(metrics.Middleware())
	router.Use(requestIDMiddleware(deps.Logger))
	router.Use(loggingMiddleware())
	router.Use(timeoutMiddleware(deps.Config.RequestTimeout))

	router.GET("/health", healthHandler(deps.Health))
	router.GET("/health/live", livenessHandler())
	router.GET("/health/ready", readinessHandler(deps.Health))
	router.GET("/metrics", metrics.Handler())

	walletHandler := NewWalletHandler(deps.Wallets)
	shiftHandler := NewShiftHandler(deps.Shifts)
	reservationHandler := NewReservationHandler(deps.Reservations)
	disputeHandler := NewDisputeHandler(deps.Disputes)
	penaltyHandler := NewPenaltyHandler(deps.Penalties)
	payoutHandler := NewPayoutHandler(deps.Payouts)
	verificationHandler := NewVerificationHandler(deps.Verification)
	authHandler := auth.NewHandler(deps.AuthManager)
	webhookHandler := NewWebhookHandler(deps.Webhooks, deps.Payouts)

	router.GET("/v1/auth/info", authHandler.Info)
	router.POST("/v1/webhooks/stripe", webhookHandler.StripeWebhook)

	v1 := router.Group("/v1")
	v1.Use(auth.Middleware(deps.AuthManager))
	{
		protected := v1.Group("")
		protected.Use(auth.RequireAuth(deps.AuthManager))
		{
			protected.GET("/auth/me", authHandler.GetCurrentUser)
			protected.GET("/auth/keys", authHandler.ListKeys)
			protected.POST("/auth/keys", authHandler.CreateKey)
			protected.DELETE("/auth/keys/:keyId", authHandler.RevokeKey)
			protected.POST("/auth/keys/:keyId/regenerate", authHandler.RegenerateKey)

			protected.GET("/wallet", walletHandler.GetMyWallet)
			protected.PUT("/wallet/auto-topup", walletHandler.ConfigureAutoTopup)
			protected.POST("/wallet/topup", walletHandler.Topup)
			protected.GET("/wallet/transactions", walletHandler.ListTransactions)
			protected.GET("/wallet/holds/:holdId", walletHandler.GetHold)
			protected.POST("/wallet/transactions/:transactionId/reverse", auth.RequireAdmin(), walletHandler.Reverse)

			protected.POST("/shifts", shiftHandler.PostShift)
			protected.GET("/shifts/:shiftId", shiftHandler.GetShift)
			protected.POST("/shifts/:shiftId/applications", shiftHandler.Apply)
			protected.GET("/shifts/:shiftId/applications", shiftHandler.ListAcceptedApplications)
			protected.POST("/applications/:applicationId/accept", shiftHandler.AcceptApplication)
			protected.POST("/applications/:applicationId/reject", shiftHandler.RejectApplication)

			protected.POST("/shifts/:shiftId/reserve", reservationHandler.ReserveFunds)
			protected.POST("/shifts/:shiftId/schedule-days", reservationHandler.ScheduleSubsequentDays)
			protected.POST("/shifts/:shiftId/settle", reservationHandler.SettleShift)
			protected.POST("/shifts/:shiftId/cancel", reservationHandler.CancelShift)

			protected.POST("/shifts/:shiftId/clock-in", verificationHandler.ClockIn)
			protected.POST("/shifts/:shiftId/clock-out", verificationHandler.ClockOut)
			protected.POST("/shifts/:shiftId/manager-approve", verificationHandler.ManagerApprove)
			protected.POST("/shifts/:shiftId/manager-reject", verificationHandler.ManagerReject)

			protected.POST("/disputes", disputeHandler.CreateDispute)
			protected.GET("/disputes/:disputeId", disputeHandler.GetDispute)
			protected.POST("/disputes/:disputeId/evidence", disputeHandler.SubmitEvidence)
			protected.POST("/disputes/:disputeId/resolve", auth.RequireAdmin(), disputeHandler.ResolveDispute)

			protected.GET("/penalties/:penaltyId", penaltyHandler.GetPenalty)
			protected.GET("/strikes", penaltyHandler.ListMyStrikes)
			protected.POST("/appeals", penaltyHandler.SubmitAppeal)
			protected.GET("/appeals/:appealId", penaltyHandler.GetAppeal)
			protected.POST("/appeals/:appealId/review", auth.RequireAdmin(), penaltyHandler.ReviewAppeal)
			protected.POST("/appeals/:appealId/withdraw", penaltyHandler.WithdrawAppeal)

			protected.POST("/payouts", payoutHandler.RequestInstantPayout)
			protected.GET("/payouts/:payoutId", payoutHandler.GetPayout)
			protected.GET("/payouts", payoutHandler.ListMyPayouts)
		}
	}

	return router
}

func requestIDMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, logger)
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		logger := logging.L(c.Request.Context())

		switch {
		case status >= 500:
			logger.Error("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds(), "client_ip", c.ClientIP())
		case status >= 400:
			logger.Warn("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds())
		default:
			logger.Info("request completed", "method", c.Request.Method, "path", path, "status", status, "latency_ms", latency.Milliseconds())
		}
	}
}

func timeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Upgrade") == "websocket" {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

type gzipWriter struct {
	gin.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipWriter) Write(data []byte) (int, error) {
	return w.writer.Write(data)
}

func (w *gzipWriter) WriteString(s string) (int, error) {
	return w.writer.Write([]byte(s))
}

func gzipMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") || c.GetHeader("Upgrade") == "websocket" {
			c.Next()
			return
		}
		gz, err := gzip.NewWriterLevel(c.Writer, gzip.DefaultCompression)
		if err != nil {
			c.Next()
			return
		}
		c.Header("Content-Encoding", "gzip")
		c.Header("Vary", "Accept-Encoding")
		c.Writer = &gzipWriter{ResponseWriter: c.Writer, writer: gz}
		defer func() {
			if err := gz.Close(); err != nil {
				_ = c.Error(err)
			}
			c.Header("Content-Length", "")
		}()
		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return time.Now().UTC().Format("20060102150405.000000000")
	}
	return hex.EncodeToString(b)
}

func healthHandler(reg *health.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy, statuses := reg.CheckAll(c.Request.Context())
		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"healthy": healthy, "checks": statuses, "timestamp": time.Now().UTC()})
	}
}

func livenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "alive"})
	}
}

func readinessHandler(reg *health.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
		defer cancel()
		healthy, statuses := reg.CheckAll(ctx)
		status := http.StatusOK
		state := "ready"
		if !healthy {
			status = http.StatusServiceUnavailable
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": statuses})
	}
}
