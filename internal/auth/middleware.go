package auth

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyAPIKey is the key for storing the validated API key in gin context.
	ContextKeyAPIKey = "apiKey"
	// ContextKeyUserID is the key for storing the authenticated user's ID.
	ContextKeyUserID = "authUserID"
)

// Middleware extracts and validates the API key from the request. Sets
// apiKey/authUserID in context if valid; does not reject an unauthenticated
// request by itself (pair with RequireAuth for that).
func Middleware(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("Authorization")
		if apiKey == "" {
			apiKey = c.GetHeader("X-API-Key")
		}

		if apiKey != "" {
			key, err := m.ValidateKey(c.Request.Context(), apiKey)
			if err == nil {
				c.Set(ContextKeyAPIKey, key)
				c.Set(ContextKeyUserID, key.UserID)
			}
		}

		c.Next()
	}
}

// RequireAuth rejects requests without a valid API key.
func RequireAuth(m *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextKeyAPIKey); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required. Include 'Authorization: Bearer sk_...' header.",
			})
			return
		}
		c.Next()
	}
}

// RequireSelf requires auth AND that the authenticated user matches the
// user ID in the given URL param (an operation acting on "my own" resource —
// e.g. POST /users/:userId/topup).
func RequireSelf(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key, exists := c.Get(ContextKeyAPIKey)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "API key required.",
			})
			return
		}

		targetID, err := strconv.ParseInt(c.Param(paramName), 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_request",
				"message": "Invalid user ID.",
			})
			return
		}

		apiKey, ok := key.(*APIKey)
		if !ok || apiKey.UserID != targetID {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "You do not own this resource.",
			})
			return
		}

		c.Next()
	}
}

// GetAPIKey returns the validated API key from context, if authenticated.
func GetAPIKey(c *gin.Context) (*APIKey, bool) {
	key, exists := c.Get(ContextKeyAPIKey)
	if !exists {
		return nil, false
	}
	apiKey, ok := key.(*APIKey)
	if !ok {
		return nil, false
	}
	return apiKey, true
}

// GetAuthenticatedUserID returns the authenticated user's ID, or 0 if none.
func GetAuthenticatedUserID(c *gin.Context) int64 {
	v, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0
	}
	id, _ := v.(int64)
	return id
}

// IsAuthenticated checks if the request carries a valid API key.
func IsAuthenticated(c *gin.Context) bool {
	_, exists := c.Get(ContextKeyAPIKey)
	return exists
}

// RequireAdmin restricts access to admin endpoints. Checks the
// X-Admin-Secret header against the ADMIN_SECRET env var. Demo mode
// requires explicit DEMO_MODE=true to allow any authenticated request.
func RequireAdmin() gin.HandlerFunc {
	adminSecret := os.Getenv("ADMIN_SECRET")
	demoMode := os.Getenv("DEMO_MODE") == "true"
	if adminSecret == "" && !demoMode {
		slog.Error("ADMIN_SECRET is not set and DEMO_MODE is not enabled. Admin endpoints will reject all requests. Set ADMIN_SECRET for production or DEMO_MODE=true for development.")
	}
	return func(c *gin.Context) {
		if adminSecret == "" {
			if !demoMode {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
					"error":   "forbidden",
					"message": "Admin access is disabled. Set ADMIN_SECRET or enable DEMO_MODE.",
				})
				return
			}
			if _, exists := c.Get(ContextKeyAPIKey); !exists {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error":   "unauthorized",
					"message": "API key required.",
				})
				return
			}
			c.Next()
			return
		}

		provided := c.GetHeader("X-Admin-Secret")
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Admin access required.",
			})
			return
		}

		if subtle.ConstantTimeCompare([]byte(provided), []byte(adminSecret)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "forbidden",
				"message": "Invalid admin credentials.",
			})
			return
		}

		c.Next()
	}
}

// IsAdminRequest checks if the request carries a valid admin secret,
// constant-time to avoid leaking it through timing. Returns false if
// ADMIN_SECRET is not set (unless DEMO_MODE is enabled).
func IsAdminRequest(c *gin.Context) bool {
	provided := c.GetHeader("X-Admin-Secret")
	if provided == "" {
		return false
	}
	adminSecret := os.Getenv("ADMIN_SECRET")
	if adminSecret == "" {
		return os.Getenv("DEMO_MODE") == "true"
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(adminSecret)) == 1
}
