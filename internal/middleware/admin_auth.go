package middleware

import (
	"net/http"
	"strings"

	"github.com/FishIT-Mantle/fishit-sub000/internal/dto"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// AdminTokenValidator verifies admin tokens. *handlers.AdminAuthHandler
// satisfies it.
type AdminTokenValidator interface {
	ValidateAdminJWTToken(tokenString string) (*dto.AdminJWTClaims, error)
}

// AdminAuthMiddleware admin authentication middleware
type AdminAuthMiddleware struct {
	logger    *logrus.Logger
	validator AdminTokenValidator
}

// NewAdminAuthMiddleware creates the middleware
func NewAdminAuthMiddleware(logger *logrus.Logger, validator AdminTokenValidator) *AdminAuthMiddleware {
	return &AdminAuthMiddleware{
		logger:    logger,
		validator: validator,
	}
}

func (a *AdminAuthMiddleware) reject(c *gin.Context, status int, reason, message, code string) {
	a.logger.WithFields(logrus.Fields{
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	}).Warn("Admin auth failed - " + reason)

	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}

// RequireAdminAuth requires a valid admin Bearer token
func (a *AdminAuthMiddleware) RequireAdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			a.reject(c, http.StatusUnauthorized, "missing Authorization header", "Authentication required", "MISSING_AUTH_HEADER")
			return
		}

		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.reject(c, http.StatusUnauthorized, "invalid Authorization format", "Invalid authorization format, need Bearer token", "INVALID_AUTH_FORMAT")
			return
		}

		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if tokenString == "" {
			a.reject(c, http.StatusUnauthorized, "empty token", "Empty token", "EMPTY_TOKEN")
			return
		}

		claims, err := a.validator.ValidateAdminJWTToken(tokenString)
		if err != nil {
			a.logger.WithError(err).Debug("Admin token rejected")
			a.reject(c, http.StatusUnauthorized, "invalid token", "Invalid or expired token", "INVALID_TOKEN")
			return
		}

		if claims.Role != "admin" {
			a.reject(c, http.StatusForbidden, "insufficient permissions", "Insufficient permissions", "INSUFFICIENT_PERMISSIONS")
			return
		}

		c.Set("admin_username", claims.Username)
		c.Set("admin_role", claims.Role)

		c.Next()
	}
}
