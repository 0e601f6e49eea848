// Package middleware provides the gin middleware for the HTTP surface:
// bearer-token authentication, admin gating, and store-backed rate limiting.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"vls-chat/internal/domain"
	"vls-chat/internal/service"
)

// IdentityKey is the gin context key holding the verified domain.Identity.
const IdentityKey = "identity"

// ErrMissingAuthHeader reports a request with no Authorization header.
var ErrMissingAuthHeader = errors.New("missing Authorization header")

// Auth returns a middleware that verifies the bearer token and stores the
// resulting identity in the request context.
func Auth(auth *service.AuthService) gin.HandlerFunc {
	if auth == nil {
		panic("AuthService cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, err := extractToken(c)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: could not extract token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header with a bearer token is required"})
			c.Abort()
			return
		}

		ident, err := auth.VerifyToken(tokenStr)
		if err != nil {
			logrus.WithError(err).Warn("Auth middleware: invalid token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(IdentityKey, ident)
		logrus.WithFields(logrus.Fields{"room": ident.Room, "user_id": ident.UserID}).
			Debug("Auth middleware: identity verified")
		c.Next()
	}
}

// RequireAdmin aborts with 403 unless the verified identity carries the admin
// role. Must run after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := Identity(c)
		if !ok || !ident.IsAdmin() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// Identity retrieves the verified identity set by Auth.
func Identity(c *gin.Context) (domain.Identity, bool) {
	v, ok := c.Get(IdentityKey)
	if !ok {
		return domain.Identity{}, false
	}
	ident, ok := v.(domain.Identity)
	return ident, ok
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("malformed Authorization header")
	}
	return parts[1], nil
}
