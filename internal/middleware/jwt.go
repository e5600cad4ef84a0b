package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/live/pkg/response"
)

const (
	// ContextUserID is the key for the int64 user ID in gin context.
	ContextUserID = "user_id"
	// ContextUserRole is the key for the user role string in gin context.
	ContextUserRole = "user_role"
)

// SessionValidator validates a session token and returns who it belongs to.
type SessionValidator interface {
	ValidateSession(token string) (userID int64, role string, err error)
}

// BearerToken returns the token of an "Authorization: Bearer <token>" header, or "".
func BearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// JWT returns a middleware that validates the session token and sets user claims in context.
func JWT(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		token := BearerToken(c)
		if token == "" {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		userID, role, err := validator.ValidateSession(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, role)
		c.Next()
	}
}
