package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/live/internal/models"
	"github.com/aura-webinar/live/pkg/response"
)

// RequireRole lets through only callers whose session role is one of roles.
// It must run after JWT.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	allowed := make(map[models.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		raw, ok := c.Get(ContextUserRole)
		if !ok {
			response.Unauthorized(c, "missing user context")
			c.Abort()
			return
		}
		role, _ := raw.(string)
		if !allowed[models.Role(role)] {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff is RequireRole for hosts and admins.
func RequireStaff() gin.HandlerFunc {
	return RequireRole(models.RoleAdmin, models.RoleHost)
}
