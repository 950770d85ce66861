package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/aura-webinar/adstore/pkg/response"
)

// RequireRole lets a request change ads only when the role JWT stored on the
// context is one of roles. Mount it after JWT.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	need := strings.Join(roles, " or ")
	return func(c *gin.Context) {
		role := c.GetString(ContextUserRole)
		if role == "" {
			response.Unauthorized(c, "sign in to manage ads")
			c.Abort()
			return
		}
		if _, ok := allowed[role]; !ok {
			response.Forbidden(c, "managing ads requires role "+need)
			c.Abort()
			return
		}
		c.Next()
	}
}
