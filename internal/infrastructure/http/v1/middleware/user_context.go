package middleware

import (
	"github.com/gin-gonic/gin"

	"papyrus/internal/core/principal"
)

// UserContext propagates the authenticated user ID to the persistence layer.
//
// Must run AFTER Auth, which sets "user_id" in gin context. Audit stamping
// resolves the acting principal from the request context this sets up.
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, exists := c.Get("user_id"); exists {
			if uid, ok := userID.(int64); ok && uid != 0 {
				ctx := principal.WithUserID(c.Request.Context(), uid)
				c.Request = c.Request.WithContext(ctx)
			}
		}
		c.Next()
	}
}
