package middleware

import (
	"github.com/gin-gonic/gin"

	"mise/pkg/logger"
)

// UserContext enriches the request logger with the authenticated user.
//
// This middleware must run AFTER Auth middleware, which sets "user_id" in
// gin context and the user on the request context. Domain code reads the
// actor via appctx.GetUserID(ctx).
func UserContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID := c.GetString("user_id"); userID != "" {
			ctx := c.Request.Context()
			ctx = logger.WithLogger(ctx, logger.FromContext(ctx).With("user_id", userID))
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}
}
