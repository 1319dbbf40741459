package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/ashwinyue/next-support/internal/handler"
	"github.com/ashwinyue/next-support/internal/logger"
)

// Recovery 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.FromContext(c.Request.Context(), nil).Error("panic recovered",
					"panic", r, "stack", string(debug.Stack()))
				if c.Writer.Written() {
					c.Abort()
					return
				}
				handler.Abort(c, fmt.Errorf("panic: %v", r))
			}
		}()
		c.Next()
	}
}
