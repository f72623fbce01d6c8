package middleware

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// WithTimeout bounds every store access made on behalf of the request. A
// store that exceeds the deadline fails the operation with a retryable error
// instead of hanging. Audit writes are exempt: they strip cancellation once
// started.
func WithTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
