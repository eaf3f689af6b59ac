package middleware

import (
	"context"
	"time"

	"livegate/pkg/logger"
	"livegate/pkg/utils"

	"github.com/gin-gonic/gin"
)

// RequestIDMiddleware assigns every request an id, echoed in the response
// header and carried in the request context for log correlation.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = utils.GenerateRequestID()
		}

		c.Header("X-Request-ID", requestID)
		ctx := context.WithValue(c.Request.Context(), "request_id", requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// RequestLoggingMiddleware logs each request with the context fields the
// other middleware attached (request id, identity).
func RequestLoggingMiddleware(contextLogger *logger.ContextLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		contextLogger.LogRequest(
			c.Request.Context(),
			c.Request.Method,
			c.FullPath(),
			c.Writer.Status(),
			time.Since(start).Milliseconds(),
		)
	}
}
