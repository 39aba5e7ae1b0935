package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDKey is the context key carrying the request id.
const RequestIDKey = "request_id"

// RequestID propagates an incoming X-Request-ID or assigns a fresh one, and
// echoes it on the response.
func RequestID(c *gin.Context) {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Writer.Header().Set("X-Request-ID", requestID)
	c.Set(RequestIDKey, requestID)
	c.Next()
}
