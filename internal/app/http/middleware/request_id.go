package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"saas-billing/internal/api/apierror"
)

const RequestIDHeader = "X-Request-ID"

// RequestID reuses a well-formed inbound X-Request-ID or assigns a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(apierror.RequestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}
