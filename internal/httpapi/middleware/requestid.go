package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/npcforge/npcforge/internal/common"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates an incoming request id or mints a new one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			if fresh, err := common.NewULID(); err == nil {
				id = fresh
			}
		}
		if id != "" {
			c.Header(RequestIDHeader, id)
			c.Set("request_id", id)
		}
		c.Next()
	}
}
