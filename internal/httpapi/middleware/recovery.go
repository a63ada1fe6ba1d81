package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/npcforge/npcforge/internal/common"
	"github.com/npcforge/npcforge/internal/logger"
)

// Recovery converts panics into the standard 500 envelope instead of gin's
// plain-text response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", "path", c.Request.URL.Path, "panic", r)
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
