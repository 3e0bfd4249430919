package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
)

// AccessLog logs one line per request. The query string is left out since
// it may carry a session token.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infof("%s %s %d %s ip=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start).Round(time.Microsecond), c.ClientIP())
	}
}
