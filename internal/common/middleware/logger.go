package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lightning-tournament-backend/internal/common/logger"
)

const maxLoggedUserAgent = 100

// RequestLogger записывает каждый HTTP запрос. Security-relevant responses
// (401/403/429/5xx) are logged at warn or error without user identifiers.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		ua := c.Request.UserAgent()
		if len(ua) > maxLoggedUserAgent {
			ua = ua[:maxLoggedUserAgent]
		}

		evt := logger.Info()
		switch {
		case status >= 500:
			evt = logger.Error()
		case status == 401 || status == 403 || status == 429:
			evt = logger.Warn()
		}
		evt.
			Str("request_id", GetRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("ua", ua).
			Msg("HTTP request")
	}
}
