package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"lightning-tournament-backend/internal/common/cache"
	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
)

// RateLimit is a fixed-window counter on the cache. The subject is the
// authenticated user when present, otherwise the client IP, so pre-auth
// endpoints are limited per address and post-auth endpoints per account.
//
// A cache outage fails open.
func RateLimit(store cache.Cache, scope string, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := GetUserID(c)
		if subject == "" {
			subject = c.ClientIP()
		}

		windowStart := time.Now().Unix() / int64(window.Seconds())
		key := cache.RateKey(scope, subject, windowStart)

		count, err := store.Incr(c.Request.Context(), key, window)
		if err != nil {
			logger.Warn().Err(err).Str("scope", scope).Msg("Rate limiter cache unavailable")
			c.Next()
			return
		}
		if count > int64(limit) {
			Abort(c, apperrors.New(apperrors.ErrCodeRateLimited, "Too many requests"))
			return
		}
		c.Next()
	}
}
