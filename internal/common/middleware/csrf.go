package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/session"
)

// CSRF enforces the double-submit cookie check on mutating requests. Safe
// methods pass through; the webhook route is mounted outside this middleware
// because the caller is LNbits, not a browser.
func CSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		cookie, err := c.Cookie(session.CSRFCookieName)
		header := c.GetHeader(session.CSRFHeaderName)
		if err != nil || cookie == "" || header == "" ||
			subtle.ConstantTimeCompare([]byte(cookie), []byte(header)) != 1 {
			Abort(c, apperrors.NewForbiddenError("CSRF token mismatch"))
			return
		}
		c.Next()
	}
}
