package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/features/session"
)

// SessionResolver resolves a bearer token to a live session, extending its TTL.
type SessionResolver interface {
	Get(ctx context.Context, token string) (*session.Session, error)
}

// AdminChecker reports whether a user holds the admin flag.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// RequireAuth проверяет bearer токен и кладёт user_id в контекст
func RequireAuth(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			Abort(c, apperrors.NewUnauthorizedError("Authentication required"))
			return
		}

		sess, err := sessions.Get(c.Request.Context(), token)
		if err != nil {
			Abort(c, err)
			return
		}

		c.Set("user_id", sess.UserID)
		c.Set("session_token", token)
		c.Next()
	}
}

// RequireAdmin допускает только администраторов. Must run after RequireAuth.
func RequireAdmin(users AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			Abort(c, apperrors.NewUnauthorizedError("Authentication required"))
			return
		}
		isAdmin, err := users.IsAdmin(c.Request.Context(), userID)
		if err != nil {
			Abort(c, err)
			return
		}
		if !isAdmin {
			Abort(c, apperrors.NewForbiddenError("Admin access required"))
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetUserID получает ID пользователя из контекста
func GetUserID(c *gin.Context) string {
	if v, exists := c.Get("user_id"); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetSessionToken returns the bearer token the current request authenticated with.
func GetSessionToken(c *gin.Context) string {
	if v, exists := c.Get("session_token"); exists {
		if t, ok := v.(string); ok {
			return t
		}
	}
	return ""
}
