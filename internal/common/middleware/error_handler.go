package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	apperrors "lightning-tournament-backend/internal/common/errors"
	"lightning-tournament-backend/internal/common/logger"
)

// RequestID middleware для добавления ID запроса
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)
		c.Next()
	}
}

// Recovery converts panics into a redacted 500 with a correlation id.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		requestID := GetRequestID(c)
		logger.Error().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":      "An unexpected error occurred",
			"code":       string(apperrors.ErrCodeInternal),
			"request_id": requestID,
		})
	})
}

// Abort renders err as the {error, code} payload and stops the chain.
// Operational errors expose their message; everything else is redacted behind
// the correlation id and logged with full diagnostics.
func Abort(c *gin.Context, err error) {
	requestID := GetRequestID(c)

	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		appErr = apperrors.NewInternalError("handler", err)
	}
	appErr.WithRequestID(requestID)

	status := httpStatus(appErr.Code)
	logAppError(c, appErr, status)

	body := gin.H{"code": string(appErr.Code)}
	if appErr.IsOperational() {
		body["error"] = appErr.Message
		if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	} else {
		body["error"] = "An unexpected error occurred"
		body["request_id"] = requestID
	}
	c.AbortWithStatusJSON(status, body)
}

func httpStatus(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation, apperrors.ErrCodeBadRequest,
		apperrors.ErrCodeValidationFailed, apperrors.ErrCodeInvalidAddress,
		apperrors.ErrCodeInsufficientBalance, apperrors.ErrCodeMaxAttempts,
		apperrors.ErrCodeDuplicateEntry, apperrors.ErrCodeInvalidAttempt,
		apperrors.ErrCodeNoTournament:
		return http.StatusBadRequest
	case apperrors.ErrCodeUnauthorized, apperrors.ErrCodeInvalidSignature:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden, apperrors.ErrCodeNoEntry:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeTransientUpstream, apperrors.ErrCodePaymentFailed:
		return http.StatusBadGateway
	case apperrors.ErrCodePayoutsNotConf:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func logAppError(c *gin.Context, appErr *apperrors.AppError, status int) {
	evt := logger.Info()
	switch {
	case status >= 500:
		evt = logger.Error()
	case status == http.StatusUnauthorized || status == http.StatusForbidden || status == http.StatusTooManyRequests:
		evt = logger.Warn()
	}
	evt = evt.
		Str("request_id", appErr.RequestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Str("error_code", string(appErr.Code)).
		Time("timestamp", appErr.Timestamp)
	if appErr.Cause != nil {
		evt = evt.Err(appErr.Cause)
	}
	evt.Msg(appErr.Message)
}

// GetRequestID получает ID запроса из контекста
func GetRequestID(c *gin.Context) string {
	if requestID, exists := c.Get("request_id"); exists {
		if id, ok := requestID.(string); ok {
			return id
		}
	}
	return "unknown"
}
