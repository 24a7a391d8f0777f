package errors

import (
	"fmt"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Общие ошибки
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeRateLimited  ErrorCode = "RATE_LIMITED"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	// Кошелёк и платежи
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeInvalidSignature    ErrorCode = "INVALID_SIGNATURE"
	ErrCodeInvalidAddress      ErrorCode = "INVALID_ADDRESS"
	ErrCodePaymentFailed       ErrorCode = "PAYMENT_FAILED"
	ErrCodePayoutsNotConf      ErrorCode = "PAYOUTS_NOT_CONFIGURED"
	ErrCodeTransientUpstream   ErrorCode = "TRANSIENT_UPSTREAM"

	// Турниры и попытки
	ErrCodeDuplicateEntry   ErrorCode = "DUPLICATE_ENTRY"
	ErrCodeMaxAttempts      ErrorCode = "MAX_ATTEMPTS"
	ErrCodeNoEntry          ErrorCode = "NO_ENTRY"
	ErrCodeInvalidAttempt   ErrorCode = "INVALID_ATTEMPT"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNoTournament     ErrorCode = "NO_TOURNAMENT"
)

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// IsOperational reports whether the error is safe to surface verbatim to the
// client. Anything else is replaced with a generic message plus the request's
// correlation id.
func (e *AppError) IsOperational() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeTransientUpstream:
		return false
	}
	return true
}

func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal
}

func (e *AppError) IsUnauthorized() bool {
	return e.Code == ErrCodeUnauthorized || e.Code == ErrCodeForbidden
}

// WithDetail добавляет детальную информацию к ошибке
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID добавляет ID запроса к ошибке
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// Wrapf оборачивает существующую ошибку с форматированием
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("Validation failed for field '%s': %s", field, reason)).
		WithDetail("field", field)
}

func NewNotFoundError(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, reason)
}

func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, reason)
}

func NewConflictError(resource, reason string) *AppError {
	return New(ErrCodeConflict, fmt.Sprintf("Conflict with %s: %s", resource, reason))
}

func NewInsufficientBalanceError(balanceSats, requiredSats int64) *AppError {
	return New(ErrCodeInsufficientBalance, "Insufficient balance").
		WithDetail("balance_sats", balanceSats).
		WithDetail("required_sats", requiredSats)
}

func NewTransientError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTransientUpstream, fmt.Sprintf("Upstream operation failed: %s", operation))
}

func NewInternalError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeInternal, fmt.Sprintf("Internal operation failed: %s", operation))
}

// AsAppError приводит ошибку к AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err != nil {
		appErr, _ = err.(*AppError)
	}
	return appErr, appErr != nil
}
