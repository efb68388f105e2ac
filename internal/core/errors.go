// AngelaMos | 2026
// errors.go

package core

import (
	"errors"
	"net/http"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/config"
)

var (
	ErrValidation      = errors.New("validation failed")
	ErrAuthentication  = errors.New("authentication failed")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrAccountInactive = errors.New("account is deactivated")
	ErrNotFound        = errors.New("not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrTokenInvalid    = errors.New("token invalid")
	ErrTokenExpired    = errors.New("token expired")
	ErrConfiguration   = config.ErrInvalid
)

// AppError carries the HTTP status and machine readable code a failure is
// rendered with. The wrapped error is never sent to the client.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
}

func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

func ValidationError(message string) *AppError {
	return NewAppError(ErrValidation, message, http.StatusBadRequest, "VALIDATION_ERROR")
}

func UnauthorizedError(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError(ErrUnauthorized, message, http.StatusUnauthorized, "UNAUTHORIZED")
}

func InvalidCredentialsError(message string) *AppError {
	return NewAppError(
		ErrAuthentication,
		message,
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
}

func ForbiddenError(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return NewAppError(ErrForbidden, message, http.StatusForbidden, "FORBIDDEN")
}

func AccountInactiveError() *AppError {
	return NewAppError(
		ErrAccountInactive,
		"account is deactivated, contact support",
		http.StatusForbidden,
		"ACCOUNT_INACTIVE",
	)
}

func NotFoundError(resource string) *AppError {
	return NewAppError(ErrNotFound, resource+" not found", http.StatusNotFound, "NOT_FOUND")
}

func DuplicateError(field string) *AppError {
	return NewAppError(ErrDuplicateKey, field+" already in use", http.StatusConflict, "DUPLICATE")
}

func TokenExpiredError() *AppError {
	return NewAppError(ErrTokenExpired, "token has expired", http.StatusUnauthorized, "TOKEN_EXPIRED")
}

func TokenInvalidError() *AppError {
	return NewAppError(ErrTokenInvalid, "token is invalid", http.StatusUnauthorized, "TOKEN_INVALID")
}

func UpstreamError() *AppError {
	return NewAppError(nil, "upstream service unavailable", http.StatusBadGateway, "UPSTREAM_ERROR")
}

func InternalError() *AppError {
	return NewAppError(nil, "internal server error", http.StatusInternalServerError, "INTERNAL_ERROR")
}
