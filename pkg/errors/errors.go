package errors

import (
	"errors"
	"fmt"
	"net/http"

	"relaycast/internal/core/domain"
)

// ErrorCode mirrors the wire-level reason codes carried in acknowledgments
// and HTTP error bodies.
type ErrorCode string

const (
	ErrCodeAlreadyExists       ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeInvalidName         ErrorCode = "INVALID_NAME"
	ErrCodeInvalidPassword     ErrorCode = "INVALID_PASSWORD"
	ErrCodeAuthRequired        ErrorCode = "AUTH_REQUIRED"
	ErrCodeLocked              ErrorCode = "LOCKED"
	ErrCodeVipUsernameRequired ErrorCode = "VIP_USERNAME_REQUIRED"
	ErrCodeVipCodeRequired     ErrorCode = "VIP_CODE_REQUIRED"
	ErrCodeInvalidOrExhausted  ErrorCode = "INVALID_OR_EXHAUSTED"
	ErrCodeNoCapacity          ErrorCode = "NO_CAPACITY"
	ErrCodeCodeSpaceExhausted  ErrorCode = "CODE_SPACE_EXHAUSTED"
	ErrCodeInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a reason code and HTTP status alongside the cause.
type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func Wrap(err error, code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus, Cause: err}
}

func NewInvalidInput(message string) *AppError {
	return New(ErrCodeInvalidInput, message, http.StatusBadRequest)
}

func NewInternal(message string) *AppError {
	return New(ErrCodeInternal, message, http.StatusInternalServerError)
}

// httpStatusByCode maps domain reason codes to HTTP statuses for the
// management API.
var httpStatusByCode = map[ErrorCode]int{
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeInvalidName:         http.StatusBadRequest,
	ErrCodeInvalidPassword:     http.StatusUnauthorized,
	ErrCodeAuthRequired:        http.StatusUnauthorized,
	ErrCodeLocked:              http.StatusForbidden,
	ErrCodeVipUsernameRequired: http.StatusForbidden,
	ErrCodeVipCodeRequired:     http.StatusForbidden,
	ErrCodeInvalidOrExhausted:  http.StatusForbidden,
	ErrCodeNoCapacity:          http.StatusConflict,
	ErrCodeCodeSpaceExhausted:  http.StatusInternalServerError,
}

// FromDomain converts a domain error into an AppError for the HTTP surface.
func FromDomain(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	code := ErrorCode(domain.ReasonCode(err))
	status, ok := httpStatusByCode[code]
	if !ok {
		return Wrap(err, ErrCodeInternal, "internal error", http.StatusInternalServerError)
	}
	return Wrap(err, code, err.Error(), status)
}
