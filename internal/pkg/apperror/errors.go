package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound            ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized        ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden           ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest          ErrorCode = "BAD_REQUEST"
	ErrCodeValidation          ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidState        ErrorCode = "INVALID_STATE"
	ErrCodeInsufficientBalance ErrorCode = "INSUFFICIENT_BALANCE"
	ErrCodeRateLimited         ErrorCode = "RATE_LIMITED"
	ErrCodeOutOfBounds         ErrorCode = "OUT_OF_BOUNDS"
	ErrCodeGatewayError        ErrorCode = "GATEWAY_ERROR"
	ErrCodeSignatureInvalid    ErrorCode = "SIGNATURE_INVALID"
	ErrCodeConsistency         ErrorCode = "CONSISTENCY_ERROR"
	ErrCodeConflict            ErrorCode = "CONFLICT"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabaseError       ErrorCode = "DATABASE_ERROR"
)

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

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized, ErrCodeSignatureInvalid:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation, ErrCodeOutOfBounds:
		return http.StatusBadRequest
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeInsufficientBalance:
		return http.StatusUnprocessableEntity
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeGatewayError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Code extracts the error code, defaulting to internal for unknown errors.
func Code(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return Is(err, ErrCodeNotFound)
}

func IsInvalidState(err error) bool {
	return Is(err, ErrCodeInvalidState)
}

func IsRateLimited(err error) bool {
	return Is(err, ErrCodeRateLimited)
}

var (
	ErrGigNotFound         = New(ErrCodeNotFound, "gig not found")
	ErrApplicationNotFound = New(ErrCodeNotFound, "application not found")
	ErrEscrowNotFound      = New(ErrCodeNotFound, "escrow account not found")
	ErrPaymentNotFound     = New(ErrCodeNotFound, "payment not found")
	ErrWithdrawalNotFound  = New(ErrCodeNotFound, "withdrawal request not found")
	ErrUnauthorized        = New(ErrCodeUnauthorized, "authentication required")
	ErrForbidden           = New(ErrCodeForbidden, "not the resource owner")
	ErrInsufficientBalance = New(ErrCodeInsufficientBalance, "insufficient wallet balance")
	ErrRateLimited         = New(ErrCodeRateLimited, "too many requests, try again later")
)
