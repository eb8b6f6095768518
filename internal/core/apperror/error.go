// Package apperror provides structured error handling following RFC 7807 Problem Details.
// All business errors must use AppError for consistent API responses.
package apperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Error codes
const (
	// Infrastructure errors (5xx)
	CodeInternal       = "INTERNAL_ERROR"
	CodeStorageFailure = "STORAGE_FAILURE"
	CodeBusy           = "BUSY"

	// Validation errors (400)
	CodeValidation = "VALIDATION_ERROR"

	// Business rule violations (422)
	CodeCreditLimitExceeded = "CREDIT_LIMIT_EXCEEDED"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeExceedsRemaining    = "EXCEEDS_REMAINING"
	CodeAccountInactive     = "ACCOUNT_INACTIVE"

	// Authorization errors (401, 403)
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeScopeAccessDenied = "SCOPE_ACCESS_DENIED"

	// Not found (404)
	CodeNotFound = "NOT_FOUND"

	// Conflict (409)
	CodeConflict    = "CONFLICT"
	CodeIdempotency = "IDEMPOTENCY_CONFLICT"
)

// AppError is the standard error type for the platform.
// It implements error interface and provides structured details for API responses.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (balances, quantities, etc.)
	Details map[string]any `json:"details,omitempty"`

	// Retryable tells the caller the same request may succeed later
	Retryable bool `json:"retryable,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidAmount is returned for non-positive money amounts.
func NewInvalidAmount(amount string) *AppError {
	return NewValidation("amount must be greater than zero").WithDetail("amount", amount)
}

// NewInvalidQuantity is returned for non-positive quantities.
func NewInvalidQuantity(qty string) *AppError {
	return NewValidation("quantity must be greater than zero").WithDetail("quantity", qty)
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewCreditLimitExceeded reports the balance that a credit would have produced.
func NewCreditLimitExceeded(current, limit, attempted string) *AppError {
	return &AppError{
		Code:       CodeCreditLimitExceeded,
		Message:    "Credit limit exceeded",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"current":   current,
			"limit":     limit,
			"attempted": attempted,
		},
	}
}

// NewInsufficientBalance creates a balance shortage error
func NewInsufficientBalance(current, requested string) *AppError {
	return &AppError{
		Code:       CodeInsufficientBalance,
		Message:    "Insufficient balance",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"current":   current,
			"requested": requested,
		},
	}
}

// NewExceedsRemaining is returned when a restock asks for more than is left on the line.
func NewExceedsRemaining(remaining, requested string) *AppError {
	return &AppError{
		Code:       CodeExceedsRemaining,
		Message:    "Requested quantity exceeds remaining quantity",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details: map[string]any{
			"remaining": remaining,
			"requested": requested,
		},
	}
}

// NewAccountInactive creates error for credits against a closed account
func NewAccountInactive(accountID any) *AppError {
	return &AppError{
		Code:       CodeAccountInactive,
		Message:    "Account is inactive",
		HTTPStatus: http.StatusUnprocessableEntity,
		Details:    map[string]any{"account_id": accountID},
	}
}

// NewScopeAccessDenied creates an authorization error (403)
func NewScopeAccessDenied(message string) *AppError {
	return &AppError{
		Code:       CodeScopeAccessDenied,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewBusy signals lock or deadline contention. The caller may retry.
func NewBusy(err error) *AppError {
	return &AppError{
		Code:       CodeBusy,
		Message:    "Resource is busy, please retry",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
		Err:        err,
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewVersionConflict creates an optimistic locking error
func NewVersionConflict(entity string, id any, expected, actual int) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    "Record was modified by another user. Please refresh and try again.",
		HTTPStatus: http.StatusConflict,
		Details: map[string]any{
			"entity":   entity,
			"id":       id,
			"expected": expected,
			"actual":   actual,
		},
	}
}

// NewIdempotencyConflict creates error when operation is already in progress
func NewIdempotencyConflict(key string) *AppError {
	return &AppError{
		Code:       CodeIdempotency,
		Message:    "Operation already in progress",
		HTTPStatus: http.StatusConflict,
		Retryable:  true,
		Details:    map[string]any{"idempotency_key": key},
	}
}

// NewStorageFailure wraps an unexpected persistence error.
func NewStorageFailure(err error) *AppError {
	return &AppError{
		Code:       CodeStorageFailure,
		Message:    "Storage failure",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewUnauthorized creates an authentication error (401)
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == code
	}
	return false
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	return HasCode(err, CodeNotFound)
}

// IsRetryable reports whether the failure is transient.
func IsRetryable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Retryable
	}
	return false
}

// Normalize maps an expired operation deadline to a retryable BUSY error.
// AppErrors and other errors pass through unchanged.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsAppError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewBusy(err)
	}
	return err
}
