// Copyright (c) 2026 VolStory. All rights reserved.
// Author: dev@volstory.app

/*
Package apperr defines the centralized error handling framework for VolStory.

It provides a rich error type that bridges the gap between low-level
transport/provider errors and the flow-level decisions built on top of them.

Architecture:

  - AppError: A struct containing machine-readable ErrorCode and user-friendly messages.
  - Taxonomy: Transport, DomainAuth, Provider, Validation, SessionExpired.
  - Mapping: Explicit mapping from AppError to standard HTTP Status Codes.

Every error that leaves the API client, a provider adapter, or a flow
controller should be wrapped as an [AppError] so callers can branch on Code
and HTTPStatus instead of string matching.
*/
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the canonical error type for the VolStory SDK.
//
// It carries an HTTP status code (zero when no server responded), a
// machine-readable code, a user-safe message, and an optional slice of
// field-level validation errors.
//
// # Security
//
// The Cause field is for logging only and is never surfaced to the user
// to avoid leaking internal implementation details.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "TRANSPORT_ERROR").
	Code string `json:"code"`
	// Message is a human-readable description safe to show the user.
	Message string `json:"error"`
	// HTTPStatus is the HTTP status of the failing response, or 0 when the
	// network never answered (timeout, DNS, refused connection).
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, used for logging only.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the user-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Client-Side Taxonomy

// Transport creates a connectivity error: the network never produced an
// HTTP response (timeout, DNS failure, refused connection). Retryable by
// the user; never terminates the session.
func Transport(cause error) *AppError {
	return &AppError{
		Code:    "TRANSPORT_ERROR",
		Message: "Network error. Please check your connection and try again.",
		Cause:   cause,
	}
}

// DomainAuth creates an error for a 401 received from an
// unauthenticated-semantics endpoint, where 401 means "no such account" or
// "bad credential" rather than "token expired". Never triggers a refresh.
func DomainAuth(msg string) *AppError {
	return &AppError{
		Code:       "DOMAIN_AUTH",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// SessionExpired creates the error that forces a logout and a redirect to
// the login screen: the refresh token is missing or was rejected.
func SessionExpired(msg string) *AppError {
	return &AppError{
		Code:       "SESSION_EXPIRED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Provider creates an error carrying an identity-provider error code
// (e.g. "credential-already-in-use"). Flow controllers branch on the code.
func Provider(code, msg string) *AppError {
	return &AppError{
		Code:    code,
		Message: msg,
	}
}

// # Server-Style Errors (shared with the dev stub)

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Story") // Returns "Story not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Unauthorized creates a 401 [AppError].
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError].
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       "CONFLICT",
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       "VALIDATION_ERROR",
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// RateLimited creates a 429 [AppError].
func RateLimited(retryAfterSeconds int) *AppError {
	return &AppError{
		Code:       "RATE_LIMITED",
		Message:    fmt.Sprintf("Too many requests. Try again in %ds.", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// Internal creates a 500 [AppError] wrapping an unexpected error.
// The cause is stored for logging but is never shown to the user.
func Internal(cause error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// Status returns the HTTP status attached to err, or 0 when err is nil,
// not an [*AppError], or a connectivity failure that never got a response.
func Status(err error) int {
	ae := As(err)
	if ae == nil {
		return 0
	}
	return ae.HTTPStatus
}
