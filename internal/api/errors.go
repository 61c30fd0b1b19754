package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrCode is a typed error code enum for consistent remote-call error
// identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrUnauthorized       ErrCode = "UNAUTHORIZED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden ErrCode = "FORBIDDEN"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Attempt-specific ──────────────────────────────────────────────
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"
	ErrScheduleWindow   ErrCode = "SCHEDULE_WINDOW"

	// ─── Payloads ──────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Transport / server ────────────────────────────────────────────
	ErrUnavailable ErrCode = "UNAVAILABLE"
	ErrInternal    ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrUnauthorized:
		return "You are not signed in or your session has expired."
	case ErrForbidden:
		return "This attempt does not belong to you."
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrAlreadySubmitted:
		return "This assessment has already been submitted."
	case ErrScheduleWindow:
		return "The assessment cannot be started outside its scheduled window."
	case ErrValidation:
		return "The server response failed validation."
	case ErrInvalidPayload:
		return "The server response could not be decoded."
	case ErrUnavailable:
		return "The assessment service is unreachable."
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}

// Error is a classified remote-call failure.
type Error struct {
	Code      ErrCode
	Status    int
	Op        string
	RequestID string
	Detail    string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Op, e.Code, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Message returns the user-facing text for the error.
func (e *Error) Message() string {
	return GetMessage(e.Code)
}

// CodeOf extracts the ErrCode from err, or ErrInternal if err is not an
// api.Error.
func CodeOf(err error) ErrCode {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ErrInternal
}

// IsFatal reports whether the error belongs to the blocking class: the
// session must redirect away instead of staying alive.
func IsFatal(err error) bool {
	switch CodeOf(err) {
	case ErrNotFound, ErrUnauthorized, ErrForbidden, ErrAlreadySubmitted, ErrScheduleWindow:
		return true
	}
	return false
}

// classify maps an HTTP status to an ErrCode. Attempt-specific conflicts
// (409) mean the status already forbids re-entry.
func classify(status int) ErrCode {
	switch {
	case status == http.StatusUnauthorized:
		return ErrUnauthorized
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrAlreadySubmitted
	case status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status >= 500:
		return ErrInternal
	default:
		return ErrInvalidPayload
	}
}
