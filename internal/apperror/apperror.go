package apperror

import (
	"errors"
	"net/http"
)

type Error struct {
	Code       string
	Message    string
	StatusCode int
	Internal   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Internal
}

var (
	// ErrNotFound deliberately covers both a missing record and a record
	// owned by another principal so existence is never leaked.
	ErrNotFound = &Error{
		Code:       "not_found",
		Message:    "Video not found or you do not have permission to access it",
		StatusCode: http.StatusNotFound,
	}

	ErrUnauthorized = &Error{
		Code:       "unauthorized",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrBadRequest = &Error{
		Code:       "bad_request",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	ErrStorageUnavailable = &Error{
		Code:       "storage_unavailable",
		Message:    "Could not create an upload URL at this time. Please try again later",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrQueueUnavailable = &Error{
		Code:       "queue_unavailable",
		Message:    "Failed to queue video for processing",
		StatusCode: http.StatusInternalServerError,
	}

	ErrPersistenceFailed = &Error{
		Code:       "persistence_failed",
		Message:    "An error occurred while preparing the video record",
		StatusCode: http.StatusInternalServerError,
	}

	ErrInternal = &Error{
		Code:       "internal_error",
		Message:    "An unexpected error occurred. Please try again later",
		StatusCode: http.StatusInternalServerError,
	}
)

func New(code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Wrap(err error, appErr *Error) *Error {
	return &Error{
		Code:       appErr.Code,
		Message:    appErr.Message,
		StatusCode: appErr.StatusCode,
		Internal:   err,
	}
}

func WrapWithMessage(err error, code, message string, statusCode int) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Internal:   err,
	}
}

func Is(err error, target *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

func StatusCode(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

func SafeMessage(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrInternal.Message
}

func Code(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal.Code
}
