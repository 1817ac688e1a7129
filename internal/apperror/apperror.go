// Package apperror defines the typed errors shared by every layer of the API.
//
// HOW IT FITS TOGETHER:
// Services and repositories return *AppError values that wrap one of the
// sentinel errors below. The HTTP layer (handler.writeError) walks the error
// chain with errors.Is to pick a status code, and uses AppError.Message as the
// short, stable text sent to the client.
//
// Only UpstreamError carries Details (the provider's diagnostic). Everything
// else keeps its internals in the logs.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("conflict")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrTooLarge           = errors.New("payload too large")
	ErrUnsupported        = errors.New("unsupported format")
	ErrExtraction         = errors.New("extraction failed")
	ErrRateLimited        = errors.New("rate limited")
	ErrConfig             = errors.New("configuration error")
	ErrUpstream           = errors.New("upstream error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Details string // Optional: diagnostic detail, only surfaced for upstream failures
	Cause   error  // Optional: underlying error, logged but never sent to clients
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: resource + " not found",
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict is used for uniqueness violations, e.g. a taken email address.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// InvalidCredentials carries no field: login failures never say
// whether the email or the password was wrong.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid credentials",
	}
}

func Unauthorized(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
		Cause:   cause,
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:     ErrTooLarge,
		Message: message,
	}
}

func UnsupportedFormat(mediaType string) *AppError {
	return &AppError{
		Err:     ErrUnsupported,
		Message: fmt.Sprintf("Unsupported file type %q", mediaType),
		Field:   "file",
	}
}

func ExtractionFailed(format string, cause error) *AppError {
	return &AppError{
		Err:     ErrExtraction,
		Message: fmt.Sprintf("Could not read %s document", format),
		Field:   "file",
		Cause:   cause,
	}
}

func RateLimited() *AppError {
	return &AppError{
		Err:     ErrRateLimited,
		Message: "Too many requests, please slow down",
	}
}

func Config(message string) *AppError {
	return &AppError{
		Err:     ErrConfig,
		Message: message,
	}
}

// Upstream wraps a failure of an external provider. details is surfaced to
// the client so provider-side problems (quota, model name) can be debugged.
func Upstream(message string, cause error) *AppError {
	e := &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}
