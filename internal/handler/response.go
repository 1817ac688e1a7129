package handler

// RESPONSE HELPERS:
// These functions standardise how we send JSON responses and errors.
//
//   writeJSON(w, http.StatusOK, data)
//   writeError(w, err)
//
// CONSISTENT ERROR FORMAT:
// Every error response from the API has the same shape:
//   {"error": "Summary not found"}
//
// Only provider failures add a second field with the upstream diagnostic:
//   {"error": "Failed to generate summary", "details": "...quota exceeded..."}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/text-summarizer/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`             // Short, stable, human-readable message
	Details string `json:"details,omitempty"` // Upstream diagnostic, provider failures only
}

// MessageResponse is the body of endpoints that only confirm an action.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and status must be set BEFORE writing the body; once Encode
// writes, the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log it.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusFor maps an error kind to its HTTP status.
//
// ERROR MAPPING:
//
//	ErrValidation, ErrConflict, ErrInvalidCredentials → 400
//	ErrUnauthorized                                   → 401
//	ErrNotFound                                       → 404
//	ErrTooLarge                                       → 413
//	ErrUnsupported                                    → 415
//	ErrExtraction                                     → 422
//	ErrRateLimited                                    → 429
//	ErrConfig                                         → 500
//	ErrUpstream                                       → 502
//
// A taken email is a 400, not a 409: the web client only distinguishes
// "your input was rejected" from everything else.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, apperror.ErrConflict),
		errors.Is(err, apperror.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, apperror.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, apperror.ErrExtraction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, apperror.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps a domain error to the appropriate HTTP status code and sends it.
//
// errors.As finds the *AppError anywhere in the chain, so services are free
// to wrap with fmt.Errorf("...: %w", err).
//
// Anything that is not an *AppError is an internal failure: it is logged in
// full and the client only sees "Internal server error". Raw errors can carry
// SQL, file paths or secrets.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		slog.Error("internal error", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.Int("status", status), slog.String("error", err.Error()))
	}

	resp := ErrorResponse{Error: appErr.Message}
	if errors.Is(err, apperror.ErrUpstream) {
		resp.Details = appErr.Details
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON request body into dst.
// A malformed body is a validation error, not a 500.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.TooLarge("Request body too large")
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}
