package apperror

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	cause := errors.New("provider returned 429")

	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{"NotFound wraps ErrNotFound", NotFound("summary"), ErrNotFound, true},
		{"ValidationFailed wraps ErrValidation", ValidationFailed("text", "Text is required"), ErrValidation, true},
		{"Conflict wraps ErrConflict", Conflict("Email already in use"), ErrConflict, true},
		{"InvalidCredentials wraps ErrInvalidCredentials", InvalidCredentials(), ErrInvalidCredentials, true},
		{"Unsupported wraps ErrUnsupported", UnsupportedFormat("image/png"), ErrUnsupported, true},
		{"Upstream wraps ErrUpstream", Upstream("Failed to generate summary", cause), ErrUpstream, true},
		{"Upstream exposes its cause", Upstream("Failed to generate summary", cause), cause, true},
		{"wrapped with fmt.Errorf still matches", fmt.Errorf("service: %w", NotFound("user")), ErrNotFound, true},
		{"NotFound does NOT match ErrValidation", NotFound("summary"), ErrValidation, false},
		{"Conflict does NOT match ErrInvalidCredentials", Conflict("Email already in use"), ErrInvalidCredentials, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.wantMatch {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.wantMatch)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	tests := []struct {
		name        string
		err         *AppError
		wantMessage string
	}{
		{"NotFound names the resource", NotFound("Summary"), "Summary not found"},
		{"ValidationFailed uses custom message", ValidationFailed("email", "Missing fields"), "Missing fields"},
		{"InvalidCredentials is uniform", InvalidCredentials(), "Invalid credentials"},
		{"UnsupportedFormat quotes the media type", UnsupportedFormat("image/png"), `Unsupported file type "image/png"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Message; got != tt.wantMessage {
				t.Errorf("Message = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUpstreamCarriesDetails(t *testing.T) {
	err := Upstream("Failed to generate summary", errors.New("model not found"))

	if err.Details != "model not found" {
		t.Errorf("Details = %q, want %q", err.Details, "model not found")
	}
	if err.Error() != "Failed to generate summary: model not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestOnlyUpstreamCarriesDetails(t *testing.T) {
	cause := errors.New("token is expired")
	err := Unauthorized("Invalid token", cause)

	if err.Details != "" {
		t.Errorf("Unauthorized should not expose details, got %q", err.Details)
	}
	if !errors.Is(err, cause) {
		t.Error("Unauthorized should still unwrap to its cause for logging")
	}
}

func TestErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ExtractionFailed("PDF", errors.New("malformed xref")))

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatal("errors.As should find the *AppError in the chain")
	}
	if appErr.Field != "file" {
		t.Errorf("Field = %q, want %q", appErr.Field, "file")
	}
}
