package apperror

import (
	"errors"
	"fmt"
	"testing"
)

// TABLE-DRIVEN TESTS:
// Each case checks that errors.Is() identifies the kind through the chain.
func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		target    error
		wantMatch bool
	}{
		{
			name:      "NotFound wraps ErrNotFound",
			err:       NotFound("chart", "abc123"),
			target:    ErrNotFound,
			wantMatch: true,
		},
		{
			name:      "ValidationFailed wraps ErrValidation",
			err:       ValidationFailed("request", "request is required"),
			target:    ErrValidation,
			wantMatch: true,
		},
		{
			name:      "DataIntegrity wraps ErrDataIntegrity",
			err:       DataIntegrity("malformed mapping", nil),
			target:    ErrDataIntegrity,
			wantMatch: true,
		},
		{
			name:      "DuplicateReport wraps ErrDuplicateReport",
			err:       DuplicateReport("2025-05-01"),
			target:    ErrDuplicateReport,
			wantMatch: true,
		},
		{
			name:      "Configuration wraps ErrConfiguration",
			err:       Configuration("GEMINI_API_KEY", "GEMINI_API_KEY not found"),
			target:    ErrConfiguration,
			wantMatch: true,
		},
		{
			name:      "Generation wraps ErrGeneration",
			err:       Generation("Gemini", errors.New("quota exceeded")),
			target:    ErrGeneration,
			wantMatch: true,
		},
		{
			name:      "Execution wraps ErrExecution",
			err:       Execution(`column "foo" does not exist`),
			target:    ErrExecution,
			wantMatch: true,
		},
		{
			name:      "wrapped with fmt.Errorf still matches",
			err:       fmt.Errorf("service: uploading: %w", DuplicateReport("2025-05-01")),
			target:    ErrDuplicateReport,
			wantMatch: true,
		},
		{
			name:      "NotFound does NOT match ErrValidation",
			err:       NotFound("chart", "abc123"),
			target:    ErrValidation,
			wantMatch: false,
		},
		{
			name:      "Execution does NOT match ErrGeneration",
			err:       Execution("boom"),
			target:    ErrGeneration,
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errors.Is(tt.err, tt.target)
			if got != tt.wantMatch {
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
		{
			name:        "NotFound message includes resource and id",
			err:         NotFound("chart", "abc123"),
			wantMessage: "chart not found with id abc123",
		},
		{
			name:        "ValidationFailed uses custom message",
			err:         ValidationFailed("request", "request is required"),
			wantMessage: "request is required",
		},
		{
			name:        "DuplicateReport names the date",
			err:         DuplicateReport("2025-05-01"),
			wantMessage: "a report for the date 2025-05-01 has already been uploaded",
		},
		{
			name:        "Generation includes backend and cause",
			err:         Generation("OpenAI", errors.New("HTTP 429")),
			wantMessage: "an error occurred while calling the OpenAI API: HTTP 429",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMessage {
				t.Errorf("Error() = %q, want %q", got, tt.wantMessage)
			}
		})
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Generation("Gemini", cause)

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true")
	}
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("errors.Is(err, ErrGeneration) = false, want true")
	}
}

func TestErrorsAsExtractsMessage(t *testing.T) {
	err := fmt.Errorf("outer: %w", ValidationFailed("feedback", "feedback is required"))

	var appErr *AppError
	if !errors.As(err, &appErr) {
		t.Fatal("errors.As() = false, want true")
	}
	if appErr.Field != "feedback" {
		t.Errorf("Field = %q, want %q", appErr.Field, "feedback")
	}
}
