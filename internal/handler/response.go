package handler

// RESPONSE HELPERS:
// Every handler answers with JSON through writeJSON, and every failure goes
// through writeError so the error body always has the same shape:
//
//	{"error": "duplicate_report", "message": "a report for the date 2025-05-01 has already been uploaded"}

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/usage-dashboard/internal/apperror"
)

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input or setting at fault, when known
}

// writeJSON sends a JSON response with the given status code. Headers must
// be set before WriteHeader; anything set afterwards is silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// The status line is already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorKinds maps each sentinel to its HTTP status and error type. Order
// matters: the first kind found in the chain wins.
var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrForbidden, http.StatusForbidden, "forbidden"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrDuplicateReport, http.StatusConflict, "duplicate_report"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrDataIntegrity, http.StatusUnprocessableEntity, "data_integrity_error"},
	{apperror.ErrExecution, http.StatusUnprocessableEntity, "execution_error"},
	{apperror.ErrGeneration, http.StatusBadGateway, "generation_error"},
	{apperror.ErrConfiguration, http.StatusServiceUnavailable, "configuration_error"},
}

// writeError maps a domain error to an HTTP status and sends it.
//
// The service layer never sees status codes: it returns apperror kinds and
// this is the one place they become HTTP. errors.Is walks the whole chain,
// so a service that wraps with fmt.Errorf("saving master tables: %w", err)
// still maps correctly.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(err, k.err) {
				writeJSON(w, k.status, ErrorResponse{
					Error:   k.kind,
					Message: appErr.Message,
					Field:   appErr.Field,
				})
				return
			}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Error:   "timeout",
			Message: "the request took too long to complete",
		})
		return
	}

	// Never expose internal details: raw errors can carry file paths or SQL.
	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a JSON request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperror.ValidationFailed("body", "invalid JSON body: "+err.Error())
	}
	return nil
}

// maxJSONBody bounds JSON request bodies; code is the largest field.
const maxJSONBody = 1 << 20
