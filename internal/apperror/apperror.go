// Package apperror defines the error taxonomy shared by every layer.
//
// Each error kind is a sentinel wrapped by an *AppError carrying a
// human-readable message. Callers test the kind with errors.Is and read the
// message with errors.As; the HTTP layer maps kinds to status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrForbidden  = errors.New("forbidden")

	// ErrDataIntegrity marks corrupt upstream data or a broken set of
	// persisted files. The whole operation is aborted.
	ErrDataIntegrity = errors.New("data integrity error")
	// ErrDuplicateReport marks an upload whose report date is already stored.
	ErrDuplicateReport = errors.New("duplicate report")
	// ErrConfiguration marks a missing credential or setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrGeneration marks a failed call to a text-generation backend.
	ErrGeneration = errors.New("generation error")
	// ErrExecution marks generated code that failed to run.
	ErrExecution = errors.New("execution error")
)

type AppError struct {
	Err     error  // sentinel kind
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying error
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// DataIntegrity reports corrupt input or storage. cause may be nil.
func DataIntegrity(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrDataIntegrity,
		Message: message,
		Cause:   cause,
	}
}

// DuplicateReport reports that data for the given report date already exists.
func DuplicateReport(date string) *AppError {
	return &AppError{
		Err:     ErrDuplicateReport,
		Message: fmt.Sprintf("a report for the date %s has already been uploaded", date),
		Field:   "report_date",
	}
}

// Configuration reports a missing setting, such as an API key.
func Configuration(setting, message string) *AppError {
	return &AppError{
		Err:     ErrConfiguration,
		Message: message,
		Field:   setting,
	}
}

// Generation wraps a failed text-generation call with the backend name.
func Generation(backend string, cause error) *AppError {
	return &AppError{
		Err:     ErrGeneration,
		Message: fmt.Sprintf("an error occurred while calling the %s API: %v", backend, cause),
		Cause:   cause,
	}
}

// Execution reports generated code that could not be run.
func Execution(message string) *AppError {
	return &AppError{
		Err:     ErrExecution,
		Message: message,
	}
}
