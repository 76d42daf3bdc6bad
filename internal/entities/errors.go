package entities

import "fmt"

// ValidationError reports a bad schema shape, an unresolved reference, or a
// forbidden rename. It is always surfaced before any side effect.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// TableOperationError reports a DDL failure. Partial DDL is rolled back before
// the error surfaces; the caller may retry once the blocking condition clears.
type TableOperationError struct {
	Message string
	Err     error
}

func (e *TableOperationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TableOperationError) Unwrap() error { return e.Err }

// NewTableOperationError wraps a DDL failure.
func NewTableOperationError(message string, err error) *TableOperationError {
	return &TableOperationError{Message: message, Err: err}
}

// ModelLoadError reports a type-binding failure after DDL succeeded. The table
// may already exist, so cleanup must be able to proceed even when the type was
// never loaded.
type ModelLoadError struct {
	Message string
	Err     error
}

func (e *ModelLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// NewModelLoadError wraps a type load failure.
func NewModelLoadError(message string, err error) *ModelLoadError {
	return &ModelLoadError{Message: message, Err: err}
}

// RouteError reports a malformed route path or a route persistence failure.
// It blocks the operation before catalog commit.
type RouteError struct {
	Message string
}

func (e *RouteError) Error() string { return e.Message }

// NewRouteError creates a RouteError.
func NewRouteError(message string) *RouteError {
	return &RouteError{Message: message}
}
