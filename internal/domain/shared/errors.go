package shared

import "fmt"

// Error codes shared by every quotation component
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeNotFound       = "NOT_FOUND"
	CodeLayoutOverflow = "LAYOUT_OVERFLOW"
	CodeExportFailed   = "EXPORT_FAILED"
	CodeInvalidState   = "INVALID_STATE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is reports whether target is a DomainError with the same code.
// This lets callers match a specific failure against the sentinels below
// with errors.Is regardless of the message.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithCause returns a copy of the error that wraps cause
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message, cause: cause}
}

// NewValidationError reports negative or malformed input on field
func NewValidationError(field, message string) *DomainError {
	if field == "" {
		return NewDomainError(CodeValidation, message)
	}
	return NewDomainError(CodeValidation, fmt.Sprintf("%s: %s", field, message))
}

// NewNotFoundError reports a stale or removed identifier
func NewNotFoundError(entity string, id fmt.Stringer) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s %s not found", entity, id))
}

// NewLayoutOverflowError reports content that cannot fit on an empty page
func NewLayoutOverflowError(message string) *DomainError {
	return NewDomainError(CodeLayoutOverflow, message)
}

// NewExportFailedError reports a document export that did not produce an artifact
func NewExportFailedError(message string, cause error) *DomainError {
	return NewDomainError(CodeExportFailed, message).WithCause(cause)
}

// Common domain errors
var (
	ErrValidation     = NewDomainError(CodeValidation, "Invalid input provided")
	ErrNotFound       = NewDomainError(CodeNotFound, "Resource not found")
	ErrLayoutOverflow = NewDomainError(CodeLayoutOverflow, "Content does not fit on a page")
	ErrExportFailed   = NewDomainError(CodeExportFailed, "Document export failed")
	ErrInvalidState   = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)
