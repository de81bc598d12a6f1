package dto

import (
	"net/http"

	"github.com/quotation/backend/internal/domain/shared"
)

// Error codes returned in the response envelope. Domain codes are passed
// through unchanged so clients see the same code the engine reported.
const (
	ErrCodeValidation     = shared.CodeValidation
	ErrCodeNotFound       = shared.CodeNotFound
	ErrCodeLayoutOverflow = shared.CodeLayoutOverflow
	ErrCodeExportFailed   = shared.CodeExportFailed
	ErrCodeInvalidState   = shared.CodeInvalidState

	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeValidation: http.StatusBadRequest,
	ErrCodeNotFound:   http.StatusNotFound,
	// The document is valid but one of its rows cannot be placed on a page
	ErrCodeLayoutOverflow: http.StatusUnprocessableEntity,
	ErrCodeExportFailed:   http.StatusBadGateway,
	ErrCodeInvalidState:   http.StatusConflict,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
