// errors.go - Structured error handling for API responses
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/csv-chat/backend/internal/chat"
	"github.com/csv-chat/backend/internal/prompt"
	"github.com/csv-chat/backend/internal/session"
	"github.com/csv-chat/backend/internal/upload"
)

// Error codes for requests the user can fix from the page.
const (
	CodeCredentialRequired = "CREDENTIAL_REQUIRED"
	CodeFilesRequired      = "FILES_REQUIRED"
	CodeQuestionRequired   = "QUESTION_REQUIRED"
	CodeTooManyFiles       = "TOO_MANY_FILES"
)

// APIError represents a structured API error response
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error constructors for consistent error handling

// NewBadRequestError creates a 400 Bad Request error
func NewBadRequestError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// NewValidationError creates a 400 validation error for a specific field
func NewValidationError(field string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    "VALIDATION_ERROR",
		Message: fmt.Sprintf("validation failed for field: %s", field),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(resource string, id string) *APIError {
	return &APIError{
		Status:  http.StatusNotFound,
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s not found: %s", resource, id),
	}
}

// NewInputError creates a 400 error the UI shows as inline guidance
func NewInputError(code, message string) *APIError {
	return &APIError{
		Status:  http.StatusBadRequest,
		Code:    code,
		Message: message,
	}
}

// NewInternalError creates a 500 Internal Server Error
func NewInternalError(message string, cause error) *APIError {
	err := &APIError{
		Status:  http.StatusInternalServerError,
		Code:    "INTERNAL_ERROR",
		Message: message,
	}
	if cause != nil {
		err.Details = cause.Error()
	}
	return err
}

// fromDomainError maps package sentinel errors onto API errors.
func fromDomainError(err error) *APIError {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return NewNotFoundError("session", notFoundID(err))
	case errors.Is(err, session.ErrTableNotFound):
		return NewNotFoundError("table", notFoundID(err))
	case errors.Is(err, chat.ErrNoCredential), errors.Is(err, session.ErrEmptyCredential):
		return NewInputError(CodeCredentialRequired, "Please enter your OpenAI API Key in the sidebar to proceed.")
	case errors.Is(err, chat.ErrNoTables), errors.Is(err, upload.ErrNoFiles):
		return NewInputError(CodeFilesRequired, "Please upload your CSV files to start.")
	case errors.Is(err, prompt.ErrEmptyQuestion):
		return NewInputError(CodeQuestionRequired, "Please type a question about your data.")
	case errors.Is(err, upload.ErrTooManyFiles):
		return NewInputError(CodeTooManyFiles, err.Error())
	}
	return nil
}

// notFoundID extracts the identifier from a "... not found: <id>" error.
func notFoundID(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return ""
}

// domainError turns a service error into the error a handler returns.
func domainError(message string, err error) error {
	if apiErr := fromDomainError(err); apiErr != nil {
		return apiErr
	}
	return NewInternalError(message, err)
}

// ErrorHandler middleware for Echo
// Usage: e.HTTPErrorHandler = api.ErrorHandler
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var apiErr *APIError
	var httpErr *echo.HTTPError

	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &httpErr):
		apiErr = &APIError{
			Status:  httpErr.Code,
			Code:    "HTTP_ERROR",
			Message: fmt.Sprintf("%v", httpErr.Message),
		}
	default:
		if apiErr = fromDomainError(err); apiErr == nil {
			apiErr = &APIError{
				Status:  http.StatusInternalServerError,
				Code:    "UNKNOWN_ERROR",
				Message: "An unexpected error occurred",
			}
			if exposeErrorDetails {
				apiErr.Details = err.Error()
			}
		}
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(apiErr.Status)
		return
	}
	_ = c.JSON(apiErr.Status, apiErr)
}

// exposeErrorDetails adds internal error text to unexpected errors. It is
// switched on for development logging.
var exposeErrorDetails = false
