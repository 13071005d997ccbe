package errors

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeBusinessRule    = "BUSINESS_RULE"
	CodeInvalidArgument = "INVALID_ARGUMENT"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL_ERROR"
)

// AppError is the single error currency between services and the HTTP
// boundary. Erros carries the user-visible messages, one per failure,
// matching the wire envelope {"erros": [...]}.
type AppError struct {
	Code       string   `json:"code"`
	Erros      []string `json:"erros"`
	HTTPStatus int      `json:"-"`
	Err        error    `json:"-"`
}

func (e *AppError) Error() string {
	msg := strings.Join(e.Erros, "; ")
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	return e.HTTPStatus
}

// ErrorResponse is the JSON body for every failed request.
type ErrorResponse struct {
	Erros []string `json:"erros"`
}

func (e *AppError) Response() ErrorResponse {
	return ErrorResponse{Erros: e.Erros}
}

// Validation reports malformed input, one message per offending field.
func Validation(erros []string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Erros:      erros,
		HTTPStatus: http.StatusBadRequest,
	}
}

// Business reports a domain-rule violation with a single message, e.g.
// "Book already loaned".
func Business(message string) *AppError {
	return &AppError{
		Code:       CodeBusinessRule,
		Erros:      []string{message},
		HTTPStatus: http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Erros:      []string{fmt.Sprintf("%s not found", resource)},
		HTTPStatus: http.StatusNotFound,
	}
}

// InvalidArgument flags a caller precondition failure (e.g. update
// without an id). It is a logic defect, not user input validation.
func InvalidArgument(message string) *AppError {
	return &AppError{
		Code:       CodeInvalidArgument,
		Erros:      []string{message},
		HTTPStatus: http.StatusBadRequest,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:       CodeBadRequest,
		Erros:      []string{message},
		HTTPStatus: http.StatusBadRequest,
	}
}

func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Erros:      []string{message},
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// AsAppError returns err as an AppError, masking anything unclassified
// behind a generic internal failure.
func AsAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return Internal("An unexpected error occurred", err)
}
