package service

import (
	"errors"
	"fmt"
)

// Error kinds. The HTTP layer maps them to status codes with errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

// AppError carries a user-facing message and the kind it belongs to.
type AppError struct {
	Message string `json:"message"`
	Err     error  `json:"-"` // Kind, or a cause wrapping a kind
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As chain.
func (e *AppError) Unwrap() error {
	return e.Err
}

func newError(kind error, format string, args ...interface{}) error {
	return &AppError{Message: fmt.Sprintf(format, args...), Err: kind}
}

func validationError(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFound(what string) error {
	return newError(ErrNotFound, "%s not found", what)
}

// conflict keeps cause in the chain so callers can still match it.
func conflict(cause error) error {
	return &AppError{Message: cause.Error(), Err: fmt.Errorf("%w: %w", ErrConflict, cause)}
}

// ItemError describes one failed entry of a bulk operation.
type ItemError struct {
	Line    int    `json:"line,omitempty"`
	Item    string `json:"item,omitempty"`
	Message string `json:"message"`
}

// BulkResult summarizes a bulk operation. A failing item never aborts the
// remaining ones.
type BulkResult struct {
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Errors    []ItemError `json:"errors"`
}

func newBulkResult() *BulkResult {
	return &BulkResult{Errors: []ItemError{}}
}

func (r *BulkResult) fail(e ItemError) {
	r.Failed++
	r.Errors = append(r.Errors, e)
}
