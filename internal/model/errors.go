package model

import "fmt"

// ExtractionError means the sheet shape itself is unrecognized; the whole
// sheet is skipped and nothing is imported from it.
type ExtractionError struct {
	Sheet   string
	Cell    string
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", e.Sheet, e.Cell, e.Message, e.Cause)
	}
	if e.Cell != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Sheet, e.Cell, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Sheet, e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// NewExtractionError creates a structural extraction error for a sheet.
func NewExtractionError(sheet, cell, message string, cause error) *ExtractionError {
	return &ExtractionError{
		Sheet:   sheet,
		Cell:    cell,
		Message: message,
		Cause:   cause,
	}
}

// FieldError is a single field-level failure. Field errors are collected,
// never fail-fast; an invoice with any of them is not persisted.
// Resolution failures use the same type.
type FieldError struct {
	Sheet   string
	Field   string
	Cell    string
	Value   interface{}
	Message string
}

func (e *FieldError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (value=%v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewFieldError creates a field-level validation error.
func NewFieldError(sheet, field, cell string, value interface{}, message string) *FieldError {
	return &FieldError{
		Sheet:   sheet,
		Field:   field,
		Cell:    cell,
		Value:   value,
		Message: message,
	}
}

// Warning is a tolerance-level finding that does not block import.
type Warning struct {
	Field   string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// CertificationError is an API failure converted into data at the
// orchestrator boundary. Transient failures (network, timeout, 5xx) are
// retryable; permanent ones (client-side rejection) are not.
type CertificationError struct {
	Code       string
	Message    string
	StatusCode int
	Transient  bool
	Cause      error
}

func (e *CertificationError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("certification failed [%s]: %s", e.Code, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("certification failed: %s (%v)", e.Message, e.Cause)
	}
	return fmt.Sprintf("certification failed: %s", e.Message)
}

func (e *CertificationError) Unwrap() error {
	return e.Cause
}

// NewTransientError creates a retryable certification error.
func NewTransientError(message string, statusCode int, cause error) *CertificationError {
	return &CertificationError{
		Message:    message,
		StatusCode: statusCode,
		Transient:  true,
		Cause:      cause,
	}
}

// NewPermanentError creates a non-retryable certification error.
func NewPermanentError(code, message string, statusCode int) *CertificationError {
	return &CertificationError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}
