package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped instances still match their sentinel.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code && t.Message == e.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeModelUnavailable = "MODEL_UNAVAILABLE"
	ErrCodeIndexBuild       = "INDEX_BUILD_FAILED"
	ErrCodeSummaryFailed    = "SUMMARY_FAILED"
)

// Validation errors
var (
	ErrEmptyInput           = NewDomainError(ErrCodeValidation, "source text is empty")
	ErrEmptyQuestion        = NewDomainError(ErrCodeValidation, "question is empty")
	ErrInvalidSourceKind    = NewDomainError(ErrCodeValidation, "invalid source kind")
	ErrInvalidIndexJob      = NewDomainError(ErrCodeValidation, "invalid index job")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrSourceNotFound  = NewDomainError(ErrCodeNotFound, "source not found")
	ErrSummaryNotFound = NewDomainError(ErrCodeNotFound, "summary not found")
	ErrGraphNotFound   = NewDomainError(ErrCodeNotFound, "knowledge graph not found")
	ErrIndexNotFound   = NewDomainError(ErrCodeNotFound, "embedding index not found")
)

// Pipeline errors
var (
	ErrModelUnavailable  = NewDomainError(ErrCodeModelUnavailable, "generative model unavailable")
	ErrIndexBuild        = NewDomainError(ErrCodeIndexBuild, "embedding index build failed")
	ErrSummaryGeneration = NewDomainError(ErrCodeSummaryFailed, "summary generation failed")
	ErrStorageFailure    = NewDomainError(ErrCodeInternalError, "storage operation failed")
)

// NewModelUnavailableError wraps a model client failure.
func NewModelUnavailableError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeModelUnavailable, ErrModelUnavailable.Message, err)
}

// NewIndexBuildError wraps an embedding or storage failure during index construction.
func NewIndexBuildError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeIndexBuild, ErrIndexBuild.Message, err)
}

// NewSummaryGenerationError wraps a failed summarization model call.
func NewSummaryGenerationError(err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeSummaryFailed, ErrSummaryGeneration.Message, err)
}
