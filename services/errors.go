package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeInvalidArgument   ErrorType = "invalid_argument"
	ErrorTypeDimensionMismatch ErrorType = "dimension_mismatch"
	ErrorTypeEmbeddingFailure  ErrorType = "embedding_failure"
	ErrorTypeIndexOutOfRange   ErrorType = "index_out_of_range"
	ErrorTypeGenerationTimeout ErrorType = "generation_timeout"
	ErrorTypeGenerationFailure ErrorType = "generation_failure"
	ErrorTypeUnavailable       ErrorType = "unavailable"
	ErrorTypeInternal          ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same type, so sentinel
// values below can be matched with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Sentinel errors, one per category. Match with errors.Is.
var (
	ErrInvalidArgument   = NewDomainError(ErrorTypeInvalidArgument, "invalid argument", nil)
	ErrEmptyQuery        = NewDomainError(ErrorTypeInvalidArgument, "query cannot be empty", nil)
	ErrInvalidTopK       = NewDomainError(ErrorTypeInvalidArgument, "k must be positive", nil)
	ErrDimensionMismatch = NewDomainError(ErrorTypeDimensionMismatch, "embedding dimension mismatch", nil)
	ErrEmbeddingFailure  = NewDomainError(ErrorTypeEmbeddingFailure, "embedding failed", nil)
	ErrIndexOutOfRange   = NewDomainError(ErrorTypeIndexOutOfRange, "corpus position out of range", nil)
	ErrGenerationTimeout = NewDomainError(ErrorTypeGenerationTimeout, "generation timed out", nil)
	ErrGenerationFailure = NewDomainError(ErrorTypeGenerationFailure, "generation failed", nil)
	ErrNotReady          = NewDomainError(ErrorTypeUnavailable, "service is not ready", nil)
	ErrAtCapacity        = NewDomainError(ErrorTypeUnavailable, "no pipeline slot available", nil)
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
)

func isType(err error, t ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == t
	}
	return false
}

// IsInvalidArgumentError checks if an error is caused by bad caller input
func IsInvalidArgumentError(err error) bool {
	return isType(err, ErrorTypeInvalidArgument)
}

// IsDimensionMismatchError checks if an error is a vector dimension mismatch
func IsDimensionMismatchError(err error) bool {
	return isType(err, ErrorTypeDimensionMismatch)
}

// IsEmbeddingFailureError checks if an error came from the embedding model
func IsEmbeddingFailureError(err error) bool {
	return isType(err, ErrorTypeEmbeddingFailure)
}

// IsIndexOutOfRangeError checks if an error is a corpus lookup out of range
func IsIndexOutOfRangeError(err error) bool {
	return isType(err, ErrorTypeIndexOutOfRange)
}

// IsGenerationTimeoutError checks if the generation deadline expired
func IsGenerationTimeoutError(err error) bool {
	return isType(err, ErrorTypeGenerationTimeout)
}

// IsGenerationFailureError checks if an error came from the generation model
func IsGenerationFailureError(err error) bool {
	return isType(err, ErrorTypeGenerationFailure)
}

// IsUnavailableError checks if the service could not accept the request
func IsUnavailableError(err error) bool {
	return isType(err, ErrorTypeUnavailable)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// IsClientError reports whether the caller caused the error.
func IsClientError(err error) bool {
	return IsInvalidArgumentError(err)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapEmbedding wraps a model-side error as an embedding failure. Errors that
// already carry a domain type pass through unchanged.
func WrapEmbedding(message string, err error) error {
	if GetErrorType(err) != "" {
		return err
	}
	return NewDomainError(ErrorTypeEmbeddingFailure, message, err)
}

// InvalidArgument builds a client error with a formatted message.
func InvalidArgument(format string, args ...interface{}) *DomainError {
	return NewDomainError(ErrorTypeInvalidArgument, fmt.Sprintf(format, args...), nil)
}

// DimensionMismatch builds a dimension error recording both lengths.
func DimensionMismatch(got, want int) *DomainError {
	return NewDomainError(ErrorTypeDimensionMismatch,
		fmt.Sprintf("got dimension %d, want %d", got, want), nil).
		WithDetail("got", got).
		WithDetail("want", want)
}
