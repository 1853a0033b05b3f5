package errors

import (
	"fmt"
)

// ChunkdexError is the structured error type for chunkdex.
// It provides rich context for error handling, logging, and user presentation.
type ChunkdexError struct {
	// Code is the unique error code (e.g., "ERR_420_DOC_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Validation, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried by the caller.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *ChunkdexError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *ChunkdexError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with ChunkdexError.
func (e *ChunkdexError) Is(target error) bool {
	if t, ok := target.(*ChunkdexError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *ChunkdexError) WithDetail(key, value string) *ChunkdexError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *ChunkdexError) WithSuggestion(suggestion string) *ChunkdexError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ChunkdexError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *ChunkdexError {
	return &ChunkdexError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a ChunkdexError from an existing error.
// The error's message becomes the ChunkdexError message.
func Wrap(code string, err error) *ChunkdexError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *ChunkdexError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StorageError creates a document-store or data-directory error.
func StorageError(message string, cause error) *ChunkdexError {
	return New(ErrCodeStoreIO, message, cause)
}

// ValidationError creates a query validation error.
// Validation errors are rejected before any index access.
func ValidationError(message string, cause error) *ChunkdexError {
	return New(ErrCodeInvalidQuery, message, cause)
}

// IntegrityError creates a document integrity error.
// The offending document is rejected in full; nothing is written.
func IntegrityError(message string, cause error) *ChunkdexError {
	return New(ErrCodeChunkEmbeddingMismatch, message, cause)
}

// NotFoundError creates an unknown-document error for the given id.
func NotFoundError(docID string) *ChunkdexError {
	return New(ErrCodeDocNotFound, fmt.Sprintf("document %q not found", docID), nil).
		WithDetail("docId", docID)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *ChunkdexError {
	return New(ErrCodeInternal, message, cause)
}

// IsValidation reports whether err is a query validation error.
func IsValidation(err error) bool {
	return GetCategory(err) == CategoryValidation
}

// IsIntegrity reports whether err is a document integrity error.
func IsIntegrity(err error) bool {
	return GetCategory(err) == CategoryIntegrity
}

// IsNotFound reports whether err is an unknown-document error.
func IsNotFound(err error) bool {
	return GetCategory(err) == CategoryNotFound
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a ChunkdexError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*ChunkdexError); ok {
		return ce.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if ce, ok := err.(*ChunkdexError); ok {
		return ce.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a ChunkdexError.
// Returns empty string if not a ChunkdexError.
func GetCode(err error) string {
	if ce, ok := err.(*ChunkdexError); ok {
		return ce.Code
	}
	return ""
}

// GetCategory extracts the category from a ChunkdexError.
// Returns empty string if not a ChunkdexError.
func GetCategory(err error) Category {
	if ce, ok := err.(*ChunkdexError); ok {
		return ce.Category
	}
	return ""
}
