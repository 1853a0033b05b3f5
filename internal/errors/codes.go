// Package errors provides structured error handling for chunkdex.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (document store, data directory)
//   - 40X: Query validation errors
//   - 41X: Document integrity errors
//   - 42X: Not-found conditions
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates document store and data directory errors.
	CategoryStorage Category = "STORAGE"
	// CategoryValidation indicates query input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryIntegrity indicates document integrity violations at ingestion.
	CategoryIntegrity Category = "INTEGRITY"
	// CategoryNotFound indicates lookups of unknown document identifiers.
	CategoryNotFound Category = "NOT_FOUND"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates an expected, non-fatal condition.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreOpen     = "ERR_201_STORE_OPEN"
	ErrCodeStoreIO       = "ERR_202_STORE_IO"
	ErrCodeDataDirLocked = "ERR_203_DATA_DIR_LOCKED"
	ErrCodeStoreCorrupt  = "ERR_204_STORE_CORRUPT"

	// Query validation errors (400-409)
	ErrCodeInvalidQuery      = "ERR_401_INVALID_QUERY"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeUnknownProfile    = "ERR_403_UNKNOWN_PROFILE"
	ErrCodeUnsupportedField  = "ERR_404_UNSUPPORTED_FIELD"
	ErrCodeInvalidPagination = "ERR_405_INVALID_PAGINATION"
	ErrCodeInvalidDocID      = "ERR_406_INVALID_DOC_ID"

	// Document integrity errors (410-419)
	ErrCodeChunkEmbeddingMismatch = "ERR_410_CHUNK_EMBEDDING_MISMATCH"
	ErrCodeDuplicateChunkIndex    = "ERR_411_DUPLICATE_CHUNK_INDEX"
	ErrCodeChunkIndexRange        = "ERR_412_CHUNK_INDEX_RANGE"
	ErrCodeBadChunkVector         = "ERR_413_BAD_CHUNK_VECTOR"

	// Not-found conditions (420-429)
	ErrCodeDocNotFound = "ERR_420_DOC_NOT_FOUND"

	// Internal errors (500-599)
	ErrCodeInternal        = "ERR_501_INTERNAL"
	ErrCodeIndexCorruption = "ERR_502_INDEX_CORRUPTION"
	ErrCodeSearchFailed    = "ERR_503_SEARCH_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "401" from "ERR_401_INVALID_QUERY")
	numStr := code[4:7]

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '4':
		// The 4XX band splits into validation (40X), integrity (41X),
		// and not-found (42X) sub-bands.
		switch numStr[1] {
		case '1':
			return CategoryIntegrity
		case '2':
			return CategoryNotFound
		default:
			return CategoryValidation
		}
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeStoreCorrupt, ErrCodeIndexCorruption:
		return SeverityFatal
	case ErrCodeDocNotFound:
		// Lookups of unknown ids are reported, never fatal.
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable condition.
// Retries belong to callers outside the engine; the engine itself never retries.
func isRetryableCode(code string) bool {
	return code == ErrCodeDataDirLocked
}
