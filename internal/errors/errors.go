// Package errors provides custom error types for the coreledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Registry errors. Hierarchy violations are rejected synchronously at the
// registry boundary and are never retryable.
var (
	ErrAccountNotFound   = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrDuplicateCode     = &AppError{Code: "DUPLICATE_CODE", Message: "An account with this code already exists", StatusCode: http.StatusConflict}
	ErrInvalidParent     = &AppError{Code: "INVALID_PARENT", Message: "Parent account is missing, inactive, or cannot aggregate children", StatusCode: http.StatusBadRequest}
	ErrCycleDetected     = &AppError{Code: "CYCLE_DETECTED", Message: "Parent assignment would create a cycle in the account hierarchy", StatusCode: http.StatusBadRequest}
	ErrNonZeroBalance    = &AppError{Code: "HAS_NONZERO_BALANCE", Message: "Account cannot be deactivated while its balance is non-zero", StatusCode: http.StatusConflict}
	ErrCodeImmutable     = &AppError{Code: "CODE_IMMUTABLE", Message: "Account code cannot change once the account has postings", StatusCode: http.StatusConflict}
	ErrInvalidType       = &AppError{Code: "INVALID_ACCOUNT_TYPE", Message: "Unknown account type", StatusCode: http.StatusBadRequest}
	ErrInvalidCategory   = &AppError{Code: "INVALID_CATEGORY", Message: "Category is not valid for this account type", StatusCode: http.StatusBadRequest}
)

// Validation errors. Always recoverable locally, reported to the caller,
// never retried automatically.
var (
	ErrMalformedEntry  = &AppError{Code: "MALFORMED_ENTRY", Message: "Journal entry must have at least two lines, each moving a non-zero amount", StatusCode: http.StatusBadRequest}
	ErrUnbalancedEntry = &AppError{Code: "UNBALANCED_ENTRY", Message: "Journal entry lines must sum to exactly zero", StatusCode: http.StatusUnprocessableEntity}
	ErrUnknownAccount  = &AppError{Code: "UNKNOWN_ACCOUNT", Message: "Journal line references an account that does not exist", StatusCode: http.StatusUnprocessableEntity}
	ErrInactiveAccount = &AppError{Code: "INACTIVE_ACCOUNT", Message: "Journal line references a deactivated account", StatusCode: http.StatusUnprocessableEntity}
	ErrNonLeafAccount  = &AppError{Code: "NON_LEAF_ACCOUNT", Message: "Journal line references a rollup account that does not accept direct postings", StatusCode: http.StatusUnprocessableEntity}
	ErrInvalidAmount   = &AppError{Code: "INVALID_AMOUNT", Message: "Amount has more than four decimal places", StatusCode: http.StatusBadRequest}
)

// Concurrency errors. Caller-retryable; the ledger guarantees no partial
// effects on these paths.
var (
	ErrLedgerBusy             = &AppError{Code: "LEDGER_BUSY", Message: "Timed out waiting for account update rights; retry the posting", StatusCode: http.StatusConflict}
	ErrConcurrentModification = &AppError{Code: "CONCURRENT_MODIFICATION", Message: "Account state changed while the posting was in flight; retry the posting", StatusCode: http.StatusConflict}
)

// Ledger errors.
var (
	ErrEntryNotFound      = &AppError{Code: "ENTRY_NOT_FOUND", Message: "Journal entry not found", StatusCode: http.StatusNotFound}
	ErrPersistenceFailure = &AppError{Code: "PERSISTENCE_FAILURE", Message: "Posting could not be durably recorded and must be treated as uncommitted", StatusCode: http.StatusInternalServerError}
)
