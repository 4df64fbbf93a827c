// internal/apperr/errors.go

// Package apperr holds the coded error taxonomy shared by the credential
// store, catalog, ledger and circulation engine.
package apperr

import "errors"

// Error is the domain error type.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidArgument        = New(CodeInvalidArgument, "invalid argument")
	ErrInvalidRole            = New(CodeInvalidRole, "invalid role")
	ErrDuplicateUsername      = New(CodeDuplicateUsername, "username already taken")
	ErrInvalidCredentials     = New(CodeInvalidCredentials, "invalid username or password")
	ErrAccountNotFound        = New(CodeAccountNotFound, "account not found")
	ErrUnauthenticated        = New(CodeUnauthenticated, "authentication required")
	ErrForbidden              = New(CodeForbidden, "operation not permitted for this role")
	ErrTitleNotFound          = New(CodeTitleNotFound, "title not found")
	ErrLoanNotFound           = New(CodeLoanNotFound, "loan not found")
	ErrNoCopiesAvailable      = New(CodeNoCopiesAvailable, "no copies available")
	ErrAlreadyReturned        = New(CodeAlreadyReturned, "loan already returned")
	ErrInventoryInconsistency = New(CodeInventoryInconsistency, "inventory counters are inconsistent")
	ErrBusy                   = New(CodeBusy, "store busy, retry")
)

// InvalidArgument returns an InvalidArgument error with a specific message.
func InvalidArgument(message string) *Error {
	return New(CodeInvalidArgument, message)
}

// CodeOf extracts the code from the first *Error in err's chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HTTPStatus maps any error to an HTTP status via its code.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}

// IsRetryable reports whether the operation may be retried unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrBusy)
}
