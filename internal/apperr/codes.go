// internal/apperr/codes.go
package apperr

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Input errors
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeInvalidRole     Code = "INVALID_ROLE"

	// Credential store errors
	CodeDuplicateUsername  Code = "DUPLICATE_USERNAME"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
	CodeAccountNotFound    Code = "ACCOUNT_NOT_FOUND"
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeForbidden          Code = "FORBIDDEN"

	// Catalog and ledger errors
	CodeTitleNotFound Code = "TITLE_NOT_FOUND"
	CodeLoanNotFound  Code = "LOAN_NOT_FOUND"

	// Circulation errors
	CodeNoCopiesAvailable      Code = "NO_COPIES_AVAILABLE"
	CodeAlreadyReturned        Code = "ALREADY_RETURNED"
	CodeInventoryInconsistency Code = "INVENTORY_INCONSISTENCY"

	// Storage errors
	CodeBusy Code = "BUSY"
)

// HTTPStatus maps a code to the status an HTTP adapter should answer with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeInvalidRole:
		return http.StatusBadRequest
	case CodeInvalidCredentials, CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTitleNotFound, CodeLoanNotFound, CodeAccountNotFound:
		return http.StatusNotFound
	case CodeDuplicateUsername, CodeNoCopiesAvailable, CodeAlreadyReturned:
		return http.StatusConflict
	case CodeBusy:
		return http.StatusServiceUnavailable
	default:
		// InventoryInconsistency and uncoded errors are server faults.
		return http.StatusInternalServerError
	}
}
