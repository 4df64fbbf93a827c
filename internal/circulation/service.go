// internal/circulation/service.go
package circulation

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"

	"librarydesk/internal/catalog"
	"librarydesk/internal/ledger"
)

// Service is the circulation engine and the only writer of a title's copy
// counters. Borrow, ReturnLoan and Restock each run as one transaction: every
// row they touch changes together or not at all.
type Service interface {
	// Borrow lends one copy. It fails with ErrTitleNotFound,
	// ErrAccountNotFound or ErrNoCopiesAvailable.
	Borrow(ctx context.Context, req BorrowRequest) (*ledger.Loan, error)
	// ReturnLoan closes an open loan and credits the copy back. It fails with
	// ErrLoanNotFound, ErrAlreadyReturned or ErrInventoryInconsistency.
	ReturnLoan(ctx context.Context, loanID uuid.UUID, today time.Time) (*ledger.Loan, error)
	// Restock adds copies to a title; total and available copies both grow
	// by additional. It fails with ErrInvalidArgument, ErrTitleNotFound or
	// ErrInventoryInconsistency.
	Restock(ctx context.Context, titleID uuid.UUID, additional int) (*catalog.Title, error)
	// OverdueReport lists open loans due before today, earliest first.
	OverdueReport(ctx context.Context, today time.Time) iter.Seq2[ledger.OverdueLoan, error]
}
