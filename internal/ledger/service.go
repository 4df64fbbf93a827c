// internal/ledger/service.go
package ledger

import (
	"context"
	"iter"
	"time"

	"github.com/google/uuid"
)

// Service reads the loan ledger. Writes happen inside circulation
// transactions through the package-level Insert, Lock and MarkReturned.
type Service interface {
	GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error)
	// OpenLoansFor yields the account's unreturned loans, earliest due first.
	OpenLoansFor(ctx context.Context, accountID uuid.UUID) iter.Seq2[Loan, error]
	// OverdueLoans yields open loans with due_on strictly before asOf,
	// earliest due first.
	OverdueLoans(ctx context.Context, asOf time.Time) iter.Seq2[OverdueLoan, error]
}
