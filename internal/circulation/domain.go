// internal/circulation/domain.go
package circulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"librarydesk/internal/apperr"
)

// DefaultLoanPeriodDays applies when neither the request nor the engine
// options name a loan period.
const DefaultLoanPeriodDays = 14

// BorrowRequest asks for one copy of TitleID on behalf of AccountID.
// A zero LoanPeriodDays selects the engine's configured period.
type BorrowRequest struct {
	AccountID      uuid.UUID
	TitleID        uuid.UUID
	Today          time.Time
	LoanPeriodDays int
}

// integrityError carries the counters that broke the title invariant. It
// unwraps to ErrInventoryInconsistency.
type integrityError struct {
	Op        string
	TitleID   uuid.UUID
	LoanID    uuid.UUID
	Total     int
	Available int
}

func (e *integrityError) Error() string {
	return fmt.Sprintf("%s: title %s has %d of %d copies available",
		e.Op, e.TitleID, e.Available, e.Total)
}

func (e *integrityError) Unwrap() error {
	return apperr.ErrInventoryInconsistency
}
