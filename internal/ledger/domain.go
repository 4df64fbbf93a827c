// internal/ledger/domain.go
package ledger

import (
	"time"

	"github.com/google/uuid"
)

// Loan is one lending of a title to an account. It is open while ReturnedOn
// is nil and is mutated at most once, when returned.
type Loan struct {
	ID         uuid.UUID  `db:"id"          json:"id"`
	AccountID  uuid.UUID  `db:"account_id"  json:"account_id"`
	TitleID    uuid.UUID  `db:"title_id"    json:"title_id"`
	IssuedOn   time.Time  `db:"issued_on"   json:"issued_on"`
	DueOn      time.Time  `db:"due_on"      json:"due_on"`
	ReturnedOn *time.Time `db:"returned_on" json:"returned_on"`
}

// Open reports whether the loan has not been returned.
func (l Loan) Open() bool {
	return l.ReturnedOn == nil
}

// OverdueLoan is an open loan past its due date with display metadata.
type OverdueLoan struct {
	Loan
	Username  string `db:"username"   json:"username"`
	TitleName string `db:"title_name" json:"title_name"`
}

// DaysOverdue counts whole days between the due date and asOf.
func (o OverdueLoan) DaysOverdue(asOf time.Time) int {
	return int(Day(asOf).Sub(Day(o.DueOn)).Hours() / 24)
}

// Day truncates t to its calendar date at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (l *Loan) normalize() {
	l.IssuedOn = Day(l.IssuedOn)
	l.DueOn = Day(l.DueOn)
	if l.ReturnedOn != nil {
		day := Day(*l.ReturnedOn)
		l.ReturnedOn = &day
	}
}
