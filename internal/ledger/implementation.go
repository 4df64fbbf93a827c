// internal/ledger/implementation.go
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/apperr"
	"librarydesk/internal/store"
)

const loansTable = "loans"

var loanColumns = []any{"id", "account_id", "title_id", "issued_on", "due_on", "returned_on"}

// service implements the Service interface.
type service struct {
	store  *store.Store
	tracer trace.Tracer
}

// NewService creates the ledger reader.
func NewService(s *store.Store) Service {
	return &service{
		store:  s,
		tracer: otel.Tracer("librarydesk/ledger"),
	}
}

// GetLoan returns the loan with id or ErrLoanNotFound.
func (s *service) GetLoan(ctx context.Context, id uuid.UUID) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.get_loan",
		trace.WithAttributes(attribute.String("loan.id", id.String())))
	defer span.End()

	return getLoan(ctx, s.store.DB(), s.store.Builder().From(loansTable).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id)))
}

func (s *service) OpenLoansFor(ctx context.Context, accountID uuid.UUID) iter.Seq2[Loan, error] {
	seq := store.Seq[Loan](ctx, s.store.DB(), s.store.Builder().From(loansTable).
		Select(loanColumns...).
		Where(
			goqu.C("account_id").Eq(accountID),
			goqu.C("returned_on").IsNull(),
		).
		Order(goqu.C("due_on").Asc(), goqu.C("id").Asc()).
		Prepared(true))

	return func(yield func(Loan, error) bool) {
		for loan, err := range seq {
			loan.normalize()
			if !yield(loan, err) || err != nil {
				return
			}
		}
	}
}

func (s *service) OverdueLoans(ctx context.Context, asOf time.Time) iter.Seq2[OverdueLoan, error] {
	b := s.store.Builder()
	seq := store.Seq[OverdueLoan](ctx, s.store.DB(), b.From(goqu.T(loansTable).As("l")).
		Join(goqu.T("accounts").As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("l.account_id")))).
		Join(goqu.T("titles").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("l.title_id")))).
		Select(
			goqu.I("l.id"),
			goqu.I("l.account_id"),
			goqu.I("l.title_id"),
			goqu.I("l.issued_on"),
			goqu.I("l.due_on"),
			goqu.I("l.returned_on"),
			goqu.I("a.username"),
			goqu.I("t.name").As("title_name"),
		).
		Where(
			goqu.I("l.returned_on").IsNull(),
			goqu.I("l.due_on").Lt(Day(asOf)),
		).
		Order(goqu.I("l.due_on").Asc(), goqu.I("l.issued_on").Asc(), goqu.I("l.id").Asc()).
		Prepared(true))

	return func(yield func(OverdueLoan, error) bool) {
		for loan, err := range seq {
			loan.normalize()
			if !yield(loan, err) || err != nil {
				return
			}
		}
	}
}

// Insert records a new open loan.
func Insert(ctx context.Context, tx *store.Tx, loan Loan) error {
	_, err := store.Exec(ctx, tx, tx.Builder().Insert(loansTable).Rows(goqu.Record{
		"id":          loan.ID,
		"account_id":  loan.AccountID,
		"title_id":    loan.TitleID,
		"issued_on":   Day(loan.IssuedOn),
		"due_on":      Day(loan.DueOn),
		"returned_on": nil,
	}).Prepared(true))
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// Lock reads a loan and holds its row lock until tx ends.
func Lock(ctx context.Context, tx *store.Tx, id uuid.UUID) (*Loan, error) {
	return getLoan(ctx, tx, tx.ForUpdate(tx.Builder().From(loansTable).
		Select(loanColumns...).
		Where(goqu.C("id").Eq(id))))
}

// MarkReturned closes an open loan. It reports false when the loan was
// already returned.
func MarkReturned(ctx context.Context, tx *store.Tx, id uuid.UUID, on time.Time) (bool, error) {
	ok, err := store.ExecOne(ctx, tx, tx.Builder().Update(loansTable).
		Set(goqu.Record{"returned_on": Day(on)}).
		Where(
			goqu.C("id").Eq(id),
			goqu.C("returned_on").IsNull(),
		).
		Prepared(true))
	if err != nil {
		return false, fmt.Errorf("mark loan returned: %w", err)
	}
	return ok, nil
}

func getLoan(ctx context.Context, q store.Querier, ds *goqu.SelectDataset) (*Loan, error) {
	loan := &Loan{}
	if err := store.Get(ctx, q, loan, ds.Prepared(true)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrLoanNotFound
		}
		return nil, fmt.Errorf("get loan: %w", store.Classify(err))
	}
	loan.normalize()
	return loan, nil
}
