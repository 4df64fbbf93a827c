// internal/circulation/implementation.go
package circulation

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/catalog"
	"librarydesk/internal/ledger"
	"librarydesk/internal/store"
)

// Options tune the engine. Zero values select defaults.
type Options struct {
	LoanPeriodDays int
	Logger         *slog.Logger
	// Meter defaults to the global meter provider.
	Meter metric.Meter
}

type instruments struct {
	borrows  metric.Int64Counter
	returns  metric.Int64Counter
	alarms   metric.Int64Counter
	busy     metric.Int64Counter
	duration metric.Float64Histogram
}

// service implements the Service interface.
type service struct {
	store      *store.Store
	ledger     ledger.Service
	audit      *audit.Log
	loanPeriod int
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    instruments
}

// NewService creates the circulation engine.
func NewService(s *store.Store, loans ledger.Service, log *audit.Log, opts Options) (Service, error) {
	if opts.LoanPeriodDays == 0 {
		opts.LoanPeriodDays = DefaultLoanPeriodDays
	}
	if opts.LoanPeriodDays < 1 {
		return nil, fmt.Errorf("loan period must be at least one day, got %d", opts.LoanPeriodDays)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Meter == nil {
		opts.Meter = otel.Meter("librarydesk/circulation")
	}

	m, err := newInstruments(opts.Meter)
	if err != nil {
		return nil, err
	}

	return &service{
		store:      s,
		ledger:     loans,
		audit:      log,
		loanPeriod: opts.LoanPeriodDays,
		logger:     opts.Logger,
		tracer:     otel.Tracer("librarydesk/circulation"),
		metrics:    m,
	}, nil
}

func newInstruments(meter metric.Meter) (instruments, error) {
	var m instruments
	var err error
	if m.borrows, err = meter.Int64Counter("circulation.borrows",
		metric.WithDescription("Loans issued")); err != nil {
		return m, fmt.Errorf("create borrows counter: %w", err)
	}
	if m.returns, err = meter.Int64Counter("circulation.returns",
		metric.WithDescription("Loans returned")); err != nil {
		return m, fmt.Errorf("create returns counter: %w", err)
	}
	if m.alarms, err = meter.Int64Counter("circulation.integrity_alarms",
		metric.WithDescription("Operations aborted on inconsistent copy counters")); err != nil {
		return m, fmt.Errorf("create alarms counter: %w", err)
	}
	if m.busy, err = meter.Int64Counter("circulation.busy",
		metric.WithDescription("Operations aborted on lock or serialization conflicts")); err != nil {
		return m, fmt.Errorf("create busy counter: %w", err)
	}
	if m.duration, err = meter.Float64Histogram("circulation.operation.duration",
		metric.WithDescription("Circulation transaction duration"),
		metric.WithUnit("s")); err != nil {
		return m, fmt.Errorf("create duration histogram: %w", err)
	}
	return m, nil
}

// Borrow lends one copy of a title.
func (s *service) Borrow(ctx context.Context, req BorrowRequest) (*ledger.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.borrow", trace.WithAttributes(
		attribute.String("account.id", req.AccountID.String()),
		attribute.String("title.id", req.TitleID.String()),
	))
	defer span.End()

	period := req.LoanPeriodDays
	if period == 0 {
		period = s.loanPeriod
	}
	if period < 1 {
		return nil, apperr.InvalidArgument(fmt.Sprintf("loan period must be at least one day, got %d", period))
	}
	if req.Today.IsZero() {
		return nil, apperr.InvalidArgument("borrow date is required")
	}

	today := ledger.Day(req.Today)
	loan := &ledger.Loan{
		ID:        uuid.New(),
		AccountID: req.AccountID,
		TitleID:   req.TitleID,
		IssuedOn:  today,
		DueOn:     today.AddDate(0, 0, period),
	}

	actor := audit.Actor(ctx)
	if !actor.Valid {
		actor = audit.For(req.AccountID)
	}

	start := time.Now()
	err := s.store.WithTx(ctx, "circulation.borrow", func(tx *store.Tx) error {
		stock, err := catalog.LockStock(ctx, tx, req.TitleID)
		if err != nil {
			return err
		}
		if !stock.Consistent() {
			return &integrityError{Op: "borrow", TitleID: stock.ID, Total: stock.TotalCopies, Available: stock.AvailableCopies}
		}
		if stock.AvailableCopies == 0 {
			return apperr.ErrNoCopiesAvailable
		}
		if err := requireAccount(ctx, tx, req.AccountID); err != nil {
			return err
		}

		if err := ledger.Insert(ctx, tx, *loan); err != nil {
			return err
		}
		taken, err := takeCopy(ctx, tx, req.TitleID)
		if err != nil {
			return err
		}
		if !taken {
			return apperr.ErrNoCopiesAvailable
		}

		return s.audit.Append(ctx, tx, audit.Entry{
			AccountID:   actor,
			Action:      audit.ActionBorrowed,
			Description: fmt.Sprintf("borrowed %s", req.TitleID),
			Metadata: map[string]any{
				"loan_id":    loan.ID.String(),
				"title_id":   req.TitleID.String(),
				"account_id": req.AccountID.String(),
				"due_on":     loan.DueOn.Format(time.DateOnly),
			},
		})
	})
	s.observe(ctx, "borrow", start, err)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.metrics.borrows.Add(ctx, 1)
	s.logger.InfoContext(ctx, "title borrowed",
		"loan_id", loan.ID, "account_id", loan.AccountID, "title_id", loan.TitleID,
		"due_on", loan.DueOn.Format(time.DateOnly))
	return loan, nil
}

// ReturnLoan closes an open loan. Locks are taken loan first, then title.
func (s *service) ReturnLoan(ctx context.Context, loanID uuid.UUID, today time.Time) (*ledger.Loan, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.return_loan",
		trace.WithAttributes(attribute.String("loan.id", loanID.String())))
	defer span.End()

	if today.IsZero() {
		return nil, apperr.InvalidArgument("return date is required")
	}
	day := ledger.Day(today)

	var loan *ledger.Loan
	start := time.Now()
	err := s.store.WithTx(ctx, "circulation.return_loan", func(tx *store.Tx) error {
		var err error
		loan, err = ledger.Lock(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !loan.Open() {
			return apperr.ErrAlreadyReturned
		}
		if day.Before(loan.IssuedOn) {
			return apperr.InvalidArgument(fmt.Sprintf("return date %s is before issue date %s",
				day.Format(time.DateOnly), loan.IssuedOn.Format(time.DateOnly)))
		}

		stock, err := catalog.LockStock(ctx, tx, loan.TitleID)
		if err != nil {
			return err
		}
		if !stock.Consistent() || stock.AvailableCopies >= stock.TotalCopies {
			return &integrityError{Op: "return", TitleID: stock.ID, LoanID: loan.ID,
				Total: stock.TotalCopies, Available: stock.AvailableCopies}
		}

		marked, err := ledger.MarkReturned(ctx, tx, loan.ID, day)
		if err != nil {
			return err
		}
		if !marked {
			return apperr.ErrAlreadyReturned
		}
		credited, err := creditCopy(ctx, tx, loan.TitleID)
		if err != nil {
			return err
		}
		if !credited {
			return &integrityError{Op: "return", TitleID: stock.ID, LoanID: loan.ID,
				Total: stock.TotalCopies, Available: stock.AvailableCopies}
		}

		actor := audit.Actor(ctx)
		if !actor.Valid {
			actor = audit.For(loan.AccountID)
		}
		return s.audit.Append(ctx, tx, audit.Entry{
			AccountID:   actor,
			Action:      audit.ActionReturned,
			Description: fmt.Sprintf("returned %s", loan.ID),
			Metadata: map[string]any{
				"loan_id":    loan.ID.String(),
				"title_id":   loan.TitleID.String(),
				"account_id": loan.AccountID.String(),
			},
		})
	})
	s.observe(ctx, "return", start, err)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	loan.ReturnedOn = &day
	s.metrics.returns.Add(ctx, 1)
	s.logger.InfoContext(ctx, "loan returned",
		"loan_id", loan.ID, "account_id", loan.AccountID, "title_id", loan.TitleID)
	return loan, nil
}

// Restock adds copies to a title under its row lock.
func (s *service) Restock(ctx context.Context, titleID uuid.UUID, additional int) (*catalog.Title, error) {
	ctx, span := s.tracer.Start(ctx, "circulation.restock", trace.WithAttributes(
		attribute.String("title.id", titleID.String()),
		attribute.Int("restock.additional", additional),
	))
	defer span.End()

	if additional < 1 {
		return nil, apperr.InvalidArgument(fmt.Sprintf("restock amount must be at least 1, got %d", additional))
	}

	var title *catalog.Title
	start := time.Now()
	err := s.store.WithTx(ctx, "circulation.restock", func(tx *store.Tx) error {
		stock, err := catalog.LockStock(ctx, tx, titleID)
		if err != nil {
			return err
		}
		if !stock.Consistent() {
			return &integrityError{Op: "restock", TitleID: stock.ID, Total: stock.TotalCopies, Available: stock.AvailableCopies}
		}

		added, err := addCopies(ctx, tx, titleID, additional)
		if err != nil {
			return err
		}
		if !added {
			return apperr.ErrTitleNotFound
		}

		if err := s.audit.Append(ctx, tx, audit.Entry{
			AccountID:   audit.Actor(ctx),
			Action:      audit.ActionRestocked,
			Description: fmt.Sprintf("restocked title %s by %d", titleID, additional),
			Metadata: map[string]any{
				"title_id":   titleID.String(),
				"additional": additional,
				"total":      stock.TotalCopies + additional,
			},
		}); err != nil {
			return err
		}

		title, err = catalog.ReadTitle(ctx, tx, titleID)
		return err
	})
	s.observe(ctx, "restock", start, err)
	if err != nil {
		return nil, s.fail(ctx, err)
	}

	s.logger.InfoContext(ctx, "title restocked",
		"title_id", titleID, "additional", additional, "total", title.TotalCopies)
	return title, nil
}

// OverdueReport delegates to the ledger.
func (s *service) OverdueReport(ctx context.Context, today time.Time) iter.Seq2[ledger.OverdueLoan, error] {
	return s.ledger.OverdueLoans(ctx, today)
}

func (s *service) observe(ctx context.Context, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(apperr.CodeOf(err))
	}
	s.metrics.duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

// fail records the side effects of a failed transaction and returns the
// error for the caller.
func (s *service) fail(ctx context.Context, err error) error {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)

	var integrity *integrityError
	switch {
	case errors.As(err, &integrity):
		s.alarm(ctx, integrity)
		return apperr.Wrap(apperr.CodeInventoryInconsistency, integrity.Error(), integrity)
	case errors.Is(err, apperr.ErrBusy):
		s.metrics.busy.Add(ctx, 1)
		s.logger.WarnContext(ctx, "circulation transaction busy", "error", err)
	}
	return err
}

// alarm reports a broken title invariant. The failed transaction has already
// rolled back, so the audit entry is written in its own.
func (s *service) alarm(ctx context.Context, e *integrityError) {
	s.metrics.alarms.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", e.Op)))
	s.logger.ErrorContext(ctx, "inventory integrity alarm",
		"operation", e.Op, "title_id", e.TitleID, "loan_id", e.LoanID,
		"total_copies", e.Total, "available_copies", e.Available)

	metadata := map[string]any{
		"operation":        e.Op,
		"title_id":         e.TitleID.String(),
		"total_copies":     e.Total,
		"available_copies": e.Available,
	}
	if e.LoanID != uuid.Nil {
		metadata["loan_id"] = e.LoanID.String()
	}
	if err := s.audit.Alarm(ctx, audit.Entry{
		AccountID:   audit.Actor(ctx),
		Description: e.Error(),
		Metadata:    metadata,
	}); err != nil {
		s.logger.ErrorContext(ctx, "record integrity alarm", "error", err)
	}
}
