// internal/drill/drill.go

// Package drill runs a live race drill against a running API: many readers
// try to borrow the last copy of a title at once, and the drill checks that
// the copy counters and the loan outcomes still agree afterwards.
package drill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"librarydesk/internal/apperr"
	"librarydesk/internal/client"
	"librarydesk/internal/membership"
)

// Options configures a drill run.
type Options struct {
	Librarian         string
	LibrarianPassword string
	Readers           int
	Today             time.Time
	Logger            *slog.Logger
}

// Result is what a drill observed.
type Result struct {
	TitleID    uuid.UUID     `json:"title_id"`
	Borrowed   int           `json:"borrowed"`
	NoCopies   int           `json:"no_copies"`
	Busy       int           `json:"busy"`
	Returned   int           `json:"returned"`
	Duplicates int           `json:"duplicate_returns"`
	Violations []string      `json:"violations"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Held reports whether no invariant was violated.
func (r *Result) Held() bool { return len(r.Violations) == 0 }

func (r *Result) violate(format string, args ...any) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

// Drill runs against one API.
type Drill struct {
	api    *client.Client
	opts   Options
	tracer trace.Tracer
}

func New(api *client.Client, opts Options) *Drill {
	if opts.Readers < 2 {
		opts.Readers = 8
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Drill{api: api, opts: opts, tracer: otel.Tracer("librarydesk/drill")}
}

// LastCopy creates a single-copy title, races Readers borrows against it,
// then races two returns of the winning loan.
func (d *Drill) LastCopy(ctx context.Context) (res *Result, err error) {
	ctx, span := d.tracer.Start(ctx, "drill.last_copy",
		trace.WithAttributes(attribute.Int("drill.readers", d.opts.Readers)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetAttributes(
				attribute.Bool("drill.held", res.Held()),
				attribute.Int("drill.violations", len(res.Violations)),
			)
		}
		span.End()
	}()

	started := time.Now()
	sess, err := d.api.Login(ctx, d.opts.Librarian, d.opts.LibrarianPassword)
	if err != nil {
		return nil, fmt.Errorf("librarian login: %w", err)
	}
	librarian := d.api.WithToken(sess.Token)

	run := uuid.NewString()[:8]
	title, err := librarian.AddTitle(ctx, "drill "+run, "Drill Author", "Drill", 1)
	if err != nil {
		return nil, fmt.Errorf("add title: %w", err)
	}
	readers, err := d.enrol(ctx, run)
	if err != nil {
		return nil, err
	}

	res = &Result{TitleID: title.ID}
	winner := d.raceBorrows(ctx, readers, title.ID, res)

	after, err := librarian.GetTitle(ctx, title.ID)
	if err != nil {
		return nil, fmt.Errorf("read title: %w", err)
	}
	if res.Borrowed > 1 {
		res.violate("%d loans issued for a single copy", res.Borrowed)
	}
	if after.AvailableCopies != 1-res.Borrowed {
		res.violate("available copies %d after %d borrows", after.AvailableCopies, res.Borrowed)
	}

	if winner != uuid.Nil {
		d.raceReturns(ctx, librarian, winner, res)
		after, err = librarian.GetTitle(ctx, title.ID)
		if err != nil {
			return nil, fmt.Errorf("read title: %w", err)
		}
		if res.Returned > 1 {
			res.violate("loan returned %d times", res.Returned)
		}
		if want := 1 - res.Borrowed + res.Returned; after.AvailableCopies != want {
			res.violate("available copies %d after return, want %d", after.AvailableCopies, want)
		}
	}

	res.Elapsed = time.Since(started)
	d.opts.Logger.InfoContext(ctx, "race drill finished",
		"title_id", title.ID,
		"borrowed", res.Borrowed,
		"no_copies", res.NoCopies,
		"busy", res.Busy,
		"held", res.Held(),
		"elapsed", res.Elapsed)
	return res, nil
}

func (d *Drill) enrol(ctx context.Context, run string) ([]*client.Client, error) {
	readers := make([]*client.Client, d.opts.Readers)
	for i := range readers {
		username := fmt.Sprintf("drill-%s-%d", run, i)
		password := uuid.NewString()
		if _, err := d.api.Register(ctx, username, password, membership.RoleReader); err != nil {
			return nil, fmt.Errorf("register %s: %w", username, err)
		}
		sess, err := d.api.Login(ctx, username, password)
		if err != nil {
			return nil, fmt.Errorf("login %s: %w", username, err)
		}
		readers[i] = d.api.WithToken(sess.Token)
	}
	return readers, nil
}

func (d *Drill) raceBorrows(ctx context.Context, readers []*client.Client, titleID uuid.UUID, res *Result) uuid.UUID {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		winner uuid.UUID
		start  = make(chan struct{})
	)
	for _, reader := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			loan, err := reader.Borrow(ctx, titleID, uuid.Nil, d.opts.Today)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Borrowed++
				winner = loan.ID
			case errors.Is(err, apperr.ErrNoCopiesAvailable):
				res.NoCopies++
			case errors.Is(err, apperr.ErrBusy):
				res.Busy++
			default:
				res.violate("borrow: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
	return winner
}

func (d *Drill) raceReturns(ctx context.Context, librarian *client.Client, loanID uuid.UUID, res *Result) {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := librarian.Return(ctx, loanID, d.opts.Today)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				res.Returned++
			case errors.Is(err, apperr.ErrAlreadyReturned):
				res.Duplicates++
			case errors.Is(err, apperr.ErrBusy):
				res.Busy++
			default:
				res.violate("return: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()
}
