// internal/membership/implementation.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/store"
)

const accountsTable = "accounts"

// Options tune the credential store. Zero values select defaults.
type Options struct {
	Params Params
	// Limiter throttles Authenticate process-wide. Nil disables throttling.
	Limiter *rate.Limiter
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewLimiter builds the authentication throttle. A non-positive rate disables it.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// service implements the Service interface.
type service struct {
	store   *store.Store
	audit   *audit.Log
	params  Params
	dummy   string
	limiter *rate.Limiter
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewService creates the credential store.
func NewService(s *store.Store, log *audit.Log, opts Options) (Service, error) {
	params := opts.Params.withDefaults()

	// Verified against when a username is unknown so both failure paths pay
	// the same argon2 cost.
	dummy, err := hashPassword("librarydesk-absent-account", params)
	if err != nil {
		return nil, fmt.Errorf("build dummy digest: %w", err)
	}

	svc := &service{
		store:   s,
		audit:   log,
		params:  params,
		dummy:   dummy,
		limiter: opts.Limiter,
		logger:  opts.Logger,
		tracer:  otel.Tracer("librarydesk/membership"),
		now:     opts.Now,
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Register creates an account with a salted argon2id digest.
func (s *service) Register(ctx context.Context, username, password, roleName string) (*Account, error) {
	ctx, span := s.tracer.Start(ctx, "membership.register")
	defer span.End()

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperr.InvalidArgument("username is required")
	}
	if password == "" {
		return nil, apperr.InvalidArgument("password is required")
	}
	role, err := ParseRole(roleName)
	if err != nil {
		return nil, err
	}

	digest, err := hashPassword(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	account := &Account{
		ID:             uuid.New(),
		Username:       username,
		PasswordDigest: digest,
		Role:           role,
		CreatedAt:      s.now().UTC(),
	}
	span.SetAttributes(attribute.String("account.id", account.ID.String()))

	actor := audit.Actor(ctx)
	if !actor.Valid {
		actor = audit.For(account.ID)
	}

	err = s.store.WithTx(ctx, "membership.register", func(tx *store.Tx) error {
		_, err := store.Exec(ctx, tx, tx.Builder().Insert(accountsTable).Rows(goqu.Record{
			"id":              account.ID,
			"username":        account.Username,
			"password_digest": account.PasswordDigest,
			"role":            string(account.Role),
			"created_at":      account.CreatedAt,
		}).Prepared(true))
		if err != nil {
			if store.IsUniqueViolation(err) {
				return apperr.Wrap(apperr.CodeDuplicateUsername,
					fmt.Sprintf("username %q is already taken", username), err)
			}
			return fmt.Errorf("insert account: %w", err)
		}

		return s.audit.Append(ctx, tx, audit.Entry{
			AccountID:   actor,
			Action:      audit.ActionRegistered,
			Description: fmt.Sprintf("registered %s as %s", account.Username, account.Role),
			Metadata:    map[string]any{"account_id": account.ID.String(), "role": string(account.Role)},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID, "username", account.Username, "role", account.Role)
	return account, nil
}

// Authenticate verifies credentials. Unknown usernames are checked against a
// dummy digest and report the same error as a wrong password.
func (s *service) Authenticate(ctx context.Context, username, password string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "membership.authenticate")
	defer span.End()

	if s.limiter != nil && !s.limiter.Allow() {
		return nil, apperr.New(apperr.CodeBusy, "too many authentication attempts, retry")
	}

	account, err := s.accountByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, apperr.ErrAccountNotFound) {
		return nil, err
	}

	digest := s.dummy
	if account != nil {
		digest = account.PasswordDigest
	}

	ok, verr := verifyPassword(password, digest)
	if verr != nil {
		s.logger.WarnContext(ctx, "unreadable password digest", "error", verr)
	}
	if account == nil || !ok || verr != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	span.SetAttributes(attribute.String("account.id", account.ID.String()))
	return &Session{
		AccountID: account.ID,
		Username:  account.Username,
		Role:      account.Role,
	}, nil
}

// GetAccount returns the account with id.
func (s *service) GetAccount(ctx context.Context, id uuid.UUID) (*Account, error) {
	ctx, span := s.tracer.Start(ctx, "membership.get_account",
		trace.WithAttributes(attribute.String("account.id", id.String())))
	defer span.End()

	return s.getAccount(ctx, goqu.C("id").Eq(id))
}

func (s *service) accountByUsername(ctx context.Context, username string) (*Account, error) {
	if username == "" {
		return nil, apperr.ErrAccountNotFound
	}
	return s.getAccount(ctx, goqu.C("username").Eq(username))
}

func (s *service) getAccount(ctx context.Context, where exp.Expression) (*Account, error) {
	account := &Account{}
	err := store.Get(ctx, s.store.DB(), account, s.store.Builder().From(accountsTable).
		Select("id", "username", "password_digest", "role", "created_at").
		Where(where).
		Prepared(true))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", store.Classify(err))
	}
	return account, nil
}
