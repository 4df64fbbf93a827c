// internal/app/app.go

// Package app wires the store and every service from configuration. Both
// binaries start from here.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"librarydesk/internal/audit"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/config"
	"librarydesk/internal/ledger"
	"librarydesk/internal/membership"
	"librarydesk/internal/store"
)

// App holds the opened store and the services built on it.
type App struct {
	Store       *store.Store
	Audit       *audit.Log
	Membership  membership.Service
	Catalog     catalog.Service
	Ledger      ledger.Service
	Circulation circulation.Service
}

// Open connects to the configured database, applies migrations and builds
// the services.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	s, err := store.Open(ctx, store.Options{
		Driver:      cfg.DBDriver,
		URL:         cfg.DatabaseURL,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log := audit.NewLog(s, nil)
	loans := ledger.NewService(s)

	members, err := membership.NewService(s, log, membership.Options{
		Params: membership.Params{
			Time:      cfg.Argon2Time,
			MemoryKiB: cfg.Argon2MemoryKiB,
			Threads:   cfg.Argon2Threads,
		},
		Limiter: membership.NewLimiter(cfg.AuthRate, cfg.AuthBurst),
		Logger:  logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	engine, err := circulation.NewService(s, loans, log, circulation.Options{
		LoanPeriodDays: cfg.LoanPeriodDays,
		Logger:         logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	return &App{
		Store:       s,
		Audit:       log,
		Membership:  members,
		Catalog:     catalog.NewService(s, log, logger),
		Ledger:      loans,
		Circulation: engine,
	}, nil
}

// Close releases the store.
func (a *App) Close() error {
	return a.Store.Close()
}
