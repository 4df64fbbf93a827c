// internal/httpapi/router.go

// Package httpapi assembles the HTTP surface: one chi router over the
// membership, catalog and circulation handlers with bearer-token sessions.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"librarydesk/internal/audit"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/httpapi/render"
	"librarydesk/internal/membership"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the handlers and collaborators the router serves.
type Deps struct {
	Sessions    *membership.Sessions
	Accounts    AccountLookup
	Membership  *membership.Handler
	Catalog     *catalog.Handler
	Circulation *circulation.Handler
	Audit       *audit.Log
	Health      Pinger
	Logger      *slog.Logger
}

// NewRouter returns the HTTP handler for the whole API.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(authenticate(d.Sessions, d.Accounts))

	r.Get("/healthz", health(d.Health))
	r.Post("/accounts", d.Membership.HandleRegister)
	r.Post("/sessions", d.Membership.HandleCreateSession)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/titles", d.Catalog.HandleListTitles)
		r.Post("/titles", d.Catalog.HandleAddTitle)
		r.Get("/titles/{id}", d.Catalog.HandleGetTitle)
		r.Post("/titles/{id}/restock", d.Circulation.HandleRestock)

		r.Post("/loans", d.Circulation.HandleBorrow)
		r.Post("/loans/{id}/return", d.Circulation.HandleReturn)
		r.Get("/accounts/{id}/loans", d.Circulation.HandleOpenLoans)
		r.Get("/reports/overdue", d.Circulation.HandleOverdue)

		audits := &auditHandler{log: d.Audit}
		r.Get("/audit", audits.list)
	})

	return r
}

func health(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "error", err)
			render.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		render.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
