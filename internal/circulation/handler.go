// internal/circulation/handler.go
package circulation

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/httpapi/render"
	"librarydesk/internal/ledger"
	"librarydesk/internal/membership"
)

type Handler struct {
	service Service
	ledger  ledger.Service
	now     func() time.Time
}

// NewHandler wires the circulation routes. A nil clock means time.Now.
func NewHandler(service Service, loans ledger.Service, now func() time.Time) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{service: service, ledger: loans, now: now}
}

// HandleBorrow serves POST /loans. Readers borrow for themselves; librarians
// may name any account.
func (h *Handler) HandleBorrow(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	var req struct {
		TitleID        uuid.UUID `json:"title_id"`
		AccountID      uuid.UUID `json:"account_id"`
		Today          string    `json:"today"`
		LoanPeriodDays int       `json:"loan_period_days"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	accountID := sess.AccountID
	if req.AccountID != uuid.Nil && req.AccountID != sess.AccountID {
		if err := sess.Require(membership.RoleLibrarian); err != nil {
			render.Error(w, r, err)
			return
		}
		accountID = req.AccountID
	}
	if req.LoanPeriodDays < 0 {
		render.Error(w, r, apperr.InvalidArgument("loan_period_days must be positive"))
		return
	}

	today, err := render.Date(req.Today, h.now())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	loan, err := h.service.Borrow(r.Context(), BorrowRequest{
		AccountID:      accountID,
		TitleID:        req.TitleID,
		Today:          today,
		LoanPeriodDays: req.LoanPeriodDays,
	})
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, loan)
}

// HandleReturn serves POST /loans/{id}/return. Readers may only return their
// own loans.
func (h *Handler) HandleReturn(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	loanID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, r, apperr.InvalidArgument("invalid loan ID"))
		return
	}

	var req struct {
		Today string `json:"today"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	today, err := render.Date(req.Today, h.now())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	if !sess.IsLibrarian() {
		loan, err := h.ledger.GetLoan(r.Context(), loanID)
		if err != nil {
			render.Error(w, r, err)
			return
		}
		if loan.AccountID != sess.AccountID {
			// Other accounts' loans are invisible to readers.
			render.Error(w, r, apperr.ErrLoanNotFound)
			return
		}
	}

	loan, err := h.service.ReturnLoan(r.Context(), loanID, today)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, loan)
}

// HandleOpenLoans serves GET /accounts/{id}/loans.
func (h *Handler) HandleOpenLoans(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err != nil {
		render.Error(w, r, err)
		return
	}
	accountID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, r, apperr.InvalidArgument("invalid account ID"))
		return
	}
	if accountID != sess.AccountID {
		if err := sess.Require(membership.RoleLibrarian); err != nil {
			render.Error(w, r, err)
			return
		}
	}

	loans := []ledger.Loan{}
	for loan, err := range h.ledger.OpenLoansFor(r.Context(), accountID) {
		if err != nil {
			render.Error(w, r, err)
			return
		}
		loans = append(loans, loan)
	}
	render.JSON(w, http.StatusOK, loans)
}

// HandleOverdue serves GET /reports/overdue?as_of=YYYY-MM-DD for librarians.
func (h *Handler) HandleOverdue(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err == nil {
		err = sess.Require(membership.RoleLibrarian)
	}
	if err != nil {
		render.Error(w, r, err)
		return
	}

	asOf, err := render.Date(r.URL.Query().Get("as_of"), h.now())
	if err != nil {
		render.Error(w, r, err)
		return
	}

	type overdueLoan struct {
		ledger.OverdueLoan
		DaysOverdue int `json:"days_overdue"`
	}
	report := []overdueLoan{}
	for loan, err := range h.service.OverdueReport(r.Context(), asOf) {
		if err != nil {
			render.Error(w, r, err)
			return
		}
		report = append(report, overdueLoan{OverdueLoan: loan, DaysOverdue: loan.DaysOverdue(asOf)})
	}
	render.JSON(w, http.StatusOK, report)
}

// HandleRestock serves POST /titles/{id}/restock for librarians.
func (h *Handler) HandleRestock(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err == nil {
		err = sess.Require(membership.RoleLibrarian)
	}
	if err != nil {
		render.Error(w, r, err)
		return
	}
	titleID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		render.Error(w, r, apperr.InvalidArgument("invalid title ID"))
		return
	}

	var req struct {
		Additional int `json:"additional"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	title, err := h.service.Restock(r.Context(), titleID, req.Additional)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, title)
}
