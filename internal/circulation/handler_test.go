package circulation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/ledger"
	"librarydesk/internal/membership"
	"librarydesk/internal/store/storetest"
)

type handlerFixture struct {
	*fixture
	router http.Handler
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	f := newFixture(t, storetest.NewSQLite(t))
	h := NewHandler(f.engine, f.ledger, func() time.Time { return date(2024, 2, 1) })

	r := chi.NewRouter()
	r.Post("/loans", h.HandleBorrow)
	r.Post("/loans/{id}/return", h.HandleReturn)
	r.Get("/accounts/{id}/loans", h.HandleOpenLoans)
	r.Get("/reports/overdue", h.HandleOverdue)
	r.Post("/titles/{id}/restock", h.HandleRestock)
	return &handlerFixture{fixture: f, router: r}
}

func (f *handlerFixture) do(method, path, body string, sess *membership.Session) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if sess != nil {
		req = req.WithContext(membership.ContextWithSession(req.Context(), *sess))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeLoan(t *testing.T, rec *httptest.ResponseRecorder) ledger.Loan {
	t.Helper()
	var loan ledger.Loan
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &loan))
	return loan
}

func TestHandleBorrowAndReturn(t *testing.T) {
	f := newHandlerFixture(t)
	alice := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	dune := f.title(t, "Dune", 3)

	rec := f.do(http.MethodPost, "/loans", `{"title_id":"`+dune.String()+`","today":"2024-01-01"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	loan := decodeLoan(t, rec)
	assert.Equal(t, alice.AccountID, loan.AccountID)
	assert.Equal(t, date(2024, 1, 15), loan.DueOn.UTC())

	rec = f.do(http.MethodPost, "/loans/"+loan.ID.String()+"/return", `{}`, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	returned := decodeLoan(t, rec)
	require.NotNil(t, returned.ReturnedOn)
	assert.Equal(t, date(2024, 2, 1), returned.ReturnedOn.UTC(), "defaults to the handler clock")

	rec = f.do(http.MethodPost, "/loans/"+loan.ID.String()+"/return", `{}`, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ALREADY_RETURNED")
}

func TestHandleBorrowOnBehalf(t *testing.T) {
	f := newHandlerFixture(t)
	alice := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	bob := f.account(t, "bob")
	librarian := &membership.Session{AccountID: f.account(t, "lib"), Role: membership.RoleLibrarian}
	dune := f.title(t, "Dune", 3)

	body := `{"title_id":"` + dune.String() + `","account_id":"` + bob.String() + `"}`
	rec := f.do(http.MethodPost, "/loans", body, alice)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/loans", body, librarian)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, bob, decodeLoan(t, rec).AccountID)

	entries := f.entries(t, "borrowed")
	require.Len(t, entries, 1)
	assert.Equal(t, librarian.AccountID, entries[0].AccountID.UUID, "audit names the acting librarian")
}

func TestHandleReturnOwnLoansOnly(t *testing.T) {
	f := newHandlerFixture(t)
	alice := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	bob := &membership.Session{AccountID: f.account(t, "bob"), Role: membership.RoleReader}
	dune := f.title(t, "Dune", 3)

	rec := f.do(http.MethodPost, "/loans", `{"title_id":"`+dune.String()+`"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	loan := decodeLoan(t, rec)

	rec = f.do(http.MethodPost, "/loans/"+loan.ID.String()+"/return", `{}`, bob)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, f.available(t, dune))
}

func TestHandleBorrowErrors(t *testing.T) {
	f := newHandlerFixture(t)
	alice := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	single := f.title(t, "Single", 1)

	rec := f.do(http.MethodPost, "/loans", `{"title_id":"`+single.String()+`"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/loans", `{"title_id":"`+uuid.NewString()+`"}`, alice)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/loans", `{"title_id":"`+single.String()+`","today":"01/02/2024"}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/loans", `{"title_id":"`+single.String()+`","loan_period_days":-1}`, alice)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/loans", `{"title_id":"`+single.String()+`"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(http.MethodPost, "/loans", `{"title_id":"`+single.String()+`"}`, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "NO_COPIES_AVAILABLE")
}

func TestHandleOpenLoansAndOverdue(t *testing.T) {
	f := newHandlerFixture(t)
	alice := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	bob := &membership.Session{AccountID: f.account(t, "bob"), Role: membership.RoleReader}
	librarian := &membership.Session{AccountID: f.account(t, "lib"), Role: membership.RoleLibrarian}
	dune := f.title(t, "Dune", 3)

	rec := f.do(http.MethodPost, "/loans", `{"title_id":"`+dune.String()+`","today":"2024-01-01"}`, alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	path := "/accounts/" + alice.AccountID.String() + "/loans"
	rec = f.do(http.MethodGet, path, "", alice)
	require.Equal(t, http.StatusOK, rec.Code)
	var open []ledger.Loan
	require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &open))
	assert.Len(t, open, 1)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, path, "", bob).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, path, "", librarian).Code)

	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/reports/overdue", "", alice).Code)

	rec = f.do(http.MethodGet, "/reports/overdue?as_of=2024-02-01", "", librarian)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"alice"`)
	assert.Contains(t, rec.Body.String(), `"days_overdue":17`)

	rec = f.do(http.MethodGet, "/reports/overdue?as_of=2024-01-15", "", librarian)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandleRestock(t *testing.T) {
	f := newHandlerFixture(t)
	dune := f.title(t, "Dune", 3)
	path := "/titles/" + dune.String() + "/restock"
	reader := &membership.Session{AccountID: f.account(t, "alice"), Role: membership.RoleReader}
	librarian := &membership.Session{Role: membership.RoleLibrarian}

	rec := f.do(http.MethodPost, path, `{"additional":2}`, reader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, path, `{"additional":2}`, librarian)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"total_copies":5`)
	assert.Contains(t, rec.Body.String(), `"available_copies":5`)

	rec = f.do(http.MethodPost, path, `{"additional":0}`, librarian)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/titles/"+uuid.NewString()+"/restock", `{"additional":1}`, librarian)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(http.MethodPost, "/titles/nope/restock", `{"additional":1}`, librarian)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, path, `{"additional":1}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
