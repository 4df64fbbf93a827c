package render

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
)

func TestErrorUsesCodeAndStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/loans", nil)

	Error(rec, req, apperr.ErrNoCopiesAvailable)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"NO_COPIES_AVAILABLE","message":"no copies available"}}`, rec.Body.String())
}

func TestErrorHidesUncodedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/titles", nil)

	Error(rec, req, errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestDecode(t *testing.T) {
	var body struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Dune"}`))
	require.NoError(t, Decode(req, &body))
	assert.Equal(t, "Dune", body.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	require.NoError(t, Decode(req, &body))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	assert.ErrorIs(t, Decode(req, &body), apperr.ErrInvalidArgument)
}

func TestDate(t *testing.T) {
	fallback := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	got, err := Date("", fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, got)

	got, err = Date("2024-01-15", fallback)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), got)

	_, err = Date("15/01/2024", fallback)
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}
