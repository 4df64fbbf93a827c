// internal/httpapi/render/render.go

// Package render writes JSON responses and coded error bodies for the HTTP
// handlers of every bounded context.
package render

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"librarydesk/internal/apperr"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DateLayout is the wire format of calendar days.
const DateLayout = "2006-01-02"

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Error writes err as {"error": {"code", "message"}}. Errors without a code
// are logged and reported as a generic internal error.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		JSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
			Code:    apperr.CodeUnknown,
			Message: "internal error",
		}})
		return
	}
	if appErr.Code.HTTPStatus() >= http.StatusInternalServerError {
		slog.WarnContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "code", appErr.Code, "error", err)
	}
	JSON(w, appErr.Code.HTTPStatus(), errorBody{Error: errorDetail{
		Code:    appErr.Code,
		Message: appErr.Error(),
	}})
}

// Decode reads a JSON body into v. An empty body leaves v untouched.
func Decode(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return apperr.InvalidArgument("malformed request body: " + err.Error())
}

// Date parses an optional YYYY-MM-DD value, returning fallback when empty.
func Date(value string, fallback time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	day, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, apperr.InvalidArgument("dates must be formatted as YYYY-MM-DD")
	}
	return day, nil
}
