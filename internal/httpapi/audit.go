// internal/httpapi/audit.go
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/httpapi/render"
	"librarydesk/internal/membership"
)

type auditHandler struct {
	log *audit.Log
}

// list serves GET /audit?account_id=&action=&limit= for librarians.
func (h *auditHandler) list(w http.ResponseWriter, r *http.Request) {
	sess, err := membership.RequireSession(r.Context())
	if err == nil {
		err = sess.Require(membership.RoleLibrarian)
	}
	if err != nil {
		render.Error(w, r, err)
		return
	}

	query := r.URL.Query()
	filter := audit.Filter{Action: query.Get("action")}
	if raw := query.Get("account_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			render.Error(w, r, apperr.InvalidArgument("invalid account_id"))
			return
		}
		filter.AccountID = audit.For(id)
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			render.Error(w, r, apperr.InvalidArgument("limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	entries, err := h.log.List(r.Context(), filter)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, entries)
}
