// internal/catalog/handler.go
package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/httpapi/render"
	"librarydesk/internal/membership"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// HandleListTitles serves GET /titles.
func (h *Handler) HandleListTitles(w http.ResponseWriter, r *http.Request) {
	titles := []Title{}
	for title, err := range h.service.ListTitles(r.Context()) {
		if err != nil {
			render.Error(w, r, err)
			return
		}
		titles = append(titles, title)
	}
	render.JSON(w, http.StatusOK, titles)
}

// HandleAddTitle serves POST /titles for librarians.
func (h *Handler) HandleAddTitle(w http.ResponseWriter, r *http.Request) {
	if !requireLibrarian(w, r) {
		return
	}

	var req struct {
		Name        string `json:"name"`
		Author      string `json:"author"`
		Category    string `json:"category"`
		TotalCopies int    `json:"total_copies"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	title, err := h.service.AddTitle(r.Context(), req.Name, req.Author, req.Category, req.TotalCopies)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, title)
}

// HandleGetTitle serves GET /titles/{id}.
func (h *Handler) HandleGetTitle(w http.ResponseWriter, r *http.Request) {
	id, err := titleID(r)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	title, err := h.service.GetTitle(r.Context(), id)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusOK, title)
}

func titleID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, apperr.InvalidArgument("invalid title ID")
	}
	return id, nil
}

func requireLibrarian(w http.ResponseWriter, r *http.Request) bool {
	sess, err := membership.RequireSession(r.Context())
	if err == nil {
		err = sess.Require(membership.RoleLibrarian)
	}
	if err != nil {
		render.Error(w, r, err)
		return false
	}
	return true
}
