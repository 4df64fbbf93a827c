// internal/membership/handler.go
package membership

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"librarydesk/internal/httpapi/render"
)

type Handler struct {
	service  Service
	sessions *Sessions
}

func NewHandler(service Service, sessions *Sessions) *Handler {
	return &Handler{service: service, sessions: sessions}
}

// HandleRegister serves POST /accounts. Anyone may register a reader; a
// librarian account can only be created by a librarian.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = string(RoleReader)
	}

	if Role(req.Role) == RoleLibrarian {
		sess, err := RequireSession(r.Context())
		if err == nil {
			err = sess.Require(RoleLibrarian)
		}
		if err != nil {
			render.Error(w, r, err)
			return
		}
	}

	account, err := h.service.Register(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		render.Error(w, r, err)
		return
	}
	render.JSON(w, http.StatusCreated, account)
}

// HandleCreateSession serves POST /sessions and returns a bearer token.
func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := render.Decode(r, &req); err != nil {
		render.Error(w, r, err)
		return
	}

	sess, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	token, expiresAt, err := h.sessions.Issue(*sess)
	if err != nil {
		render.Error(w, r, err)
		return
	}

	render.JSON(w, http.StatusOK, struct {
		Token     string    `json:"token"`
		AccountID uuid.UUID `json:"account_id"`
		Username  string    `json:"username"`
		Role      Role      `json:"role"`
		ExpiresAt time.Time `json:"expires_at"`
	}{token, sess.AccountID, sess.Username, sess.Role, expiresAt})
}
