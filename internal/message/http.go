package message

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/pkg/cerr"
)

type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

func (h *Handler) MountPrivate(r chi.Router) {
	r.Get("/workforces/{workforceID}/messages", cerr.HandlerFunc(h.list))
	r.Post("/workforces/{workforceID}/messages", cerr.HandlerFunc(h.send))
}

func (h *Handler) list(r *http.Request) (any, error) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, cerr.NewError(cerr.InvalidArgument, "limit must be an integer", err)
		}
		limit = n
	}
	msgs, err := h.server.List(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "workforceID"), limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []*Message{}
	}
	return map[string]any{"messages": msgs}, nil
}

type created struct {
	*Message
}

func (created) HTTPStatus() int { return http.StatusCreated }

func (h *Handler) send(r *http.Request) (any, error) {
	var in SendInput
	if err := cerr.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	m, err := h.server.Send(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "workforceID"), in)
	if err != nil {
		return nil, err
	}
	return created{m}, nil
}
