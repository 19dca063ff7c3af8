package template

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clawmart/clawmart/pkg/cerr"
)

type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

func (h *Handler) MountPrivate(r chi.Router) {
	r.Get("/templates", cerr.HandlerFunc(h.list))
	r.Get("/templates/{id}", cerr.HandlerFunc(h.get))
}

func (h *Handler) list(r *http.Request) (any, error) {
	templates, err := h.server.List(r.Context())
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []*Template{}
	}
	return map[string]any{"templates": templates}, nil
}

func (h *Handler) get(r *http.Request) (any, error) {
	return h.server.Get(r.Context(), chi.URLParam(r, "id"))
}
