package agent

import (
	"net/http"

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
	r.Get("/workforces/{workforceID}/agents", cerr.HandlerFunc(h.list))
	r.Post("/workforces/{workforceID}/agents", cerr.HandlerFunc(h.create))
	r.Patch("/agents/{id}", cerr.HandlerFunc(h.update))
	r.Delete("/agents/{id}", cerr.HandlerFunc(h.delete))
}

func (h *Handler) list(r *http.Request) (any, error) {
	agents, err := h.server.List(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "workforceID"))
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []*Agent{}
	}
	return map[string]any{"agents": agents}, nil
}

type created struct {
	*Agent
}

func (created) HTTPStatus() int { return http.StatusCreated }

func (h *Handler) create(r *http.Request) (any, error) {
	var in CreateInput
	if err := cerr.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	a, err := h.server.Create(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "workforceID"), in)
	if err != nil {
		return nil, err
	}
	return created{a}, nil
}

func (h *Handler) update(r *http.Request) (any, error) {
	var p Patch
	if err := cerr.DecodeJSON(r, &p); err != nil {
		return nil, err
	}
	return h.server.Update(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"), p)
}

func (h *Handler) delete(r *http.Request) (any, error) {
	report, err := h.server.Delete(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": report}, nil
}
