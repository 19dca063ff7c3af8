package workforce

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
	r.Route("/workforces", func(r chi.Router) {
		r.Get("/", cerr.HandlerFunc(h.list))
		r.Post("/", cerr.HandlerFunc(h.create))
		r.Get("/{id}", cerr.HandlerFunc(h.get))
		r.Delete("/{id}", cerr.HandlerFunc(h.delete))
		r.Patch("/{id}/status", cerr.HandlerFunc(h.updateStatus))
	})
}

func (h *Handler) list(r *http.Request) (any, error) {
	ws, err := h.server.List(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		return nil, err
	}
	return map[string]any{"workforces": ws}, nil
}

type created struct {
	*Summary
}

func (created) HTTPStatus() int { return http.StatusCreated }

func (h *Handler) create(r *http.Request) (any, error) {
	var in CreateInput
	if err := cerr.DecodeJSON(r, &in); err != nil {
		return nil, err
	}
	w, err := h.server.Create(r.Context(), auth.Subject(r.Context()), in)
	if err != nil {
		return nil, err
	}
	return created{w}, nil
}

func (h *Handler) get(r *http.Request) (any, error) {
	return h.server.Get(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"))
}

type statusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) updateStatus(r *http.Request) (any, error) {
	var req statusRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.server.UpdateStatus(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"), req.Status)
}

func (h *Handler) delete(r *http.Request) (any, error) {
	report, err := h.server.Delete(r.Context(), auth.Subject(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	return map[string]any{"deleted": report}, nil
}
