package user

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

// MountPrivate registers routes that require an authenticated caller.
func (h *Handler) MountPrivate(r chi.Router) {
	r.Get("/me", cerr.HandlerFunc(h.me))
	r.Post("/users", cerr.HandlerFunc(h.create))
}

func (h *Handler) MountAdmin(r chi.Router) {
	r.Get("/users", cerr.HandlerFunc(h.list))
	r.Put("/users/{externalID}/plan", cerr.HandlerFunc(h.updatePlan))
}

func (h *Handler) me(r *http.Request) (any, error) {
	return h.server.Resolve(r.Context(), auth.Subject(r.Context()))
}

type createRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type createResponse struct {
	User    *User `json:"user"`
	Created bool  `json:"created"`
}

func (h *Handler) create(r *http.Request) (any, error) {
	var req createRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	id, _ := auth.FromContext(r.Context())
	if req.Email == "" {
		req.Email = id.Email
	}
	if req.Name == "" {
		req.Name = id.Name
	}
	u, created, err := h.server.Ensure(r.Context(), EnsureInput{
		ExternalID: id.Subject,
		Email:      req.Email,
		Name:       req.Name,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		return nil, err
	}
	return &createResponse{User: u, Created: created}, nil
}

func (h *Handler) list(r *http.Request) (any, error) {
	users, err := h.server.List(r.Context())
	if err != nil {
		return nil, err
	}
	return map[string]any{"users": users}, nil
}

type updatePlanRequest struct {
	Plan             Plan   `json:"plan"`
	StripeCustomerID string `json:"stripeCustomerId"`
}

func (h *Handler) updatePlan(r *http.Request) (any, error) {
	var req updatePlanRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.server.UpdatePlan(r.Context(), chi.URLParam(r, "externalID"), req.Plan, req.StripeCustomerID)
}
