package billing

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

func (h *Handler) MountPrivate(r chi.Router) {
	r.Post("/billing/checkout", cerr.HandlerFunc(h.checkout))
}

// MountWebhooks registers the callbacks signed by external collaborators.
func (h *Handler) MountWebhooks(r chi.Router) {
	r.Post("/webhooks/stripe", cerr.HandlerFunc(h.stripe))
	r.Post("/webhooks/clerk", cerr.HandlerFunc(h.clerk))
}

type checkoutRequest struct {
	PlanID user.Plan `json:"planId"`
}

func (h *Handler) checkout(r *http.Request) (any, error) {
	var req checkoutRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	return h.server.Checkout(r.Context(), auth.Subject(r.Context()), req.PlanID)
}

type receivedResponse struct {
	Received bool `json:"received"`
}

func readPayload(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "failed to read request body", err)
	}
	return payload, nil
}

func (h *Handler) stripe(r *http.Request) (any, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}
	if err := h.server.HandleStripe(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		return nil, err
	}
	return &receivedResponse{Received: true}, nil
}

func (h *Handler) clerk(r *http.Request) (any, error) {
	payload, err := readPayload(r)
	if err != nil {
		return nil, err
	}
	if err := h.server.HandleClerk(r.Context(), payload, r.Header); err != nil {
		return nil, err
	}
	return &receivedResponse{Received: true}, nil
}
