package pushnotification

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
	r.Route("/push", func(r chi.Router) {
		r.Get("/vapid-public-key", cerr.HandlerFunc(h.vapidPublicKey))
		r.Post("/subscriptions", cerr.HandlerFunc(h.register))
		r.Delete("/subscriptions", cerr.HandlerFunc(h.unregister))
		r.Post("/test", cerr.HandlerFunc(h.sendTest))
	})
}

func (h *Handler) vapidPublicKey(*http.Request) (any, error) {
	key, err := h.server.VAPIDPublicKey()
	if err != nil {
		return nil, err
	}
	return map[string]string{"publicKey": key}, nil
}

func (h *Handler) register(r *http.Request) (any, error) {
	var req RegisterInput
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	sub, err := h.server.Register(r.Context(), auth.Subject(r.Context()), req)
	if err != nil {
		return nil, err
	}
	return map[string]string{"id": sub.ID}, nil
}

type unregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

func (h *Handler) unregister(r *http.Request) (any, error) {
	var req unregisterRequest
	if err := cerr.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if err := h.server.Unregister(r.Context(), auth.Subject(r.Context()), req.Endpoint); err != nil {
		return nil, err
	}
	return map[string]bool{"removed": true}, nil
}

func (h *Handler) sendTest(r *http.Request) (any, error) {
	sent, err := h.server.SendTest(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		return nil, err
	}
	return map[string]int{"sent": sent}, nil
}
