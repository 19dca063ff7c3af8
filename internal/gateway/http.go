package gateway

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clawmart/clawmart/internal/auth"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/clog"
)

const maxInvokeBody = 1 << 20

type Handler struct {
	server *Server
}

func NewHandler(server *Server) *Handler {
	return &Handler{server: server}
}

// MountPublic mounts the discovery and invocation routes. invoke wraps the
// paid route, typically with a rate limiter.
func (h *Handler) MountPublic(r chi.Router, invoke ...func(http.Handler) http.Handler) {
	r.Get("/skills", cerr.HandlerFunc(h.list))
	r.Get("/skills/{idOrSlug}", cerr.HandlerFunc(h.metadata))
	r.With(invoke...).Post("/skills/{idOrSlug}", cerr.HandlerFunc(h.invoke))
}

type upstreamFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (upstreamFailure) HTTPStatus() int { return http.StatusBadGateway }

func (h *Handler) list(r *http.Request) (any, error) {
	l, err := h.server.Listing(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		// Never hand out a partial listing.
		clog.AddError(r.Context(), err)
		return upstreamFailure{Code: "unavailable", Message: "failed to fetch skills"}, nil
	}
	return l, nil
}

func (h *Handler) metadata(r *http.Request) (any, error) {
	return h.server.Metadata(r.Context(), chi.URLParam(r, "idOrSlug"))
}

func (h *Handler) invoke(r *http.Request) (any, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxInvokeBody))
	if err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "failed to read request body", err)
	}
	return h.server.Invoke(r.Context(), InvokeRequest{
		Ref:     chi.URLParam(r, "idOrSlug"),
		Payment: r.Header.Get(PaymentHeader),
		Caller:  auth.Subject(r.Context()),
		Body:    body,
	})
}
