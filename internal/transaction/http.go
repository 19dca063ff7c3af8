package transaction

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
	r.Get("/transactions/purchases", cerr.HandlerFunc(h.purchases))
	r.Get("/transactions/sales", cerr.HandlerFunc(h.sales))
}

type listResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Total        float64        `json:"total"`
}

func newListResponse(txns []*Transaction) *listResponse {
	res := &listResponse{Transactions: txns}
	if res.Transactions == nil {
		res.Transactions = []*Transaction{}
	}
	for _, t := range txns {
		if t.Status == StatusCompleted {
			res.Total += t.Amount
		}
	}
	return res
}

func (h *Handler) purchases(r *http.Request) (any, error) {
	txns, err := h.server.Purchases(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		return nil, err
	}
	return newListResponse(txns), nil
}

func (h *Handler) sales(r *http.Request) (any, error) {
	txns, err := h.server.Sales(r.Context(), auth.Subject(r.Context()))
	if err != nil {
		return nil, err
	}
	return newListResponse(txns), nil
}
