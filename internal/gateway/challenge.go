package gateway

import (
	"math"
	"net/http"
	"strconv"

	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/internal/transaction"
)

const (
	X402Version = 1

	PaymentHeader         = "X-PAYMENT"
	PaymentRequiredHeader = "X-PAYMENT-REQUIRED"
	PaymentResponseHeader = "X-PAYMENT-RESPONSE"

	SchemeExact = "exact"
	MimeJSON    = "application/json"

	// usdcDecimals scales a USDC price to atomic units.
	usdcDecimals = 6
)

// Terms is one acceptable way to pay for a call.
type Terms struct {
	Scheme  string `json:"scheme"`
	Network string `json:"network"`
	Price   string `json:"price"`
	Asset   string `json:"asset"`
	PayTo   string `json:"payTo"`
}

// AtomicAmount is Price expressed in the asset's smallest unit.
func (t Terms) AtomicAmount() string {
	p, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return "0"
	}
	return strconv.FormatInt(int64(math.Round(p*math.Pow10(usdcDecimals))), 10)
}

// Challenge is the 402 body telling the caller how to pay.
type Challenge struct {
	X402Version int     `json:"x402Version"`
	Accepts     []Terms `json:"accepts"`
	Description string  `json:"description"`
	MimeType    string  `json:"mimeType"`
	// Error explains why a presented payment was refused.
	Error string `json:"error,omitempty"`
}

func (*Challenge) HTTPStatus() int { return http.StatusPaymentRequired }

func (*Challenge) HTTPHeader() http.Header {
	h := http.Header{}
	h.Set(PaymentRequiredHeader, "true")
	return h
}

func (s *Server) challenge(sk *skill.Skill, reason string) *Challenge {
	return &Challenge{
		X402Version: X402Version,
		Accepts:     []Terms{s.terms(sk)},
		Description: sk.Description,
		MimeType:    MimeJSON,
		Error:       reason,
	}
}

func (s *Server) terms(sk *skill.Skill) Terms {
	return Terms{
		Scheme:  SchemeExact,
		Network: s.payment.Network,
		Price:   transaction.FormatAmount(sk.PricePerCall),
		Asset:   s.payment.Asset,
		PayTo:   s.payment.PayTo,
	}
}
