package gateway

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidPayment marks a payment proof that was presented but refused.
var ErrInvalidPayment = errors.New("invalid payment")

// Requirement is what a payment proof must satisfy for one call.
type Requirement struct {
	Terms
	Resource    string
	Description string
}

// Payment is a verified, not yet settled, payment proof.
type Payment struct {
	Header string
	Payer  string
	Req    Requirement
}

// Settlement is the outcome of capturing a payment.
type Settlement struct {
	// ProofHash identifies the payment in the ledger.
	ProofHash string
	// Response is echoed to the caller in X-PAYMENT-RESPONSE when set.
	Response string
}

// Verifier checks payment proofs before a skill runs and settles them after it succeeds.
type Verifier interface {
	Verify(ctx context.Context, header string, req Requirement) (*Payment, error)
	Settle(ctx context.Context, p *Payment) (*Settlement, error)
}

// HeaderVerifier accepts any non-empty proof. It is the demo mode: the proof is
// never checked against a chain, only fingerprinted for the ledger.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, header string, req Requirement) (*Payment, error) {
	if strings.TrimSpace(header) == "" {
		return nil, ErrInvalidPayment
	}
	return &Payment{Header: header, Req: req}, nil
}

func (HeaderVerifier) Settle(_ context.Context, p *Payment) (*Settlement, error) {
	sum := sha256.Sum256([]byte(p.Header))
	return &Settlement{ProofHash: hex.EncodeToString(sum[:])}, nil
}
