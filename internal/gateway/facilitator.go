package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/clawmart/clawmart/pkg/cerr"
)

// FacilitatorVerifier delegates verification and settlement to an x402 facilitator.
type FacilitatorVerifier struct {
	baseURL string
	client  *http.Client
}

func NewFacilitatorVerifier(baseURL string, client *http.Client) *FacilitatorVerifier {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &FacilitatorVerifier{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type paymentRequirements struct {
	Scheme            string `json:"scheme"`
	Network           string `json:"network"`
	MaxAmountRequired string `json:"maxAmountRequired"`
	Resource          string `json:"resource"`
	Description       string `json:"description"`
	MimeType          string `json:"mimeType"`
	PayTo             string `json:"payTo"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Asset             string `json:"asset"`
}

type facilitatorRequest struct {
	X402Version         int                 `json:"x402Version"`
	PaymentPayload      json.RawMessage     `json:"paymentPayload"`
	PaymentRequirements paymentRequirements `json:"paymentRequirements"`
}

type verifyResponse struct {
	IsValid       bool   `json:"isValid"`
	InvalidReason string `json:"invalidReason,omitempty"`
	Payer         string `json:"payer,omitempty"`
}

type settleResponse struct {
	Success     bool   `json:"success"`
	ErrorReason string `json:"errorReason,omitempty"`
	Transaction string `json:"transaction"`
	Network     string `json:"network"`
	Payer       string `json:"payer,omitempty"`
}

// decodePayload accepts the base64 JSON form of X-PAYMENT, and raw JSON for convenience.
func decodePayload(header string) (json.RawMessage, error) {
	header = strings.TrimSpace(header)
	if json.Valid([]byte(header)) {
		return json.RawMessage(header), nil
	}
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if raw, err := enc.DecodeString(header); err == nil && json.Valid(raw) {
			return raw, nil
		}
	}
	return nil, fmt.Errorf("%w: payment header is not base64 encoded JSON", ErrInvalidPayment)
}

func (f *FacilitatorVerifier) request(header string, req Requirement) (*facilitatorRequest, error) {
	payload, err := decodePayload(header)
	if err != nil {
		return nil, err
	}
	return &facilitatorRequest{
		X402Version:    X402Version,
		PaymentPayload: payload,
		PaymentRequirements: paymentRequirements{
			Scheme:            req.Scheme,
			Network:           req.Network,
			MaxAmountRequired: req.AtomicAmount(),
			Resource:          req.Resource,
			Description:       req.Description,
			MimeType:          MimeJSON,
			PayTo:             req.PayTo,
			MaxTimeoutSeconds: 60,
			Asset:             req.Asset,
		},
	}, nil
}

func (f *FacilitatorVerifier) Verify(ctx context.Context, header string, req Requirement) (*Payment, error) {
	body, err := f.request(header, req)
	if err != nil {
		return nil, err
	}
	var res verifyResponse
	if err := f.post(ctx, "/verify", body, &res); err != nil {
		return nil, err
	}
	if !res.IsValid {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayment, res.InvalidReason)
	}
	return &Payment{Header: header, Payer: res.Payer, Req: req}, nil
}

func (f *FacilitatorVerifier) Settle(ctx context.Context, p *Payment) (*Settlement, error) {
	body, err := f.request(p.Header, p.Req)
	if err != nil {
		return nil, err
	}
	var res settleResponse
	if err := f.post(ctx, "/settle", body, &res); err != nil {
		return nil, err
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayment, res.ErrorReason)
	}
	encoded, err := json.Marshal(res)
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "server error", err)
	}
	return &Settlement{
		ProofHash: res.Transaction,
		Response:  base64.StdEncoding.EncodeToString(encoded),
	}, nil
}

func (f *FacilitatorVerifier) post(ctx context.Context, path string, in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return cerr.NewError(cerr.Internal, "server error", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := f.client.Do(req)
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "payment facilitator unavailable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "payment facilitator unavailable", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return cerr.NewError(cerr.Unavailable, "payment facilitator unavailable",
			fmt.Errorf("facilitator %s returned %d: %s", path, resp.StatusCode, raw))
	}
	// 4xx replies still carry a verdict body.
	if err := json.Unmarshal(raw, out); err != nil {
		return cerr.NewError(cerr.Unavailable, "payment facilitator unavailable",
			fmt.Errorf("facilitator %s returned %d with undecodable body: %w", path, resp.StatusCode, err))
	}
	return nil
}
