package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/metrics"
	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/internal/transaction"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

// AnonymousBuyer is recorded when neither a session nor the payment names the caller.
const AnonymousBuyer = "anonymous"

type Skills interface {
	Resolve(ctx context.Context, idOrSlug string) (*skill.Skill, error)
	List(ctx context.Context, in skill.ListInput) ([]*skill.Skill, error)
	RecordCall(ctx context.Context, id string) (*skill.Skill, error)
}

type Ledger interface {
	Record(ctx context.Context, in transaction.RecordInput) (*transaction.Transaction, error)
	Void(ctx context.Context, id string) error
	Announce(t *transaction.Transaction, skillName string)
}

type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
}

type Options struct {
	Payment  config.PaymentEnv
	BaseURL  string
	Verifier Verifier
	Executor Executor
	// Cache is optional.
	Cache ListingCache
}

type Server struct {
	skills   Skills
	ledger   Ledger
	users    UserResolver
	payment  config.PaymentEnv
	baseURL  string
	verifier Verifier
	executor Executor
	cache    ListingCache
}

func NewServer(skills Skills, ledger Ledger, users UserResolver, opts Options) *Server {
	s := &Server{
		skills:   skills,
		ledger:   ledger,
		users:    users,
		payment:  opts.Payment,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		verifier: opts.Verifier,
		executor: opts.Executor,
		cache:    opts.Cache,
	}
	if s.verifier == nil {
		s.verifier = HeaderVerifier{}
	}
	if s.executor == nil {
		s.executor = ExampleExecutor{}
	}
	if s.cache == nil {
		s.cache = noCache{}
	}
	return s
}

// InvokeRequest is one call to a paid skill.
type InvokeRequest struct {
	Ref string
	// Payment is the raw X-PAYMENT header, empty when the caller has not paid.
	Payment string
	// Caller is the session subject, empty for anonymous agents.
	Caller string
	Body   []byte
}

type Meta struct {
	Latency string `json:"latency"`
	Model   string `json:"model"`
	Paid    string `json:"paid"`
}

// Result is the body of a fulfilled call.
type Result struct {
	Skill  string          `json:"skill"`
	Input  json.RawMessage `json:"input"`
	Result json.RawMessage `json:"result"`
	Meta   Meta            `json:"meta"`

	TransactionID   string `json:"-"`
	paymentResponse string
}

func (r *Result) HTTPHeader() http.Header {
	h := http.Header{}
	if r.paymentResponse != "" {
		h.Set(PaymentResponseHeader, r.paymentResponse)
	}
	return h
}

func (s *Server) activeSkill(ctx context.Context, ref string) (*skill.Skill, error) {
	sk, err := s.skills.Resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if sk.Status != skill.StatusActive {
		return nil, cerr.NewError(cerr.NotFound, "skill not found", nil)
	}
	return sk, nil
}

// Invoke answers with a *Challenge until a payment is presented, then runs the
// skill and books the sale. A challenge never writes anything.
func (s *Server) Invoke(ctx context.Context, in InvokeRequest) (any, error) {
	sk, err := s.activeSkill(ctx, in.Ref)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Payment) == "" {
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeChallenged).Inc()
		return s.challenge(sk, ""), nil
	}
	if err := sk.ValidateInput(in.Body); err != nil {
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeRejected).Inc()
		return nil, err
	}

	req := Requirement{Terms: s.terms(sk), Resource: s.absolute(sk.Endpoint), Description: sk.Description}
	payment, err := s.verifier.Verify(ctx, in.Payment, req)
	if err != nil {
		return s.refuse(ctx, sk, err)
	}

	started := time.Now()
	input := echoInput(in.Body)
	output, err := s.executor.Execute(ctx, sk, input)
	if err != nil {
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	elapsed := time.Since(started)

	settlement, err := s.verifier.Settle(ctx, payment)
	if err != nil {
		return s.refuse(ctx, sk, err)
	}

	buyer, err := s.buyer(ctx, in.Caller, payment.Payer)
	if err != nil {
		return nil, err
	}
	txn, err := s.ledger.Record(ctx, transaction.RecordInput{
		SkillID:   sk.ID,
		BuyerID:   buyer,
		SellerID:  sk.AuthorID,
		Amount:    sk.PricePerCall,
		ProofHash: settlement.ProofHash,
	})
	if err != nil {
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	if _, err := s.skills.RecordCall(ctx, sk.ID); err != nil {
		if verr := s.ledger.Void(ctx, txn.ID); verr != nil {
			slog.ErrorContext(ctx, "failed to void transaction", "transaction_id", txn.ID, "error", verr)
		}
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	s.ledger.Announce(txn, sk.Name)
	metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeFulfilled).Inc()
	metrics.Revenue.WithLabelValues(sk.Slug).Add(sk.PricePerCall)

	latency := sk.ResponseTime
	if latency == "" {
		latency = elapsed.Round(time.Millisecond).String()
	}
	return &Result{
		Skill:  sk.Name,
		Input:  input,
		Result: output,
		Meta: Meta{
			Latency: latency,
			Model:   "demo",
			Paid:    "$" + transaction.FormatAmount(sk.PricePerCall),
		},
		TransactionID:   txn.ID,
		paymentResponse: settlement.Response,
	}, nil
}

// refuse turns a rejected payment back into a challenge; other failures pass through.
func (s *Server) refuse(ctx context.Context, sk *skill.Skill, err error) (any, error) {
	if !errors.Is(err, ErrInvalidPayment) {
		metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeFailed).Inc()
		return nil, err
	}
	slog.InfoContext(ctx, "payment refused", "skill", sk.Slug, "reason", err.Error())
	metrics.SkillInvocations.WithLabelValues(sk.Slug, metrics.OutcomeRejected).Inc()
	return s.challenge(sk, err.Error()), nil
}

func (s *Server) buyer(ctx context.Context, caller, payer string) (string, error) {
	if caller != "" {
		u, err := s.users.Resolve(ctx, caller)
		switch {
		case err == nil:
			return u.ID, nil
		case !cerr.IsCode(err, cerr.NotFound):
			return "", err
		}
	}
	if payer != "" {
		return payer, nil
	}
	return AnonymousBuyer, nil
}

// echoInput returns the body as JSON, or {} when it is empty or not JSON.
func echoInput(body []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(trimmed)
}
