package transaction

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
}

type Server struct {
	repo  Repository
	users UserResolver
	bus   eventbus.Publisher
}

func NewServer(repo Repository, users UserResolver, bus eventbus.Publisher) *Server {
	return &Server{repo: repo, users: users, bus: bus}
}

type RecordInput struct {
	SkillID   string
	BuyerID   string
	SellerID  string
	Amount    float64
	ProofHash string
}

// Record inserts a completed transaction.
func (s *Server) Record(ctx context.Context, in RecordInput) (*Transaction, error) {
	if in.SkillID == "" || in.SellerID == "" {
		return nil, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("transaction requires skill and seller, got %+v", in))
	}
	if in.Amount < 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "amount must not be negative", nil)
	}
	t := &Transaction{
		ID:        ulid.Make().String(),
		SkillID:   in.SkillID,
		BuyerID:   in.BuyerID,
		SellerID:  in.SellerID,
		Amount:    in.Amount,
		Status:    StatusCompleted,
		ProofHash: in.ProofHash,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Void removes a transaction whose follow-up bookkeeping failed.
func (s *Server) Void(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Announce publishes the completed sale to the seller.
func (s *Server) Announce(t *Transaction, skillName string) {
	s.bus.PublishNew(eventbus.EventTransactionCompleted, t.ID, t.SellerID, map[string]string{
		"skill_id":   t.SkillID,
		"skill_name": skillName,
		"amount":     FormatAmount(t.Amount),
	})
}

func (s *Server) Purchases(ctx context.Context, externalID string) ([]*Transaction, error) {
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListByBuyer(ctx, u.ID)
}

func (s *Server) Sales(ctx context.Context, externalID string) ([]*Transaction, error) {
	u, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListBySeller(ctx, u.ID)
}

func (s *Server) ListBySkill(ctx context.Context, skillID string) ([]*Transaction, error) {
	return s.repo.ListBySkill(ctx, skillID)
}
