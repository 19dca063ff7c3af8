package user

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/keylock"
)

type Server struct {
	repo  Repository
	bus   eventbus.Publisher
	locks *keylock.Locker
}

func NewServer(repo Repository, bus eventbus.Publisher) *Server {
	return &Server{repo: repo, bus: bus, locks: keylock.New()}
}

type EnsureInput struct {
	ExternalID string `json:"externalId"`
	Email      string `json:"email"`
	Name       string `json:"name,omitempty"`
	ImageURL   string `json:"imageUrl,omitempty"`
}

// Ensure returns the user for in.ExternalID, creating it on the free plan if absent.
// The bool result reports whether a record was created.
func (s *Server) Ensure(ctx context.Context, in EnsureInput) (*User, bool, error) {
	in.ExternalID = strings.TrimSpace(in.ExternalID)
	if in.ExternalID == "" {
		return nil, false, cerr.NewError(cerr.InvalidArgument, "externalId is required", nil)
	}
	unlock := s.locks.Lock(in.ExternalID)
	defer unlock()

	existing, err := s.repo.FindByExternalID(ctx, in.ExternalID)
	if err == nil {
		return existing, false, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, false, err
	}

	now := time.Now()
	u := &User{
		ID:         ulid.Make().String(),
		ExternalID: in.ExternalID,
		Email:      in.Email,
		Name:       in.Name,
		ImageURL:   in.ImageURL,
		Plan:       PlanFree,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, false, err
	}
	return u, true, nil
}

func (s *Server) Get(ctx context.Context, id string) (*User, error) {
	return s.repo.Get(ctx, id)
}

// Resolve maps an identity-provider id to the local user.
func (s *Server) Resolve(ctx context.Context, externalID string) (*User, error) {
	if externalID == "" {
		return nil, cerr.NewError(cerr.Unauthenticated, "authentication required", nil)
	}
	u, err := s.repo.FindByExternalID(ctx, externalID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, cerr.NewError(cerr.NotFound, "user not found", err)
		}
		return nil, err
	}
	return u, nil
}

// UpdatePlan switches the plan and attaches the billing customer id when one is given.
func (s *Server) UpdatePlan(ctx context.Context, externalID string, plan Plan, stripeCustomerID string) (*User, error) {
	if !plan.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid plan: %q", plan), nil)
	}
	unlock := s.locks.Lock(externalID)
	defer unlock()

	u, err := s.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	prev := u.Plan
	u.Plan = plan
	if stripeCustomerID != "" {
		u.StripeCustomerID = stripeCustomerID
	}
	u.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}
	if prev != plan {
		s.bus.PublishNew(eventbus.EventUserPlanChanged, u.ID, u.ID, map[string]string{
			"from": string(prev),
			"to":   string(plan),
		})
	}
	return u, nil
}

func (s *Server) List(ctx context.Context) ([]*User, error) {
	return s.repo.List(ctx)
}
