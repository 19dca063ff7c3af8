package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clawmart/clawmart/internal/cascade"
	"github.com/clawmart/clawmart/pkg/cerr"
)

// Authorizer checks that the caller owns a workforce.
type Authorizer interface {
	Authorize(ctx context.Context, externalID, workforceID string) error
}

type Cascader interface {
	Delete(ctx context.Context, kind cascade.Kind, id string) (cascade.Report, error)
}

type Server struct {
	repo    Repository
	authz   Authorizer
	cascade Cascader
}

func NewServer(repo Repository, authz Authorizer, cascade Cascader) *Server {
	return &Server{repo: repo, authz: authz, cascade: cascade}
}

func (s *Server) List(ctx context.Context, externalID, workforceID string) ([]*Agent, error) {
	if err := s.authz.Authorize(ctx, externalID, workforceID); err != nil {
		return nil, err
	}
	return s.repo.ListByWorkforce(ctx, workforceID)
}

func (s *Server) Create(ctx context.Context, externalID, workforceID string, in CreateInput) (*Agent, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Role = strings.TrimSpace(in.Role)
	if in.Name == "" || in.Role == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "name and role are required", nil)
	}
	if err := s.authz.Authorize(ctx, externalID, workforceID); err != nil {
		return nil, err
	}
	existing, err := s.repo.ListByWorkforce(ctx, workforceID)
	if err != nil {
		return nil, err
	}
	position := 0
	if n := len(existing); n > 0 {
		position = existing[n-1].Position + 1
	}
	a := New(ulid.Make().String(), workforceID, position, in, time.Now())
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// owned loads an agent and checks the caller owns its workforce.
func (s *Server) owned(ctx context.Context, externalID, id string) (*Agent, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authz.Authorize(ctx, externalID, a.WorkforceID); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Server) Update(ctx context.Context, externalID, id string, p Patch) (*Agent, error) {
	if p.Status != nil && !p.Status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid status %q", *p.Status), nil)
	}
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "name must not be empty", nil)
	}
	if _, err := s.owned(ctx, externalID, id); err != nil {
		return nil, err
	}
	return s.repo.Mutate(ctx, id, func(a *Agent) error {
		if p.Name != nil {
			a.Name = strings.TrimSpace(*p.Name)
		}
		if p.Role != nil {
			a.Role = *p.Role
		}
		if p.SystemPrompt != nil {
			a.SystemPrompt = *p.SystemPrompt
		}
		if p.Tools != nil {
			a.Tools = append([]string(nil), (*p.Tools)...)
		}
		if p.Status != nil {
			a.Status = *p.Status
		}
		return nil
	})
}

// Delete removes the agent and its messages.
func (s *Server) Delete(ctx context.Context, externalID, id string) (cascade.Report, error) {
	if _, err := s.owned(ctx, externalID, id); err != nil {
		return nil, err
	}
	return s.cascade.Delete(ctx, Kind, id)
}

// Lookup returns an agent without an ownership check.
func (s *Server) Lookup(ctx context.Context, id string) (*Agent, error) {
	return s.repo.Get(ctx, id)
}

// RecordActivity stamps LastActive and, when the agent produced the message, counts it.
func (s *Server) RecordActivity(ctx context.Context, id string, produced bool, at time.Time) error {
	_, err := s.repo.Mutate(ctx, id, func(a *Agent) error {
		if produced {
			a.MessagesProcessed++
		}
		if a.LastActive == nil || at.After(*a.LastActive) {
			a.LastActive = &at
		}
		return nil
	})
	return err
}
