package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/clawmart/clawmart/internal/agent"
	"github.com/clawmart/clawmart/pkg/cerr"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type Authorizer interface {
	Authorize(ctx context.Context, externalID, workforceID string) error
}

// Agents is the slice of the agent service messages depend on.
type Agents interface {
	Lookup(ctx context.Context, id string) (*agent.Agent, error)
	RecordActivity(ctx context.Context, id string, produced bool, at time.Time) error
}

type Server struct {
	repo   Repository
	agents Agents
	authz  Authorizer
}

func NewServer(repo Repository, agents Agents, authz Authorizer) *Server {
	return &Server{repo: repo, agents: agents, authz: authz}
}

type SendInput struct {
	AgentID string `json:"agentId"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (s *Server) Send(ctx context.Context, externalID, workforceID string, in SendInput) (*Message, error) {
	if !in.Role.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid role %q", in.Role), nil)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "content is required", nil)
	}
	if err := s.authz.Authorize(ctx, externalID, workforceID); err != nil {
		return nil, err
	}
	a, err := s.agents.Lookup(ctx, in.AgentID)
	if err != nil && !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	if a == nil || a.WorkforceID != workforceID {
		return nil, cerr.NewError(cerr.InvalidArgument, "agent does not belong to this workforce", err)
	}

	m := &Message{
		ID:          ulid.Make().String(),
		WorkforceID: workforceID,
		AgentID:     a.ID,
		Role:        in.Role,
		Content:     in.Content,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := s.agents.RecordActivity(ctx, a.ID, m.Role == RoleAgent, m.CreatedAt); err != nil {
		slog.WarnContext(ctx, "failed to record agent activity", "agent_id", a.ID, "error", err)
	}
	return m, nil
}

// List returns the workforce's messages newest first. limit <= 0 selects DefaultLimit.
func (s *Server) List(ctx context.Context, externalID, workforceID string, limit int) ([]*Message, error) {
	if err := s.authz.Authorize(ctx, externalID, workforceID); err != nil {
		return nil, err
	}
	return s.repo.ListByWorkforce(ctx, workforceID, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}
