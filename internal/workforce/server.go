package workforce

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/iter"

	"github.com/clawmart/clawmart/internal/agent"
	"github.com/clawmart/clawmart/internal/cascade"
	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/message"
	"github.com/clawmart/clawmart/internal/template"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/keylock"
)

// RecentMessages is how many messages Get returns with a workforce.
const RecentMessages = 20

type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
}

type Templates interface {
	Get(ctx context.Context, id string) (*template.Template, error)
}

type Cascader interface {
	Delete(ctx context.Context, kind cascade.Kind, id string) (cascade.Report, error)
}

type Server struct {
	repo      Repository
	agents    agent.Repository
	messages  message.Repository
	templates Templates
	users     UserResolver
	cascade   Cascader
	bus       eventbus.Publisher
	// owners serializes quota checks with inserts and deletes per owner.
	owners *keylock.Locker
}

func NewServer(
	repo Repository,
	agents agent.Repository,
	messages message.Repository,
	templates Templates,
	users UserResolver,
	cascade Cascader,
	bus eventbus.Publisher,
) *Server {
	return &Server{
		repo:      repo,
		agents:    agents,
		messages:  messages,
		templates: templates,
		users:     users,
		cascade:   cascade,
		bus:       bus,
		owners:    keylock.New(),
	}
}

type CreateInput struct {
	Name       string  `json:"name"`
	TemplateID string  `json:"templateId,omitempty"`
	Config     *Config `json:"config,omitempty"`
}

// Summary is a workforce with its agents, as listed for its owner.
type Summary struct {
	*Workforce
	AgentCount int            `json:"agentCount"`
	Agents     []*agent.Agent `json:"agents"`
}

type Detail struct {
	*Workforce
	Agents         []*agent.Agent     `json:"agents"`
	RecentMessages []*message.Message `json:"recentMessages"`
}

// Create inserts a workforce for the caller, expanding the template's blueprint
// agents when a template is given. Quota and template checks happen before any write.
func (s *Server) Create(ctx context.Context, externalID string, in CreateInput) (*Summary, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "name is required", nil)
	}
	owner, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	var tmpl *template.Template
	if in.TemplateID != "" {
		tmpl, err = s.templates.Get(ctx, in.TemplateID)
		if err != nil {
			if cerr.IsCode(err, cerr.NotFound) {
				return nil, cerr.NewError(cerr.NotFound, "template not found", err)
			}
			return nil, err
		}
	}

	unlock := s.owners.Lock(owner.ID)
	defer unlock()

	existing, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	if limit := owner.Plan.WorkforceLimit(); limit != user.Unlimited && len(existing) >= limit {
		return nil, cerr.NewError(cerr.ResourceExhausted,
			fmt.Sprintf("workforce limit reached for the %s plan (%d); upgrade to create more workforces", owner.Plan, limit), nil)
	}

	now := time.Now()
	w := &Workforce{
		ID:         ulid.Make().String(),
		Name:       in.Name,
		OwnerID:    owner.ID,
		TemplateID: in.TemplateID,
		Status:     StatusActive,
		Config:     in.Config,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return nil, err
	}

	agents := []*agent.Agent{}
	if tmpl != nil {
		for i, bp := range tmpl.Agents {
			a := agent.New(ulid.Make().String(), w.ID, i, agent.CreateInput{
				Name:         bp.Name,
				Role:         bp.Role,
				Description:  bp.Description,
				SystemPrompt: bp.SystemPrompt,
				Tools:        bp.Tools,
			}, now)
			if err := s.agents.Create(ctx, a); err != nil {
				if _, rbErr := s.cascade.Delete(ctx, Kind, w.ID); rbErr != nil {
					slog.ErrorContext(ctx, "failed to roll back workforce", "workforce_id", w.ID, "error", rbErr)
				}
				return nil, err
			}
			agents = append(agents, a)
		}
	}

	s.bus.PublishNew(eventbus.EventWorkforceCreated, w.ID, owner.ID, map[string]string{
		"name":        w.Name,
		"template_id": w.TemplateID,
		"agents":      strconv.Itoa(len(agents)),
	})
	return &Summary{Workforce: w, AgentCount: len(agents), Agents: agents}, nil
}

// List returns the caller's workforces with their agents. An unknown caller owns nothing.
func (s *Server) List(ctx context.Context, externalID string) ([]*Summary, error) {
	owner, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return []*Summary{}, nil
		}
		return nil, err
	}
	ws, err := s.repo.ListByOwner(ctx, owner.ID)
	if err != nil {
		return nil, err
	}
	return iter.MapErr(ws, func(w **Workforce) (*Summary, error) {
		agents, err := s.agents.ListByWorkforce(ctx, (*w).ID)
		if err != nil {
			return nil, err
		}
		if agents == nil {
			agents = []*agent.Agent{}
		}
		return &Summary{Workforce: *w, AgentCount: len(agents), Agents: agents}, nil
	})
}

func (s *Server) owned(ctx context.Context, externalID, id string) (*Workforce, error) {
	caller, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	w, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.OwnerID != caller.ID {
		return nil, cerr.NewError(cerr.PermissionDenied, "workforce belongs to another user", nil)
	}
	return w, nil
}

// Authorize reports whether the caller owns the workforce.
func (s *Server) Authorize(ctx context.Context, externalID, workforceID string) error {
	_, err := s.owned(ctx, externalID, workforceID)
	return err
}

func (s *Server) Get(ctx context.Context, externalID, id string) (*Detail, error) {
	w, err := s.owned(ctx, externalID, id)
	if err != nil {
		return nil, err
	}
	agents, err := s.agents.ListByWorkforce(ctx, w.ID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByWorkforce(ctx, w.ID, RecentMessages)
	if err != nil {
		return nil, err
	}
	if agents == nil {
		agents = []*agent.Agent{}
	}
	if msgs == nil {
		msgs = []*message.Message{}
	}
	return &Detail{Workforce: w, Agents: agents, RecentMessages: msgs}, nil
}

func (s *Server) UpdateStatus(ctx context.Context, externalID, id string, status Status) (*Workforce, error) {
	if !status.Valid() {
		return nil, cerr.NewError(cerr.InvalidArgument, fmt.Sprintf("invalid status %q", status), nil)
	}
	w, err := s.owned(ctx, externalID, id)
	if err != nil {
		return nil, err
	}
	w.Status = status
	w.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// Delete removes the workforce, its agents and all their messages.
func (s *Server) Delete(ctx context.Context, externalID, id string) (cascade.Report, error) {
	w, err := s.owned(ctx, externalID, id)
	if err != nil {
		return nil, err
	}
	unlock := s.owners.Lock(w.OwnerID)
	defer unlock()

	report, err := s.cascade.Delete(ctx, Kind, w.ID)
	if err != nil {
		return report, err
	}
	slog.InfoContext(ctx, "workforce deleted", "workforce_id", w.ID, "removed", report.String())
	s.bus.PublishNew(eventbus.EventWorkforceDeleted, w.ID, w.OwnerID, map[string]string{
		"name":    w.Name,
		"removed": strconv.Itoa(report.Total()),
	})
	return report, nil
}
