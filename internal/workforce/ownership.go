package workforce

import (
	"context"

	"github.com/clawmart/clawmart/internal/agent"
	"github.com/clawmart/clawmart/internal/cascade"
	"github.com/clawmart/clawmart/internal/message"
)

// NewOwnershipGraph declares workforce -> agents -> messages. A workforce also
// owns its messages directly, which catches messages whose agent is already gone.
func NewOwnershipGraph(workforces Repository, agents agent.Repository, messages message.Repository) (*cascade.Graph, error) {
	g := cascade.New()
	g.Register(Kind, workforces.Delete)
	g.Register(agent.Kind, agents.Delete)
	g.Register(message.Kind, messages.Delete)

	if err := g.Own(Kind, agent.Kind, func(ctx context.Context, workforceID string) ([]string, error) {
		as, err := agents.ListByWorkforce(ctx, workforceID)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(as))
		for i, a := range as {
			ids[i] = a.ID
		}
		return ids, nil
	}); err != nil {
		return nil, err
	}
	if err := g.Own(agent.Kind, message.Kind, func(ctx context.Context, agentID string) ([]string, error) {
		ms, err := messages.ListByAgent(ctx, agentID)
		return messageIDs(ms), err
	}); err != nil {
		return nil, err
	}
	if err := g.Own(Kind, message.Kind, func(ctx context.Context, workforceID string) ([]string, error) {
		ms, err := messages.ListByWorkforce(ctx, workforceID, 0)
		return messageIDs(ms), err
	}); err != nil {
		return nil, err
	}
	return g, nil
}

func messageIDs(ms []*message.Message) []string {
	ids := make([]string, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	return ids
}
