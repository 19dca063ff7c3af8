package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/message"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const messagesPrefix = "messages"

type YAMLRepository struct {
	messages *yamlstore.Collection[message.Message]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{messages: yamlstore.NewCollection[message.Message](s, messagesPrefix, "message")}
}

func (r *YAMLRepository) Create(ctx context.Context, m *message.Message) error {
	return r.messages.Create(ctx, m.ID, m)
}

func (r *YAMLRepository) ListByWorkforce(ctx context.Context, workforceID string, limit int) ([]*message.Message, error) {
	all, err := r.messages.Scan(ctx, func(m *message.Message) bool {
		return m.WorkforceID == workforceID
	})
	if err != nil {
		return nil, err
	}
	newestFirst(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *YAMLRepository) ListByAgent(ctx context.Context, agentID string) ([]*message.Message, error) {
	all, err := r.messages.Scan(ctx, func(m *message.Message) bool {
		return m.AgentID == agentID
	})
	if err != nil {
		return nil, err
	}
	newestFirst(all)
	return all, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.messages.Delete(ctx, id)
}

// ids are ULIDs, so they break timestamp ties in insertion order.
func newestFirst(ms []*message.Message) {
	sort.SliceStable(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.After(ms[j].CreatedAt)
		}
		return ms[i].ID > ms[j].ID
	})
}
