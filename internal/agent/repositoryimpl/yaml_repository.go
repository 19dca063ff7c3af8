package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/agent"
	"github.com/clawmart/clawmart/pkg/keylock"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const agentsPrefix = "agents"

type YAMLRepository struct {
	agents *yamlstore.Collection[agent.Agent]
	locks  *keylock.Locker
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		agents: yamlstore.NewCollection[agent.Agent](s, agentsPrefix, "agent"),
		locks:  keylock.New(),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, a *agent.Agent) error {
	return r.agents.Create(ctx, a.ID, a)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return r.agents.Get(ctx, id)
}

func (r *YAMLRepository) ListByWorkforce(ctx context.Context, workforceID string) ([]*agent.Agent, error) {
	all, err := r.agents.Scan(ctx, func(a *agent.Agent) bool {
		return a.WorkforceID == workforceID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Position != all[j].Position {
			return all[i].Position < all[j].Position
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func (r *YAMLRepository) Mutate(ctx context.Context, id string, fn func(*agent.Agent) error) (*agent.Agent, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	a, err := r.agents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(a); err != nil {
		return nil, err
	}
	if err := r.agents.Update(ctx, id, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()
	return r.agents.Delete(ctx, id)
}
