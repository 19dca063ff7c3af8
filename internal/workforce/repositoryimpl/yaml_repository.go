package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/workforce"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const workforcesPrefix = "workforces"

type YAMLRepository struct {
	workforces *yamlstore.Collection[workforce.Workforce]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{workforces: yamlstore.NewCollection[workforce.Workforce](s, workforcesPrefix, "workforce")}
}

func (r *YAMLRepository) Create(ctx context.Context, w *workforce.Workforce) error {
	return r.workforces.Create(ctx, w.ID, w)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*workforce.Workforce, error) {
	return r.workforces.Get(ctx, id)
}

func (r *YAMLRepository) ListByOwner(ctx context.Context, ownerID string) ([]*workforce.Workforce, error) {
	all, err := r.workforces.Scan(ctx, func(w *workforce.Workforce) bool {
		return w.OwnerID == ownerID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, w *workforce.Workforce) error {
	return r.workforces.Update(ctx, w.ID, w)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.workforces.Delete(ctx, id)
}
