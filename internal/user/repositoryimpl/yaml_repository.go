package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const usersPrefix = "users"

type YAMLRepository struct {
	users *yamlstore.Collection[user.User]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{users: yamlstore.NewCollection[user.User](s, usersPrefix, "user")}
}

func (r *YAMLRepository) Create(ctx context.Context, u *user.User) error {
	return r.users.Create(ctx, u.ID, u)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*user.User, error) {
	return r.users.Get(ctx, id)
}

func (r *YAMLRepository) FindByExternalID(ctx context.Context, externalID string) (*user.User, error) {
	return r.users.First(ctx, func(u *user.User) bool {
		return u.ExternalID == externalID
	})
}

func (r *YAMLRepository) List(ctx context.Context) ([]*user.User, error) {
	all, err := r.users.Scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

func (r *YAMLRepository) Update(ctx context.Context, u *user.User) error {
	return r.users.Update(ctx, u.ID, u)
}
