package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/pushsubscription"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const pushSubscriptionsPrefix = "push_subscriptions"

type YAMLRepository struct {
	subs *yamlstore.Collection[pushsubscription.Subscription]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		subs: yamlstore.NewCollection[pushsubscription.Subscription](s, pushSubscriptionsPrefix, "push subscription"),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, s *pushsubscription.Subscription) error {
	return r.subs.Create(ctx, s.ID, s)
}

func (r *YAMLRepository) Update(ctx context.Context, s *pushsubscription.Subscription) error {
	return r.subs.Update(ctx, s.ID, s)
}

func (r *YAMLRepository) ListByUser(ctx context.Context, userID string) ([]*pushsubscription.Subscription, error) {
	subs, err := r.subs.Scan(ctx, func(s *pushsubscription.Subscription) bool {
		return s.UserID == userID
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (r *YAMLRepository) FindByEndpoint(ctx context.Context, endpoint string) (*pushsubscription.Subscription, error) {
	return r.subs.First(ctx, func(s *pushsubscription.Subscription) bool {
		return s.Endpoint == endpoint
	})
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.subs.Delete(ctx, id)
}
