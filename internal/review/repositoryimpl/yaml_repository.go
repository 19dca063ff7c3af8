package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/review"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const reviewsPrefix = "reviews"

type YAMLRepository struct {
	reviews *yamlstore.Collection[review.Review]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{reviews: yamlstore.NewCollection[review.Review](s, reviewsPrefix, "review")}
}

func (r *YAMLRepository) Create(ctx context.Context, rv *review.Review) error {
	return r.reviews.Create(ctx, rv.ID, rv)
}

func (r *YAMLRepository) ListBySkill(ctx context.Context, skillID string) ([]*review.Review, error) {
	all, err := r.reviews.Scan(ctx, func(rv *review.Review) bool {
		return rv.SkillID == skillID
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}

func (r *YAMLRepository) FindByUserAndSkill(ctx context.Context, userID, skillID string) (*review.Review, error) {
	return r.reviews.First(ctx, func(rv *review.Review) bool {
		return rv.UserID == userID && rv.SkillID == skillID
	})
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.reviews.Delete(ctx, id)
}
