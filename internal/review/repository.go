package review

import "context"

type Repository interface {
	Create(ctx context.Context, r *Review) error
	// ListBySkill returns the skill's reviews, newest first.
	ListBySkill(ctx context.Context, skillID string) ([]*Review, error)
	FindByUserAndSkill(ctx context.Context, userID, skillID string) (*Review, error)
	Delete(ctx context.Context, id string) error
}
