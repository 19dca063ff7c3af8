package skill

import "context"

type Filter struct {
	// Status restricts results; empty matches every status.
	Status   Status
	Category string
	AuthorID string
	// Query is a case-insensitive substring match on the name.
	Query string
}

type Repository interface {
	// Create fails with AlreadyExists when the slug is taken.
	Create(ctx context.Context, s *Skill) error
	Get(ctx context.Context, id string) (*Skill, error)
	FindBySlug(ctx context.Context, slug string) (*Skill, error)
	List(ctx context.Context, f Filter) ([]*Skill, error)
	// Mutate applies fn to the stored skill and writes it back atomically with
	// respect to other Mutate calls on the same id. Nothing is written if fn fails.
	Mutate(ctx context.Context, id string, fn func(*Skill) error) (*Skill, error)
	Delete(ctx context.Context, id string) error
}
