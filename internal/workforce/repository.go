package workforce

import "context"

type Repository interface {
	Create(ctx context.Context, w *Workforce) error
	Get(ctx context.Context, id string) (*Workforce, error)
	// ListByOwner returns the owner's workforces, oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*Workforce, error)
	Update(ctx context.Context, w *Workforce) error
	Delete(ctx context.Context, id string) error
}
