package agent

import "context"

type Repository interface {
	Create(ctx context.Context, a *Agent) error
	Get(ctx context.Context, id string) (*Agent, error)
	// ListByWorkforce returns agents in position order.
	ListByWorkforce(ctx context.Context, workforceID string) ([]*Agent, error)
	// Mutate applies fn to the stored agent atomically with respect to other Mutate calls.
	Mutate(ctx context.Context, id string, fn func(*Agent) error) (*Agent, error)
	Delete(ctx context.Context, id string) error
}
