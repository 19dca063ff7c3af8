package transaction

import "context"

type Repository interface {
	Create(ctx context.Context, t *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	Delete(ctx context.Context, id string) error
	// List* return newest first.
	ListByBuyer(ctx context.Context, buyerID string) ([]*Transaction, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*Transaction, error)
	ListBySkill(ctx context.Context, skillID string) ([]*Transaction, error)
}
