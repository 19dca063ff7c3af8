package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/transaction"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const transactionsPrefix = "transactions"

type YAMLRepository struct {
	txns *yamlstore.Collection[transaction.Transaction]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{txns: yamlstore.NewCollection[transaction.Transaction](s, transactionsPrefix, "transaction")}
}

func (r *YAMLRepository) Create(ctx context.Context, t *transaction.Transaction) error {
	return r.txns.Create(ctx, t.ID, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	return r.txns.Get(ctx, id)
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	return r.txns.Delete(ctx, id)
}

func (r *YAMLRepository) ListByBuyer(ctx context.Context, buyerID string) ([]*transaction.Transaction, error) {
	return r.listWhere(ctx, func(t *transaction.Transaction) bool { return t.BuyerID == buyerID })
}

func (r *YAMLRepository) ListBySeller(ctx context.Context, sellerID string) ([]*transaction.Transaction, error) {
	return r.listWhere(ctx, func(t *transaction.Transaction) bool { return t.SellerID == sellerID })
}

func (r *YAMLRepository) ListBySkill(ctx context.Context, skillID string) ([]*transaction.Transaction, error) {
	return r.listWhere(ctx, func(t *transaction.Transaction) bool { return t.SkillID == skillID })
}

func (r *YAMLRepository) listWhere(ctx context.Context, keep func(*transaction.Transaction) bool) ([]*transaction.Transaction, error) {
	all, err := r.txns.Scan(ctx, keep)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return all, nil
}
