package transaction_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/transaction"
	"github.com/clawmart/clawmart/internal/transaction/repositoryimpl"
	"github.com/clawmart/clawmart/internal/user"
	userrepo "github.com/clawmart/clawmart/internal/user/repositoryimpl"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/storage"
)

func TestRecordAndList(t *testing.T) {
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	users := user.NewServer(userrepo.NewYAMLRepository(st), eventbus.Discard{})
	buyer, _, err := users.Ensure(ctx, user.EnsureInput{ExternalID: "buyer", Email: "b@example.com"})
	require.NoError(t, err)
	seller, _, err := users.Ensure(ctx, user.EnsureInput{ExternalID: "seller", Email: "s@example.com"})
	require.NoError(t, err)

	bus := eventbus.New()
	_, ch := bus.Subscribe(4)
	s := transaction.NewServer(repositoryimpl.NewYAMLRepository(st), users, bus)

	first, err := s.Record(ctx, transaction.RecordInput{SkillID: "sk1", BuyerID: buyer.ID, SellerID: seller.ID, Amount: 0.003})
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCompleted, first.Status)
	time.Sleep(time.Millisecond)
	second, err := s.Record(ctx, transaction.RecordInput{SkillID: "sk2", BuyerID: buyer.ID, SellerID: seller.ID, Amount: 0.001, ProofHash: "0xabc"})
	require.NoError(t, err)

	s.Announce(second, "Sentiment Analyzer")
	ev := <-ch
	assert.Equal(t, eventbus.EventTransactionCompleted, ev.Type)
	assert.Equal(t, seller.ID, ev.RecipientID)
	assert.Equal(t, "0.001", ev.Metadata["amount"])

	purchases, err := s.Purchases(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, purchases, 2)
	assert.Equal(t, second.ID, purchases[0].ID, "newest first")

	sales, err := s.Sales(ctx, "seller")
	require.NoError(t, err)
	assert.Len(t, sales, 2)

	none, err := s.Sales(ctx, "buyer")
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = s.Purchases(ctx, "ghost")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	require.NoError(t, s.Void(ctx, first.ID))
	bySkill, err := s.ListBySkill(ctx, "sk1")
	require.NoError(t, err)
	assert.Empty(t, bySkill)
}

func TestRecordRejectsMissingSeller(t *testing.T) {
	s := transaction.NewServer(repositoryimpl.NewYAMLRepository(storage.NewMemoryStorage()), nil, eventbus.Discard{})
	_, err := s.Record(context.Background(), transaction.RecordInput{SkillID: "sk1", Amount: 1})
	assert.True(t, cerr.IsCode(err, cerr.Internal))
	_, err = s.Record(context.Background(), transaction.RecordInput{SkillID: "sk1", SellerID: "u", Amount: -1})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.003", transaction.FormatAmount(0.003))
	assert.Equal(t, "1", transaction.FormatAmount(1))
	assert.Equal(t, "0", transaction.FormatAmount(0))
}
