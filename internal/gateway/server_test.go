package gateway_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawmart/clawmart/internal/config"
	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/gateway"
	reviewrepo "github.com/clawmart/clawmart/internal/review/repositoryimpl"
	"github.com/clawmart/clawmart/internal/skill"
	skillrepo "github.com/clawmart/clawmart/internal/skill/repositoryimpl"
	"github.com/clawmart/clawmart/internal/transaction"
	txrepo "github.com/clawmart/clawmart/internal/transaction/repositoryimpl"
	"github.com/clawmart/clawmart/internal/user"
	userrepo "github.com/clawmart/clawmart/internal/user/repositoryimpl"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/storage"
)

const ttl = 2 * time.Second

var payment = config.PaymentEnv{
	PayTo:      "0x0000000000000000000000000000000000000000",
	Network:    "eip155:8453",
	Asset:      "USDC",
	ChainLabel: "Base",
}

type fixture struct {
	bus    *eventbus.Bus
	users  *user.Server
	skills *skill.Server
	ledger *transaction.Server
	author *user.User
	buyer  *user.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := storage.NewMemoryStorage()
	bus := eventbus.New()
	users := user.NewServer(userrepo.NewYAMLRepository(st), bus)
	author, _, err := users.Ensure(ctx, user.EnsureInput{ExternalID: "author", Email: "author@example.com", Name: "Author"})
	require.NoError(t, err)
	buyer, _, err := users.Ensure(ctx, user.EnsureInput{ExternalID: "buyer", Email: "buyer@example.com"})
	require.NoError(t, err)
	return &fixture{
		bus:    bus,
		users:  users,
		skills: skill.NewServer(skillrepo.NewYAMLRepository(st), reviewrepo.NewYAMLRepository(st), users, bus),
		ledger: transaction.NewServer(txrepo.NewYAMLRepository(st), users, bus),
		author: author,
		buyer:  buyer,
	}
}

func (f *fixture) gateway(opts gateway.Options) *gateway.Server {
	opts.Payment = payment
	if opts.BaseURL == "" {
		opts.BaseURL = "https://clawmart.co/"
	}
	return gateway.NewServer(f.skills, f.ledger, f.users, opts)
}

func (f *fixture) sentiment(t *testing.T) *skill.Skill {
	t.Helper()
	sk, err := f.skills.Create(context.Background(), "author", skill.CreateInput{
		Name:          "Sentiment Analyzer",
		Description:   "Analyze sentiment",
		Category:      "NLP",
		Endpoint:      "/api/skills/sentiment-analyzer",
		PricePerCall:  0.001,
		Tags:          []string{"NLP"},
		ExampleInput:  `{"text":"great"}`,
		ExampleOutput: `{"overall":"positive"}`,
		ResponseTime:  "~300ms",
		InputSchema:   `{"type":"object","required":["text"],"properties":{"text":{"type":"string"}}}`,
	})
	require.NoError(t, err)
	return sk
}

func router(g *gateway.Server) http.Handler {
	r := chi.NewRouter()
	r.Use(cerr.NewJSONResponseChiMiddleware())
	gateway.NewHandler(g).MountPublic(r)
	return r
}

func TestChallengeWritesNothing(t *testing.T) {
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{})

	rec := httptest.NewRecorder()
	router(g).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/skills/"+sk.Slug, strings.NewReader(`{"text":"hi"}`)))

	require.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "true", rec.Header().Get(gateway.PaymentRequiredHeader))
	var ch gateway.Challenge
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ch))
	assert.Equal(t, 1, ch.X402Version)
	assert.Equal(t, "Analyze sentiment", ch.Description)
	assert.Equal(t, "application/json", ch.MimeType)
	require.Len(t, ch.Accepts, 1)
	assert.Equal(t, gateway.Terms{
		Scheme:  "exact",
		Network: "eip155:8453",
		Price:   "0.001",
		Asset:   "USDC",
		PayTo:   "0x0000000000000000000000000000000000000000",
	}, ch.Accepts[0])
	assert.Equal(t, "1000", ch.Accepts[0].AtomicAmount())

	txns, err := f.ledger.ListBySkill(context.Background(), sk.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
	got, err := f.skills.Get(context.Background(), sk.ID)
	require.NoError(t, err)
	assert.Zero(t, got.TotalCalls)
}

func TestFulfilledCallBooksSale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{})
	_, events := f.bus.Subscribe(16)

	res, err := g.Invoke(ctx, gateway.InvokeRequest{
		Ref:     sk.ID,
		Payment: "proof-token",
		Caller:  "buyer",
		Body:    []byte(`{"text":"great product"}`),
	})
	require.NoError(t, err)
	result, ok := res.(*gateway.Result)
	require.True(t, ok, "expected a fulfilled result, got %T", res)
	assert.Equal(t, "Sentiment Analyzer", result.Skill)
	assert.JSONEq(t, `{"text":"great product"}`, string(result.Input))
	assert.JSONEq(t, `{"overall":"positive"}`, string(result.Result))
	assert.Equal(t, gateway.Meta{Latency: "~300ms", Model: "demo", Paid: "$0.001"}, result.Meta)

	txns, err := f.ledger.ListBySkill(ctx, sk.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	txn := txns[0]
	assert.Equal(t, result.TransactionID, txn.ID)
	assert.Equal(t, f.author.ID, txn.SellerID)
	assert.Equal(t, f.buyer.ID, txn.BuyerID)
	assert.Equal(t, 0.001, txn.Amount)
	assert.Equal(t, transaction.StatusCompleted, txn.Status)
	sum := sha256.Sum256([]byte("proof-token"))
	assert.Equal(t, hex.EncodeToString(sum[:]), txn.ProofHash)

	got, err := f.skills.Get(ctx, sk.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.TotalCalls)

	for {
		ev := <-events
		if ev.Type == eventbus.EventTransactionCompleted {
			assert.Equal(t, f.author.ID, ev.RecipientID)
			assert.Equal(t, "0.001", ev.Metadata["amount"])
			break
		}
	}
}

func TestAnonymousPayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{})

	_, err := g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.Slug, Payment: "p", Body: []byte(`{"text":"x"}`)})
	require.NoError(t, err)
	txns, err := f.ledger.ListBySkill(ctx, sk.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, gateway.AnonymousBuyer, txns[0].BuyerID)
}

func TestInvokeRejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{})

	_, err := g.Invoke(ctx, gateway.InvokeRequest{Ref: "missing", Payment: "p"})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	_, err = g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID, Payment: "p", Body: []byte(`{"wrong":1}`)})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	disabled := skill.StatusDisabled
	_, err = f.skills.Update(ctx, "author", sk.ID, skill.Patch{Status: &disabled})
	require.NoError(t, err)
	_, err = g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))

	txns, err := f.ledger.ListBySkill(ctx, sk.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

type failingExecutor struct{}

func (failingExecutor) Execute(context.Context, *skill.Skill, json.RawMessage) (json.RawMessage, error) {
	return nil, cerr.NewError(cerr.Unavailable, "skill upstream unavailable", errors.New("boom"))
}

func TestExecutorFailureChargesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{Executor: failingExecutor{}})

	_, err := g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID, Payment: "p", Body: []byte(`{"text":"x"}`)})
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
	txns, err := f.ledger.ListBySkill(ctx, sk.ID)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func newFacilitator(t *testing.T, valid bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/verify", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]json.RawMessage
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Contains(t, string(req["paymentRequirements"]), `"maxAmountRequired":"1000"`)
		if !valid {
			_ = json.NewEncoder(w).Encode(map[string]any{"isValid": false, "invalidReason": "insufficient_funds"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"isValid": true, "payer": "0xabc"})
	})
	mux.HandleFunc("/settle", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "transaction": "0xdeadbeef", "network": "eip155:8453", "payer": "0xabc"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func paymentHeader() string {
	return base64.StdEncoding.EncodeToString([]byte(`{"x402Version":1,"scheme":"exact","network":"eip155:8453","payload":{"signature":"0x1"}}`))
}

func TestFacilitatorSettlement(t *testing.T) {
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{Verifier: gateway.NewFacilitatorVerifier(newFacilitator(t, true).URL, nil)})

	req := httptest.NewRequest(http.MethodPost, "/skills/"+sk.Slug, strings.NewReader(`{"text":"x"}`))
	req.Header.Set(gateway.PaymentHeader, paymentHeader())
	rec := httptest.NewRecorder()
	router(g).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	raw, err := base64.StdEncoding.DecodeString(rec.Header().Get(gateway.PaymentResponseHeader))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "0xdeadbeef")

	txns, err := f.ledger.ListBySkill(context.Background(), sk.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "0xdeadbeef", txns[0].ProofHash)
	assert.Equal(t, "0xabc", txns[0].BuyerID)
}

func TestFacilitatorRefusalChallengesAgain(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	g := f.gateway(gateway.Options{Verifier: gateway.NewFacilitatorVerifier(newFacilitator(t, false).URL, nil)})

	res, err := g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID, Payment: paymentHeader(), Body: []byte(`{"text":"x"}`)})
	require.NoError(t, err)
	ch, ok := res.(*gateway.Challenge)
	require.True(t, ok)
	assert.Contains(t, ch.Error, "insufficient_funds")

	res, err = g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID, Payment: "not-base64-json!", Body: []byte(`{"text":"x"}`)})
	require.NoError(t, err)
	_, ok = res.(*gateway.Challenge)
	assert.True(t, ok)
}

func TestFacilitatorOutage(t *testing.T) {
	f := newFixture(t)
	sk := f.sentiment(t)
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(down.Close)
	g := f.gateway(gateway.Options{Verifier: gateway.NewFacilitatorVerifier(down.URL, nil)})

	_, err := g.Invoke(context.Background(), gateway.InvokeRequest{Ref: sk.ID, Payment: paymentHeader(), Body: []byte(`{"text":"x"}`)})
	assert.True(t, cerr.IsCode(err, cerr.Unavailable))
}

func TestHTTPExecutorForwardsBody(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		_ = json.NewEncoder(w).Encode(map[string]string{"echo": in["text"]})
	}))
	t.Cleanup(upstream.Close)

	sk, err := f.skills.Create(ctx, "author", skill.CreateInput{
		Name:         "Echo",
		Description:  "Echoes text",
		Category:     "Utility",
		Endpoint:     upstream.URL + "/run",
		PricePerCall: 0.002,
	})
	require.NoError(t, err)
	g := f.gateway(gateway.Options{Executor: gateway.Router{Local: gateway.ExampleExecutor{}, Remote: gateway.NewHTTPExecutor(nil)}})

	res, err := g.Invoke(ctx, gateway.InvokeRequest{Ref: sk.ID, Payment: "p", Body: []byte(`{"text":"hello"}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"echo":"hello"}`, string(res.(*gateway.Result).Result))
}

func TestListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	_, err := f.skills.Create(ctx, "author", skill.CreateInput{
		Name: "Code Reviewer", Description: "Reviews code", Category: "Dev", Endpoint: "/api/skills/code-reviewer", PricePerCall: 0.005,
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router(f.gateway(gateway.Options{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills?category=NLP", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, gateway.ListingCacheHeader, rec.Header().Get("Cache-Control"))

	var l gateway.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &l))
	assert.Equal(t, "x402", l.Protocol)
	assert.Equal(t, "ClawMart", l.Marketplace)
	require.Equal(t, 1, l.Count)
	e := l.Skills[0]
	assert.Equal(t, sk.Slug, e.Slug)
	assert.Equal(t, "https://clawmart.co/api/skills/sentiment-analyzer", e.Endpoint)
	assert.Equal(t, "https://clawmart.co/skills/sentiment-analyzer", e.DetailURL)
	assert.Equal(t, "USDC", e.Currency)
	assert.Equal(t, "Base", e.Chain)
	assert.Equal(t, "POST", e.Method)
}

func TestListingCache(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFixture(t)
	f.sentiment(t)
	g := f.gateway(gateway.Options{Cache: gateway.NewRedisCache(rdb, ttl)})

	first, err := g.Listing(ctx, "")
	require.NoError(t, err)
	require.Equal(t, 1, first.Count)
	assert.True(t, mr.Exists("clawmart:listing:"))

	_, err = f.skills.Create(ctx, "author", skill.CreateInput{
		Name: "Code Reviewer", Description: "Reviews code", Category: "Dev", Endpoint: "/x", PricePerCall: 0.005,
	})
	require.NoError(t, err)

	cached, err := g.Listing(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cached.Count, "served from cache")

	mr.FastForward(3 * ttl)
	fresh, err := g.Listing(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, fresh.Count)
}

type brokenSkills struct{ gateway.Skills }

func (brokenSkills) List(context.Context, skill.ListInput) ([]*skill.Skill, error) {
	return nil, cerr.NewError(cerr.Unavailable, "storage unavailable", errors.New("connection refused"))
}

func TestListingUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	g := gateway.NewServer(brokenSkills{f.skills}, f.ledger, f.users, gateway.Options{Payment: payment})

	rec := httptest.NewRecorder()
	router(g).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unavailable", body["code"])
	assert.NotContains(t, body, "skills")
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	sk := f.sentiment(t)
	plain, err := f.skills.Create(ctx, "author", skill.CreateInput{
		Name: "Plain", Description: "No examples", Category: "Misc", Endpoint: "/api/skills/plain",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router(f.gateway(gateway.Options{})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/skills/"+sk.Slug, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, sk.ID, m["id"])
	assert.Equal(t, map[string]any{"text": "great"}, m["exampleInput"])
	assert.Equal(t, "https://clawmart.co/api/skills/sentiment-analyzer", m["endpoint"])

	md, err := f.gateway(gateway.Options{}).Metadata(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, "null", string(md.ExampleInput))
	assert.Equal(t, "null", string(md.ExampleOutput))
}
