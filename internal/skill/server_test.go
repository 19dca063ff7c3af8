package skill_test

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clawmart/clawmart/internal/eventbus"
	reviewrepo "github.com/clawmart/clawmart/internal/review/repositoryimpl"
	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/internal/skill/repositoryimpl"
	"github.com/clawmart/clawmart/internal/user"
	userrepo "github.com/clawmart/clawmart/internal/user/repositoryimpl"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/storage"
)

type fixture struct {
	skills *skill.Server
	users  *user.Server
	bus    *eventbus.Bus
}

func newFixture(t *testing.T, externalIDs ...string) *fixture {
	t.Helper()
	st := storage.NewMemoryStorage()
	bus := eventbus.New()
	users := user.NewServer(userrepo.NewYAMLRepository(st), bus)
	for _, id := range externalIDs {
		_, _, err := users.Ensure(context.Background(), user.EnsureInput{
			ExternalID: id,
			Email:      id + "@example.com",
			Name:       "User " + id,
		})
		require.NoError(t, err)
	}
	return &fixture{
		skills: skill.NewServer(repositoryimpl.NewYAMLRepository(st), reviewrepo.NewYAMLRepository(st), users, bus),
		users:  users,
		bus:    bus,
	}
}

func sentimentInput() skill.CreateInput {
	return skill.CreateInput{
		Name:          "Sentiment Analyzer",
		Description:   "Analyze sentiment",
		Category:      "NLP",
		Endpoint:      "/api/skills/sentiment-analyzer",
		PricePerCall:  0.001,
		Tags:          []string{"NLP", "Sentiment"},
		ExampleOutput: `{"overall":"mixed"}`,
	}
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A")

	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)
	assert.Equal(t, "sentiment-analyzer", sk.Slug)
	assert.Equal(t, skill.StatusActive, sk.Status)
	assert.Equal(t, skill.MethodPost, sk.Method)
	assert.Zero(t, sk.TotalCalls)
	assert.Zero(t, sk.TotalReviews)
	assert.Zero(t, sk.AverageRating)
	assert.Equal(t, "User A", sk.AuthorName)

	byID, err := f.skills.Resolve(ctx, sk.ID)
	require.NoError(t, err)
	bySlug, err := f.skills.Resolve(ctx, "sentiment-analyzer")
	require.NoError(t, err)
	assert.Equal(t, byID.ID, bySlug.ID)

	_, err = f.skills.Resolve(ctx, "nope")
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestCreateUnknownAuthor(t *testing.T) {
	f := newFixture(t)
	_, err := f.skills.Create(context.Background(), "ghost", sentimentInput())
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestCreateSlugCollision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	_, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	in := sentimentInput()
	in.Name = "sentiment  analyzer!!"
	_, err = f.skills.Create(ctx, "B", in)
	assert.True(t, cerr.IsCode(err, cerr.AlreadyExists))
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, "A")
	tests := []struct {
		name   string
		mutate func(*skill.CreateInput)
	}{
		{"empty name", func(in *skill.CreateInput) { in.Name = " " }},
		{"symbol-only name", func(in *skill.CreateInput) { in.Name = "!!!" }},
		{"no description", func(in *skill.CreateInput) { in.Description = "" }},
		{"no category", func(in *skill.CreateInput) { in.Category = "" }},
		{"bad method", func(in *skill.CreateInput) { in.Method = "PUT" }},
		{"negative price", func(in *skill.CreateInput) { in.PricePerCall = -0.1 }},
		{"bad endpoint", func(in *skill.CreateInput) { in.Endpoint = "ftp://x" }},
		{"no endpoint", func(in *skill.CreateInput) { in.Endpoint = "" }},
		{"bad example", func(in *skill.CreateInput) { in.ExampleInput = "{" }},
		{"bad schema", func(in *skill.CreateInput) { in.InputSchema = `{"type": 12}` }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := sentimentInput()
			tt.mutate(&in)
			_, err := f.skills.Create(context.Background(), "A", in)
			assert.True(t, cerr.IsCode(err, cerr.InvalidArgument), "got %v", err)
		})
	}
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	nlp, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)
	_, err = f.skills.Create(ctx, "B", skill.CreateInput{
		Name: "Code Reviewer", Description: "Review code", Category: "Development",
		Endpoint: "https://api.example.com/review", PricePerCall: 0.005,
	})
	require.NoError(t, err)

	disabled := skill.StatusDisabled
	_, err = f.skills.Update(ctx, "A", nlp.ID, skill.Patch{Status: &disabled})
	require.NoError(t, err)

	active, err := f.skills.List(ctx, skill.ListInput{})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Code Reviewer", active[0].Name)

	all, err := f.skills.List(ctx, skill.ListInput{AllStatuses: true})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byCategory, err := f.skills.List(ctx, skill.ListInput{Category: "NLP", AllStatuses: true})
	require.NoError(t, err)
	assert.Len(t, byCategory, 1)

	search, err := f.skills.List(ctx, skill.ListInput{Query: "review"})
	require.NoError(t, err)
	assert.Len(t, search, 1)

	mine, err := f.skills.ListByAuthor(ctx, "A")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, nlp.ID, mine[0].ID)
}

func TestInactiveSkillsVisibleToAuthorOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)
	disabled := skill.StatusDisabled
	_, err = f.skills.Update(ctx, "A", sk.ID, skill.Patch{Status: &disabled})
	require.NoError(t, err)

	mine, err := f.skills.List(ctx, skill.ListInput{AllStatuses: true, Author: "A"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, skill.StatusDisabled, mine[0].Status)

	theirs, err := f.skills.List(ctx, skill.ListInput{AllStatuses: true, Author: "B"})
	require.NoError(t, err)
	assert.Empty(t, theirs)

	unknown, err := f.skills.List(ctx, skill.ListInput{AllStatuses: true, Author: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, unknown)

	got, err := f.skills.View(ctx, "A", sk.Slug)
	require.NoError(t, err)
	assert.Equal(t, sk.ID, got.ID)

	for _, caller := range []string{"B", "ghost"} {
		_, err = f.skills.View(ctx, caller, sk.ID)
		assert.True(t, cerr.IsCode(err, cerr.NotFound), caller)
	}

	active, err := f.skills.Create(ctx, "B", skill.CreateInput{
		Name: "Code Reviewer", Description: "Review code", Category: "Development",
		Endpoint: "https://api.example.com/review", PricePerCall: 0.005,
	})
	require.NoError(t, err)
	got, err = f.skills.View(ctx, "A", active.Slug)
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)
}

func TestUpdateAndRemoveAcceptSlug(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	name := "Mood Reader"
	updated, err := f.skills.Update(ctx, "A", sk.Slug, skill.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, sk.ID, updated.ID)
	assert.Equal(t, "Mood Reader", updated.Name)

	unchanged, err := f.skills.Update(ctx, "A", sk.Slug, skill.Patch{})
	require.NoError(t, err)
	assert.Equal(t, "Mood Reader", unchanged.Name)

	assert.True(t, cerr.IsCode(f.skills.Remove(ctx, "B", sk.Slug), cerr.PermissionDenied))
	require.NoError(t, f.skills.Remove(ctx, "A", sk.Slug))
	_, err = f.skills.Get(ctx, sk.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestUpdatePatchesOnlyPresentFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	price := 0.0
	tags := []string{"Emotion"}
	updated, err := f.skills.Update(ctx, "A", sk.ID, skill.Patch{PricePerCall: &price, Tags: &tags})
	require.NoError(t, err)
	assert.Equal(t, 0.0, updated.PricePerCall)
	assert.Equal(t, []string{"Emotion"}, updated.Tags)
	assert.Equal(t, sk.Name, updated.Name)
	assert.Equal(t, sk.Description, updated.Description)
	assert.Equal(t, sk.Slug, updated.Slug)

	name := "Renamed"
	_, err = f.skills.Update(ctx, "B", sk.ID, skill.Patch{Name: &name})
	assert.True(t, cerr.IsCode(err, cerr.PermissionDenied))

	empty := ""
	_, err = f.skills.Update(ctx, "A", sk.ID, skill.Patch{Name: &empty})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	bogus := skill.Status("archived")
	_, err = f.skills.Update(ctx, "A", sk.ID, skill.Patch{Status: &bogus})
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	same, err := f.skills.Update(ctx, "A", sk.ID, skill.Patch{})
	require.NoError(t, err)
	assert.Equal(t, updated.PricePerCall, same.PricePerCall)
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	assert.True(t, cerr.IsCode(f.skills.Remove(ctx, "B", sk.ID), cerr.PermissionDenied))
	require.NoError(t, f.skills.Remove(ctx, "A", sk.ID))
	_, err = f.skills.Get(ctx, sk.ID)
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestRecordCall(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	var wg conc.WaitGroup
	for range 25 {
		wg.Go(func() {
			_, err := f.skills.RecordCall(ctx, sk.ID)
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	got, err := f.skills.Get(ctx, sk.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 25, got.TotalCalls)
}

func TestReviewScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B", "C")
	_, ch := f.bus.Subscribe(16)

	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)
	assert.Equal(t, 0.001, sk.PricePerCall)

	res, err := f.skills.SubmitReview(ctx, "B", sk.ID, skill.ReviewInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.Skill.AverageRating)
	assert.Equal(t, 1, res.Skill.TotalReviews)

	time.Sleep(time.Millisecond)
	res, err = f.skills.SubmitReview(ctx, "C", sk.ID, skill.ReviewInput{Rating: 2, Comment: "meh"})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Skill.AverageRating)
	assert.Equal(t, 2, res.Skill.TotalReviews)

	_, err = f.skills.SubmitReview(ctx, "B", sk.ID, skill.ReviewInput{Rating: 5})
	require.True(t, cerr.IsCode(err, cerr.AlreadyExists))
	assert.Contains(t, err.Error(), "already reviewed")

	got, err := f.skills.Get(ctx, sk.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, got.AverageRating, "conflict leaves aggregate untouched")
	assert.Equal(t, 2, got.TotalReviews)

	reviews, err := f.skills.ListReviews(ctx, sk.Slug)
	require.NoError(t, err)
	require.Len(t, reviews, 2)
	assert.Equal(t, 2, reviews[0].Rating, "newest first")
	assert.Equal(t, "User C", reviews[0].UserName)

	var seen int
	for seen < 2 {
		ev := <-ch
		if ev.Type == eventbus.EventReviewSubmitted {
			assert.Equal(t, sk.AuthorID, ev.RecipientID)
			seen++
		}
	}
}

func TestReviewValidationWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "A", "B")
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	for _, rating := range []int{0, 6, -1} {
		_, err := f.skills.SubmitReview(ctx, "B", sk.ID, skill.ReviewInput{Rating: rating})
		assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))
	}
	reviews, err := f.skills.ListReviews(ctx, sk.ID)
	require.NoError(t, err)
	assert.Empty(t, reviews)

	_, err = f.skills.SubmitReview(ctx, "ghost", sk.ID, skill.ReviewInput{Rating: 3})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
	_, err = f.skills.SubmitReview(ctx, "B", "missing-skill", skill.ReviewInput{Rating: 3})
	assert.True(t, cerr.IsCode(err, cerr.NotFound))
}

func TestReviewOrderIndependence(t *testing.T) {
	ctx := context.Background()
	ratings := []int{5, 1, 4, 4, 2, 3}
	orders := [][]int{{0, 1, 2, 3, 4, 5}, {5, 4, 3, 2, 1, 0}, {2, 0, 4, 1, 5, 3}}

	for _, order := range orders {
		ids := make([]string, len(ratings))
		for i := range ratings {
			ids[i] = fmt.Sprintf("u%d", i)
		}
		f := newFixture(t, append([]string{"A"}, ids...)...)
		sk, err := f.skills.Create(ctx, "A", sentimentInput())
		require.NoError(t, err)
		for _, i := range order {
			_, err := f.skills.SubmitReview(ctx, ids[i], sk.ID, skill.ReviewInput{Rating: ratings[i]})
			require.NoError(t, err)
		}
		got, err := f.skills.Get(ctx, sk.ID)
		require.NoError(t, err)
		assert.Equal(t, 3.2, got.AverageRating)
		assert.Equal(t, len(ratings), got.TotalReviews)
	}
}

func TestConcurrentReviewsStayConsistent(t *testing.T) {
	ctx := context.Background()
	const n = 30
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("reviewer-%d", i)
	}
	f := newFixture(t, append([]string{"A"}, ids...)...)
	sk, err := f.skills.Create(ctx, "A", sentimentInput())
	require.NoError(t, err)

	var wg conc.WaitGroup
	for i, id := range ids {
		rating := i%5 + 1
		wg.Go(func() {
			_, err := f.skills.SubmitReview(ctx, id, sk.ID, skill.ReviewInput{Rating: rating})
			assert.NoError(t, err)
		})
	}
	// duplicate submissions race the originals; exactly one per user may win
	for _, id := range ids[:5] {
		wg.Go(func() {
			_, _ = f.skills.SubmitReview(ctx, id, sk.ID, skill.ReviewInput{Rating: 5})
		})
	}
	wg.Wait()

	got, err := f.skills.Get(ctx, sk.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.TotalReviews)
	reviews, err := f.skills.ListReviews(ctx, sk.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, n)

	total := 0
	for _, r := range reviews {
		total += r.Rating
	}
	assert.Equal(t, math.Round(float64(total)/float64(n)*10)/10, got.AverageRating)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	system, _, err := f.users.Ensure(ctx, user.EnsureInput{ExternalID: "clawmart", Email: "team@clawmart.co", Name: "clawmart"})
	require.NoError(t, err)

	n, err := f.skills.Seed(ctx, system)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = f.skills.Seed(ctx, system)
	require.NoError(t, err)
	assert.Zero(t, n)

	sk, err := f.skills.Resolve(ctx, "translate-pro")
	require.NoError(t, err)
	assert.Equal(t, 0.002, sk.PricePerCall)
	assert.Equal(t, "clawmart", sk.AuthorName)
	assert.Equal(t, "~0.8s", sk.ResponseTime)

	summarizer, err := f.skills.Resolve(ctx, "web-summarizer")
	require.NoError(t, err)
	assert.NotEmpty(t, summarizer.InputSchema)
}
