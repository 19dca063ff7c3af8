package skill

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sourcegraph/conc/iter"

	"github.com/clawmart/clawmart/internal/eventbus"
	"github.com/clawmart/clawmart/internal/review"
	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/keylock"
)

type UserResolver interface {
	Resolve(ctx context.Context, externalID string) (*user.User, error)
	Get(ctx context.Context, id string) (*user.User, error)
}

type Server struct {
	repo    Repository
	reviews review.Repository
	users   UserResolver
	bus     eventbus.Publisher
	// reviewLocks serializes review submission per skill.
	reviewLocks *keylock.Locker
}

func NewServer(repo Repository, reviews review.Repository, users UserResolver, bus eventbus.Publisher) *Server {
	return &Server{
		repo:        repo,
		reviews:     reviews,
		users:       users,
		bus:         bus,
		reviewLocks: keylock.New(),
	}
}

type CreateInput struct {
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	LongDescription string   `json:"longDescription,omitempty"`
	Category        string   `json:"category"`
	Endpoint        string   `json:"endpoint"`
	Method          Method   `json:"method"`
	PricePerCall    float64  `json:"pricePerCall"`
	Tags            []string `json:"tags"`
	ExampleInput    string   `json:"exampleInput,omitempty"`
	ExampleOutput   string   `json:"exampleOutput,omitempty"`
	ResponseTime    string   `json:"responseTime,omitempty"`
	InputSchema     string   `json:"inputSchema,omitempty"`
}

func (in *CreateInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	if in.Method == "" {
		in.Method = MethodPost
	}
	switch {
	case in.Name == "":
		return invalid("name is required")
	case Slugify(in.Name) == "":
		return invalid("name must contain at least one letter or digit")
	case strings.TrimSpace(in.Description) == "":
		return invalid("description is required")
	case in.Category == "":
		return invalid("category is required")
	case !in.Method.Valid():
		return invalid("method must be GET or POST")
	}
	for _, err := range []error{
		validateEndpoint(in.Endpoint),
		validatePrice(in.PricePerCall),
		validateJSONField("exampleInput", in.ExampleInput),
		validateJSONField("exampleOutput", in.ExampleOutput),
		validateSchema(in.InputSchema),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Create registers a new active skill authored by the caller.
func (s *Server) Create(ctx context.Context, externalID string, in CreateInput) (*Skill, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	author, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, author, in)
}

func (s *Server) create(ctx context.Context, author *user.User, in CreateInput) (*Skill, error) {
	now := time.Now()
	sk := &Skill{
		ID:              ulid.Make().String(),
		Slug:            Slugify(in.Name),
		Name:            in.Name,
		Description:     in.Description,
		LongDescription: in.LongDescription,
		Category:        in.Category,
		Endpoint:        in.Endpoint,
		Method:          in.Method,
		PricePerCall:    in.PricePerCall,
		AuthorID:        author.ID,
		AuthorName:      author.DisplayName(),
		Tags:            normalizeTags(in.Tags),
		ExampleInput:    in.ExampleInput,
		ExampleOutput:   in.ExampleOutput,
		ResponseTime:    in.ResponseTime,
		InputSchema:     in.InputSchema,
		Status:          StatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, sk); err != nil {
		return nil, err
	}
	s.bus.PublishNew(eventbus.EventSkillCreated, sk.ID, sk.AuthorID, map[string]string{"slug": sk.Slug})
	return sk, nil
}

func (s *Server) Get(ctx context.Context, id string) (*Skill, error) {
	return s.repo.Get(ctx, id)
}

// Resolve looks a skill up by id first and by slug second.
func (s *Server) Resolve(ctx context.Context, idOrSlug string) (*Skill, error) {
	sk, err := s.repo.Get(ctx, idOrSlug)
	if err == nil {
		return sk, nil
	}
	if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	sk, err = s.repo.FindBySlug(ctx, idOrSlug)
	if err != nil {
		if cerr.IsCode(err, cerr.NotFound) {
			return nil, cerr.NewError(cerr.NotFound, "skill not found", nil)
		}
		return nil, err
	}
	return sk, nil
}

type ListInput struct {
	Category string
	Query    string
	// AllStatuses lifts the implicit active-only filter.
	AllStatuses bool
	// Author is an identity-provider id restricting results to that author.
	Author string
}

func (s *Server) List(ctx context.Context, in ListInput) ([]*Skill, error) {
	f := Filter{Category: in.Category, Query: in.Query, Status: StatusActive}
	if in.AllStatuses {
		f.Status = ""
	}
	if in.Author != "" {
		author, err := s.users.Resolve(ctx, in.Author)
		if err != nil {
			if cerr.IsCode(err, cerr.NotFound) {
				return nil, nil
			}
			return nil, err
		}
		f.AuthorID = author.ID
	}
	return s.repo.List(ctx, f)
}

// View returns a skill to a signed-in caller. Skills that are not active are
// visible to their author only.
func (s *Server) View(ctx context.Context, externalID, idOrSlug string) (*Skill, error) {
	sk, err := s.Resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if sk.Status == StatusActive {
		return sk, nil
	}
	caller, err := s.users.Resolve(ctx, externalID)
	if err != nil && !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}
	if caller == nil || caller.ID != sk.AuthorID {
		return nil, cerr.NewError(cerr.NotFound, "skill not found", nil)
	}
	return sk, nil
}

func (s *Server) ListByAuthor(ctx context.Context, externalID string) ([]*Skill, error) {
	author, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, Filter{AuthorID: author.ID})
}

func (s *Server) ownedSkill(ctx context.Context, externalID, idOrSlug string) (*Skill, error) {
	caller, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	sk, err := s.Resolve(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if sk.AuthorID != caller.ID {
		return nil, cerr.NewError(cerr.PermissionDenied, "only the author can modify this skill", nil)
	}
	return sk, nil
}

func (p *Patch) validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name must not be empty")
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return invalid("description must not be empty")
	}
	if p.Category != nil && strings.TrimSpace(*p.Category) == "" {
		return invalid("category must not be empty")
	}
	if p.Endpoint != nil {
		if err := validateEndpoint(*p.Endpoint); err != nil {
			return err
		}
	}
	if p.PricePerCall != nil {
		if err := validatePrice(*p.PricePerCall); err != nil {
			return err
		}
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status must be one of active, pending, disabled")
	}
	return nil
}

func (p *Patch) apply(sk *Skill) {
	if p.Name != nil {
		sk.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		sk.Description = *p.Description
	}
	if p.LongDescription != nil {
		sk.LongDescription = *p.LongDescription
	}
	if p.Endpoint != nil {
		sk.Endpoint = *p.Endpoint
	}
	if p.PricePerCall != nil {
		sk.PricePerCall = *p.PricePerCall
	}
	if p.Category != nil {
		sk.Category = strings.TrimSpace(*p.Category)
	}
	if p.Tags != nil {
		sk.Tags = normalizeTags(*p.Tags)
	}
	if p.Status != nil {
		sk.Status = *p.Status
	}
}

// Update applies the present fields of p. The slug stays fixed after creation.
func (s *Server) Update(ctx context.Context, externalID, id string, p Patch) (*Skill, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	owned, err := s.ownedSkill(ctx, externalID, id)
	if err != nil {
		return nil, err
	}
	if p.Empty() {
		return owned, nil
	}
	return s.repo.Mutate(ctx, owned.ID, func(sk *Skill) error {
		p.apply(sk)
		sk.UpdatedAt = time.Now()
		return nil
	})
}

// Remove hard-deletes the skill. Its reviews and transactions are kept.
func (s *Server) Remove(ctx context.Context, externalID, id string) error {
	owned, err := s.ownedSkill(ctx, externalID, id)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, owned.ID)
}

// RecordCall bumps the call counter after a paid invocation.
func (s *Server) RecordCall(ctx context.Context, id string) (*Skill, error) {
	return s.repo.Mutate(ctx, id, func(sk *Skill) error {
		sk.TotalCalls++
		return nil
	})
}

type ReviewInput struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

type ReviewResult struct {
	Review *review.Review `json:"review"`
	Skill  *Skill         `json:"skill"`
}

// SubmitReview records the caller's single review of a skill and refreshes the
// skill's aggregate rating. Submissions for one skill are serialized.
func (s *Server) SubmitReview(ctx context.Context, externalID, skillRef string, in ReviewInput) (*ReviewResult, error) {
	if in.Rating < review.MinRating || in.Rating > review.MaxRating {
		return nil, invalid("rating must be between %d and %d", review.MinRating, review.MaxRating)
	}
	reviewer, err := s.users.Resolve(ctx, externalID)
	if err != nil {
		return nil, err
	}
	sk, err := s.Resolve(ctx, skillRef)
	if err != nil {
		return nil, err
	}

	unlock := s.reviewLocks.Lock(sk.ID)
	defer unlock()

	if _, err := s.reviews.FindByUserAndSkill(ctx, reviewer.ID, sk.ID); err == nil {
		return nil, cerr.NewError(cerr.AlreadyExists, "you have already reviewed this skill", nil)
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return nil, err
	}

	prior, err := s.reviews.ListBySkill(ctx, sk.ID)
	if err != nil {
		return nil, err
	}
	ratings := make([]int, len(prior))
	for i, r := range prior {
		ratings[i] = r.Rating
	}

	rv := &review.Review{
		ID:        ulid.Make().String(),
		SkillID:   sk.ID,
		UserID:    reviewer.ID,
		Rating:    in.Rating,
		Comment:   strings.TrimSpace(in.Comment),
		CreatedAt: time.Now(),
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}

	total, avg := Aggregate(ratings, in.Rating)
	updated, err := s.repo.Mutate(ctx, sk.ID, func(sk *Skill) error {
		sk.TotalReviews = total
		sk.AverageRating = avg
		return nil
	})
	if err != nil {
		// keep rows and aggregate consistent
		if delErr := s.reviews.Delete(ctx, rv.ID); delErr != nil {
			err = errors.Join(err, delErr)
		}
		return nil, err
	}

	s.bus.PublishNew(eventbus.EventReviewSubmitted, sk.ID, sk.AuthorID, map[string]string{
		"skill_name": sk.Name,
		"rating":     strconv.Itoa(in.Rating),
	})
	return &ReviewResult{Review: rv, Skill: updated}, nil
}

type ReviewView struct {
	*review.Review
	UserName string `json:"userName"`
}

// ListReviews returns a skill's reviews newest first with reviewer names attached.
func (s *Server) ListReviews(ctx context.Context, skillRef string) ([]*ReviewView, error) {
	sk, err := s.Resolve(ctx, skillRef)
	if err != nil {
		return nil, err
	}
	reviews, err := s.reviews.ListBySkill(ctx, sk.ID)
	if err != nil {
		return nil, err
	}
	return iter.Map(reviews, func(rv **review.Review) *ReviewView {
		name := "Anonymous"
		if u, err := s.users.Get(ctx, (*rv).UserID); err == nil && u.Name != "" {
			name = u.Name
		}
		return &ReviewView{Review: *rv, UserName: name}
	}), nil
}
