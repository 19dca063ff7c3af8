package repositoryimpl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/pkg/cerr"
	"github.com/clawmart/clawmart/pkg/keylock"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const skillsPrefix = "skills"

type YAMLRepository struct {
	skills *yamlstore.Collection[skill.Skill]
	locks  *keylock.Locker
	// createMu guards the slug uniqueness check.
	createMu sync.Mutex
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{
		skills: yamlstore.NewCollection[skill.Skill](s, skillsPrefix, "skill"),
		locks:  keylock.New(),
	}
}

func (r *YAMLRepository) Create(ctx context.Context, s *skill.Skill) error {
	r.createMu.Lock()
	defer r.createMu.Unlock()

	if _, err := r.FindBySlug(ctx, s.Slug); err == nil {
		return cerr.NewError(cerr.AlreadyExists, fmt.Sprintf("a skill with slug %q already exists", s.Slug), nil)
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return err
	}
	return r.skills.Create(ctx, s.ID, s)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*skill.Skill, error) {
	return r.skills.Get(ctx, id)
}

func (r *YAMLRepository) FindBySlug(ctx context.Context, slug string) (*skill.Skill, error) {
	return r.skills.First(ctx, func(s *skill.Skill) bool { return s.Slug == slug })
}

func (r *YAMLRepository) List(ctx context.Context, f skill.Filter) ([]*skill.Skill, error) {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	all, err := r.skills.Scan(ctx, func(s *skill.Skill) bool {
		if f.Status != "" && s.Status != f.Status {
			return false
		}
		if f.Category != "" && s.Category != f.Category {
			return false
		}
		if f.AuthorID != "" && s.AuthorID != f.AuthorID {
			return false
		}
		if q != "" && !strings.Contains(strings.ToLower(s.Name), q) {
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

func (r *YAMLRepository) Mutate(ctx context.Context, id string, fn func(*skill.Skill) error) (*skill.Skill, error) {
	unlock := r.locks.Lock(id)
	defer unlock()

	s, err := r.skills.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	if err := r.skills.Update(ctx, id, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *YAMLRepository) Delete(ctx context.Context, id string) error {
	unlock := r.locks.Lock(id)
	defer unlock()
	return r.skills.Delete(ctx, id)
}
