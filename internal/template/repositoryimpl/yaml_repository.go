package repositoryimpl

import (
	"context"
	"sort"

	"github.com/clawmart/clawmart/internal/template"
	"github.com/clawmart/clawmart/pkg/storage"
	"github.com/clawmart/clawmart/pkg/yamlstore"
)

const templatesPrefix = "templates"

type YAMLRepository struct {
	templates *yamlstore.Collection[template.Template]
}

func NewYAMLRepository(s storage.Storage) *YAMLRepository {
	return &YAMLRepository{templates: yamlstore.NewCollection[template.Template](s, templatesPrefix, "template")}
}

func (r *YAMLRepository) Create(ctx context.Context, t *template.Template) error {
	return r.templates.Create(ctx, t.ID, t)
}

func (r *YAMLRepository) Get(ctx context.Context, id string) (*template.Template, error) {
	return r.templates.Get(ctx, id)
}

func (r *YAMLRepository) List(ctx context.Context) ([]*template.Template, error) {
	all, err := r.templates.Scan(ctx, nil)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Position < all[j].Position })
	return all, nil
}
