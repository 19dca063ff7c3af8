package template

import (
	"context"
	_ "embed"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"gopkg.in/yaml.v3"

	"github.com/clawmart/clawmart/pkg/cerr"
)

//go:embed templates.yaml
var templatesYAML []byte

type Server struct {
	repo   Repository
	seedMu sync.Mutex
}

func NewServer(repo Repository) *Server {
	return &Server{repo: repo}
}

func (s *Server) List(ctx context.Context) ([]*Template, error) {
	return s.repo.List(ctx)
}

func (s *Server) Get(ctx context.Context, id string) (*Template, error) {
	return s.repo.Get(ctx, id)
}

// Seed installs the built-in industry templates unless any template exists.
func (s *Server) Seed(ctx context.Context) (int, error) {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()

	existing, err := s.repo.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(existing) > 0 {
		return 0, nil
	}
	var builtin []*Template
	if err := yaml.Unmarshal(templatesYAML, &builtin); err != nil {
		return 0, cerr.NewError(cerr.Internal, "server error", fmt.Errorf("failed to parse templates: %w", err))
	}
	for i, t := range builtin {
		t.ID = ulid.Make().String()
		t.Position = i
		if err := s.repo.Create(ctx, t); err != nil {
			return i, err
		}
	}
	return len(builtin), nil
}
