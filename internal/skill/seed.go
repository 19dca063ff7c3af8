package skill

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/clawmart/clawmart/internal/user"
	"github.com/clawmart/clawmart/pkg/cerr"
)

//go:embed seed.yaml
var seedYAML []byte

const seedMarkerSlug = "web-summarizer"

type seedSkill struct {
	Name            string   `yaml:"name"`
	Description     string   `yaml:"description"`
	LongDescription string   `yaml:"long_description"`
	Category        string   `yaml:"category"`
	Endpoint        string   `yaml:"endpoint"`
	Method          Method   `yaml:"method"`
	PricePerCall    float64  `yaml:"price_per_call"`
	Tags            []string `yaml:"tags"`
	ExampleInput    string   `yaml:"example_input"`
	ExampleOutput   string   `yaml:"example_output"`
	ResponseTime    string   `yaml:"response_time"`
	InputSchema     string   `yaml:"input_schema"`
}

func loadSeed() ([]CreateInput, error) {
	var raw []seedSkill
	if err := yaml.Unmarshal(seedYAML, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse skill seed: %w", err)
	}
	out := make([]CreateInput, len(raw))
	for i, s := range raw {
		out[i] = CreateInput(s)
	}
	return out, nil
}

// Seed installs the demo skills under author. It is a no-op once the marker
// skill exists and reports how many skills were created.
func (s *Server) Seed(ctx context.Context, author *user.User) (int, error) {
	if _, err := s.repo.FindBySlug(ctx, seedMarkerSlug); err == nil {
		return 0, nil
	} else if !cerr.IsCode(err, cerr.NotFound) {
		return 0, err
	}
	inputs, err := loadSeed()
	if err != nil {
		return 0, cerr.NewError(cerr.Internal, "server error", err)
	}
	created := 0
	for _, in := range inputs {
		if err := in.validate(); err != nil {
			return created, err
		}
		if _, err := s.create(ctx, author, in); err != nil {
			if cerr.IsCode(err, cerr.AlreadyExists) {
				continue
			}
			return created, err
		}
		created++
	}
	return created, nil
}
