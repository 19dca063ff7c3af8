package internal

import (
	"context"
	"log/slog"

	"github.com/clawmart/clawmart/internal/skill"
	"github.com/clawmart/clawmart/internal/template"
	"github.com/clawmart/clawmart/internal/user"
)

// SystemUser authors the built-in demo skills.
var SystemUser = user.EnsureInput{
	ExternalID: "clawmart",
	Email:      "team@clawmart.co",
	Name:       "ClawMart",
}

type SeedResult struct {
	Templates int `json:"templates"`
	Skills    int `json:"skills"`
}

type Seeder struct {
	users     *user.Server
	skills    *skill.Server
	templates *template.Server
}

func NewSeeder(users *user.Server, skills *skill.Server, templates *template.Server) *Seeder {
	return &Seeder{users: users, skills: skills, templates: templates}
}

// Seed installs the workforce templates and demo skills. Both steps skip work already done.
func (s *Seeder) Seed(ctx context.Context) (*SeedResult, error) {
	var res SeedResult
	n, err := s.templates.Seed(ctx)
	if err != nil {
		return nil, err
	}
	res.Templates = n

	author, _, err := s.users.Ensure(ctx, SystemUser)
	if err != nil {
		return nil, err
	}
	if res.Skills, err = s.skills.Seed(ctx, author); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "seed complete", "templates", res.Templates, "skills", res.Skills)
	return &res, nil
}
