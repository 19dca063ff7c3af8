package workforce

import (
	"time"

	"github.com/clawmart/clawmart/internal/cascade"
)

const Kind cascade.Kind = "workforce"

type Status string

const (
	StatusActive Status = "active"
	StatusPaused Status = "paused"
	StatusSetup  Status = "setup"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusSetup:
		return true
	}
	return false
}

// Config is the business context handed to every agent of a workforce.
type Config struct {
	CompanyName string `yaml:"company_name,omitempty" json:"companyName,omitempty"`
	BrandVoice  string `yaml:"brand_voice,omitempty" json:"brandVoice,omitempty"`
	Industry    string `yaml:"industry,omitempty" json:"industry,omitempty"`
	Context     string `yaml:"context,omitempty" json:"context,omitempty"`
}

type Workforce struct {
	ID         string    `yaml:"id" json:"id"`
	Name       string    `yaml:"name" json:"name"`
	OwnerID    string    `yaml:"owner_id" json:"userId"`
	TemplateID string    `yaml:"template_id,omitempty" json:"templateId,omitempty"`
	Status     Status    `yaml:"status" json:"status"`
	Config     *Config   `yaml:"config,omitempty" json:"config,omitempty"`
	CreatedAt  time.Time `yaml:"created_at" json:"createdAt"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updatedAt"`
}
