package agent

import (
	"time"

	"github.com/clawmart/clawmart/internal/cascade"
)

// Kind names agents in the ownership graph.
const Kind cascade.Kind = "agent"

type Status string

const (
	StatusActive Status = "active"
	StatusIdle   Status = "idle"
	StatusError  Status = "error"
	StatusPaused Status = "paused"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusIdle, StatusError, StatusPaused:
		return true
	}
	return false
}

type Agent struct {
	ID          string `yaml:"id" json:"id"`
	WorkforceID string `yaml:"workforce_id" json:"workforceId"`
	// Position keeps the template blueprint order within a workforce.
	Position          int        `yaml:"position" json:"-"`
	Name              string     `yaml:"name" json:"name"`
	Role              string     `yaml:"role" json:"role"`
	Description       string     `yaml:"description,omitempty" json:"description"`
	SystemPrompt      string     `yaml:"system_prompt,omitempty" json:"systemPrompt"`
	Tools             []string   `yaml:"tools,omitempty" json:"tools"`
	Status            Status     `yaml:"status" json:"status"`
	MessagesProcessed int        `yaml:"messages_processed" json:"messagesProcessed"`
	LastActive        *time.Time `yaml:"last_active,omitempty" json:"lastActive,omitempty"`
	CreatedAt         time.Time  `yaml:"created_at" json:"createdAt"`
}

// Patch holds the fields an owner may change. Nil fields are left untouched.
type Patch struct {
	Name         *string   `json:"name"`
	Role         *string   `json:"role"`
	SystemPrompt *string   `json:"systemPrompt"`
	Tools        *[]string `json:"tools"`
	Status       *Status   `json:"status"`
}

type CreateInput struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Description  string   `json:"description"`
	SystemPrompt string   `json:"systemPrompt"`
	Tools        []string `json:"tools"`
}

// New builds an idle agent with no processed messages.
func New(id, workforceID string, position int, in CreateInput, now time.Time) *Agent {
	return &Agent{
		ID:           id,
		WorkforceID:  workforceID,
		Position:     position,
		Name:         in.Name,
		Role:         in.Role,
		Description:  in.Description,
		SystemPrompt: in.SystemPrompt,
		Tools:        append([]string(nil), in.Tools...),
		Status:       StatusIdle,
		CreatedAt:    now,
	}
}
