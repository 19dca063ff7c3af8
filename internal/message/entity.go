package message

import (
	"time"

	"github.com/clawmart/clawmart/internal/cascade"
)

const Kind cascade.Kind = "message"

type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleSystem:
		return true
	}
	return false
}

type Message struct {
	ID          string    `yaml:"id" json:"id"`
	WorkforceID string    `yaml:"workforce_id" json:"workforceId"`
	AgentID     string    `yaml:"agent_id" json:"agentId"`
	Role        Role      `yaml:"role" json:"role"`
	Content     string    `yaml:"content" json:"content"`
	CreatedAt   time.Time `yaml:"created_at" json:"createdAt"`
}
