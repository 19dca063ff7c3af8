package message

import "context"

type Repository interface {
	Create(ctx context.Context, m *Message) error
	// ListByWorkforce returns at most limit messages, newest first. limit <= 0 means all.
	ListByWorkforce(ctx context.Context, workforceID string, limit int) ([]*Message, error)
	ListByAgent(ctx context.Context, agentID string) ([]*Message, error)
	Delete(ctx context.Context, id string) error
}
