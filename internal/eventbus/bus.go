package eventbus

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

type EventType string

const (
	EventSkillCreated         EventType = "skill.created"
	EventReviewSubmitted      EventType = "review.submitted"
	EventTransactionCompleted EventType = "transaction.completed"
	EventWorkforceCreated     EventType = "workforce.created"
	EventWorkforceDeleted     EventType = "workforce.deleted"
	EventUserPlanChanged      EventType = "user.plan_changed"
)

type Event struct {
	ID         string
	Type       EventType
	ResourceID string
	// RecipientID is the user the event concerns (seller, owner); empty for broadcast.
	RecipientID string
	Metadata    map[string]string
	CreatedAt   time.Time
}

type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]chan *Event
}

func New() *Bus {
	return &Bus{
		subscribers: make(map[string]chan *Event),
	}
}

func (b *Bus) Subscribe(bufSize int) (string, <-chan *Event) {
	id := ulid.Make().String()
	ch := make(chan *Event, bufSize)
	b.mu.Lock()
	b.subscribers[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	if ch, ok := b.subscribers[id]; ok {
		close(ch)
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
}

func (b *Bus) Publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// buffer full, drop event for this subscriber
		}
	}
}

func (b *Bus) PublishNew(eventType EventType, resourceID, recipientID string, metadata map[string]string) {
	b.Publish(&Event{
		ID:          ulid.Make().String(),
		Type:        eventType,
		ResourceID:  resourceID,
		RecipientID: recipientID,
		Metadata:    metadata,
		CreatedAt:   time.Now(),
	})
}

// Publisher is the write side of the bus, accepted by domain services.
type Publisher interface {
	PublishNew(eventType EventType, resourceID, recipientID string, metadata map[string]string)
}

// Discard drops every event.
type Discard struct{}

func (Discard) PublishNew(EventType, string, string, map[string]string) {}
