package pushnotification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clawmart/clawmart/internal/eventbus"
)

// Dispatcher turns marketplace events into web push notifications for the seller.
type Dispatcher struct {
	eventBus *eventbus.Bus
	sender   *Sender
	subID    string
	events   <-chan *eventbus.Event
}

// NewDispatcher subscribes immediately so events published before Start are not lost.
func NewDispatcher(eventBus *eventbus.Bus, sender *Sender) *Dispatcher {
	subID, ch := eventBus.Subscribe(256)
	return &Dispatcher{eventBus: eventBus, sender: sender, subID: subID, events: ch}
}

// Start consumes events until ctx is done, then unsubscribes.
func (d *Dispatcher) Start(ctx context.Context) error {
	defer d.eventBus.Unsubscribe(d.subID)

	slog.Info("push notification dispatcher started")
	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return nil
		case event, ok := <-d.events:
			if !ok {
				return nil
			}
			if event.RecipientID == "" {
				continue
			}
			if payload, ok := notificationFor(event); ok {
				d.sender.SendToUser(ctx, event.RecipientID, payload)
			}
		}
	}
}

func notificationFor(event *eventbus.Event) (*NotificationPayload, bool) {
	name := event.Metadata["skill_name"]
	switch event.Type {
	case eventbus.EventTransactionCompleted:
		return &NotificationPayload{
			Title: "Skill sold",
			Body:  fmt.Sprintf("%s was called for $%s", name, event.Metadata["amount"]),
			URL:   "/dashboard/sales",
			Tag:   event.ResourceID,
		}, true
	case eventbus.EventReviewSubmitted:
		return &NotificationPayload{
			Title: "New review",
			Body:  fmt.Sprintf("%s received a %s-star review", name, event.Metadata["rating"]),
			URL:   "/dashboard/skills",
			Tag:   event.ID,
		}, true
	}
	return nil, false
}
