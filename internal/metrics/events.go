package metrics

import (
	"context"

	"github.com/clawmart/clawmart/internal/eventbus"
)

// CountEvents counts bus events by type until ctx is done.
func CountEvents(ctx context.Context, bus *eventbus.Bus) error {
	id, ch := bus.Subscribe(256)
	defer bus.Unsubscribe(id)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			Events.WithLabelValues(string(ev.Type)).Inc()
		}
	}
}
