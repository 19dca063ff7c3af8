package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	b := New()
	id, ch := b.Subscribe(1)

	b.PublishNew(EventReviewSubmitted, "skill-1", "seller-1", map[string]string{"rating": "4"})
	// dropped: buffer is full
	b.PublishNew(EventReviewSubmitted, "skill-2", "seller-1", nil)

	ev := <-ch
	require.NotNil(t, ev)
	assert.Equal(t, EventReviewSubmitted, ev.Type)
	assert.Equal(t, "skill-1", ev.ResourceID)
	assert.Equal(t, "seller-1", ev.RecipientID)
	assert.Equal(t, "4", ev.Metadata["rating"])
	assert.NotEmpty(t, ev.ID)

	b.Unsubscribe(id)
	_, ok := <-ch
	assert.False(t, ok)

	// publishing with no subscribers must not block
	b.PublishNew(EventSkillCreated, "x", "", nil)
}
