package notify

import (
	"testing"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	_, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()
	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(models.Notification{SiteID: "S1", EventType: models.EventSiteCreated})

	n1 := <-ch1
	n2 := <-ch2
	assert.Equal(t, "S1", n1.SiteID)
	assert.Equal(t, "S1", n2.SiteID)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()

	id, ch := hub.Subscribe()
	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.SubscriberCount())

	_, open := <-ch
	assert.False(t, open)

	// Idempotent, a second call is a no-op.
	hub.Unsubscribe(id)
}

func TestUnsubscribedClientMissesLaterEvents(t *testing.T) {
	hub := NewHub()

	id1, ch1 := hub.Subscribe()
	_, ch2 := hub.Subscribe()

	hub.Unsubscribe(id1)
	hub.Publish(models.Notification{SiteID: "S2", EventType: models.EventTrialEnding})

	n := <-ch2
	assert.Equal(t, "S2", n.SiteID)

	_, open := <-ch1
	assert.False(t, open)
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	hub := NewHub()

	_, ch := hub.Subscribe()

	// Overfill the buffer; the extra events must be dropped, not block.
	for i := 0; i < subscriberBuffer+5; i++ {
		hub.Publish(models.Notification{SiteID: "S1", EventType: models.EventSiteCreated})
	}

	require.Len(t, ch, subscriberBuffer)
}
