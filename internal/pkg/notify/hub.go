package notify

import (
	"sync"

	"github.com/erpeaz/siteboard/app/models"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const subscriberBuffer = 16

// Hub fans newly created notifications out to every connected streaming
// client. It is an in-process observer list, not a durable queue: clients
// connected at publish time receive the event, late joiners fetch the unread
// backlog over the REST endpoint instead.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan models.Notification
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]chan models.Notification),
	}
}

// Subscribe registers a new streaming client and returns its id and channel.
func (h *Hub) Subscribe() (string, <-chan models.Notification) {
	id := uuid.NewString()
	ch := make(chan models.Notification, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()

	return id, ch
}

// Unsubscribe drops a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	if ok {
		delete(h.subscribers, id)
	}
	h.mu.Unlock()

	if ok {
		close(ch)
	}
}

// Publish delivers a notification to all current subscribers without
// blocking: a subscriber whose buffer is full misses the event and has to
// catch up via the unread list.
func (h *Hub) Publish(n models.Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		select {
		case ch <- n:
		default:
			log.Warnf("[Notify] subscriber %s is lagging, dropping event %s", id, n.EventType)
		}
	}
}

// SubscriberCount returns the number of connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
