package realtime

import (
	"sync"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/metrics"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

const subscriberBufferSize = 64

// Hub fans delivery events out to connected subscribers. Each subscriber
// owns a buffered channel; a subscriber that stops draining loses messages
// rather than stalling the hub.
type Hub struct {
	log *logger.Logger

	mu          sync.RWMutex
	subscribers map[string][]*subscriber
	nextID      int
	closed      bool
}

type subscriber struct {
	id int
	ch chan domain.DeliveryEvent
}

// NewHub creates an empty hub
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:         log,
		subscribers: make(map[string][]*subscriber),
	}
}

// Subscribe registers a listener for one recipient. The returned cancel
// function removes the subscription and closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan domain.DeliveryEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub := &subscriber{id: h.nextID, ch: make(chan domain.DeliveryEvent, subscriberBufferSize)}
	h.nextID++
	if h.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subscribers[userID] = append(h.subscribers[userID], sub)

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.subscribers[userID]
		for i, s := range subs {
			if s.id == sub.id {
				h.subscribers[userID] = append(subs[:i], subs[i+1:]...)
				close(s.ch)
				break
			}
		}
		if len(h.subscribers[userID]) == 0 {
			delete(h.subscribers, userID)
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to every subscriber of its recipient.
// Publishing with no subscribers is a no-op. A full subscriber buffer
// drops the event for that subscriber only. The read lock is held across
// the sends so a concurrent cancel or Close cannot close a channel
// mid-publish; the sends never block, so the hold is brief.
func (h *Hub) Publish(event domain.DeliveryEvent) {
	userID := event.Notification.RecipientID

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers[userID] {
		select {
		case sub.ch <- event:
			metrics.RealtimePublished.Inc()
		default:
			metrics.RealtimeDropped.Inc()
			h.log.Warn("Dropping realtime event for slow subscriber",
				"user_id", userID, "notification_id", event.Notification.ID.Hex(),
				"kind", string(event.Kind))
		}
	}
}

// SubscriberCount reports how many listeners a recipient currently has
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close shuts the hub down and closes every subscriber channel
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for userID, subs := range h.subscribers {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(h.subscribers, userID)
	}
}
