package realtime

import (
	"context"
	"fmt"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
	"github.com/tanmiacare/go-notification-engine/internal/shared/redis"
)

const brokerPublishTimeout = 5 * time.Second

// Publisher pushes a payload to a channel on an external broker
type Publisher interface {
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// Notifier pushes delivery events to live subscribers on this instance
// and, when a broker is configured, to other instances via a
// per-recipient channel. It consumes every tracker transition, so
// subscribers see sent, failed, retrying and read updates in the order
// the tracker recorded them.
type Notifier struct {
	hub    *Hub
	broker Publisher
	log    *logger.Logger
}

// realtimePayload is the wire shape published to the broker
type realtimePayload struct {
	Kind           domain.DeliveryEventKind `json:"kind"`
	NotificationID string                   `json:"notification_id"`
	Type           domain.NotificationType  `json:"type"`
	Priority       domain.Priority          `json:"priority"`
	Channel        domain.Channel           `json:"channel,omitempty"`
	TitleAr        string                   `json:"title_ar"`
	TitleEn        string                   `json:"title_en"`
	BodyAr         string                   `json:"body_ar"`
	BodyEn         string                   `json:"body_en"`
	At             time.Time                `json:"at"`
}

// NewNotifier creates a realtime notifier. broker may be nil for
// single-instance deployments.
func NewNotifier(hub *Hub, broker Publisher, log *logger.Logger) *Notifier {
	return &Notifier{hub: hub, broker: broker, log: log}
}

// NewRedisNotifier wires the notifier to a redis-backed broker
func NewRedisNotifier(hub *Hub, client *redis.Client, log *logger.Logger) *Notifier {
	var broker Publisher
	if client != nil {
		broker = client
	}
	return NewNotifier(hub, broker, log)
}

// ChannelFor returns the broker channel name for a recipient
func ChannelFor(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// Consume delivers one tracker event to local subscribers and publishes it
// to the broker. It is registered with the delivery tracker, whose single
// event loop preserves per-recipient ordering. Broker failures are logged
// and never fail the transition.
func (n *Notifier) Consume(event domain.DeliveryEvent) {
	n.hub.Publish(event)

	if n.broker == nil {
		return
	}
	notification := event.Notification
	payload := realtimePayload{
		Kind:           event.Kind,
		NotificationID: notification.ID.Hex(),
		Type:           notification.Type,
		Priority:       notification.Priority,
		TitleAr:        notification.TitleAr,
		TitleEn:        notification.TitleEn,
		BodyAr:         notification.BodyAr,
		BodyEn:         notification.BodyEn,
		At:             event.At,
	}
	if event.Attempt != nil {
		payload.Channel = event.Attempt.Channel
	}

	ctx, cancel := context.WithTimeout(context.Background(), brokerPublishTimeout)
	defer cancel()
	if err := n.broker.Publish(ctx, ChannelFor(notification.RecipientID), payload); err != nil {
		n.log.Error("Failed to publish realtime event to broker",
			"error", err, "user_id", notification.RecipientID, "kind", string(event.Kind))
	}
}

// Subscribe registers a local listener for a recipient
func (n *Notifier) Subscribe(userID string) (<-chan domain.DeliveryEvent, func()) {
	return n.hub.Subscribe(userID)
}

// Close shuts down the local hub
func (n *Notifier) Close() {
	n.hub.Close()
}
