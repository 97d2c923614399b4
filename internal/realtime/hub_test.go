package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

func eventFor(userID string) domain.DeliveryEvent {
	return domain.DeliveryEvent{
		Kind: domain.DeliveryEventDelivered,
		Notification: &domain.Notification{
			ID:            primitive.NewObjectID(),
			Type:          domain.NotificationTypeProgressUpdate,
			RecipientID:   userID,
			RecipientRole: domain.RoleParent,
			Priority:      domain.PriorityMedium,
			TitleEn:       "Progress update",
			CreatedAt:     time.Now(),
		},
		At: time.Now(),
	}
}

func TestHubDeliversInOrder(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	var want []string
	for i := 0; i < 10; i++ {
		event := eventFor("user-1")
		want = append(want, event.Notification.ID.Hex())
		hub.Publish(event)
	}

	for i, id := range want {
		select {
		case got := <-ch:
			if got.Notification.ID.Hex() != id {
				t.Fatalf("message %d = %s, want %s", i, got.Notification.ID.Hex(), id)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
}

func TestHubNoSubscriberIsNoOp(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	// must not panic or block
	hub.Publish(eventFor("nobody"))
}

func TestHubIsolatesRecipients(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	ch1, cancel1 := hub.Subscribe("user-1")
	defer cancel1()
	ch2, cancel2 := hub.Subscribe("user-2")
	defer cancel2()

	hub.Publish(eventFor("user-1"))

	select {
	case <-ch1:
	case <-time.After(time.Second):
		t.Fatal("user-1 did not receive event")
	}
	select {
	case event := <-ch2:
		t.Fatalf("user-2 received event %s for user-1", event.Notification.ID.Hex())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	ch, cancel := hub.Subscribe("user-1")
	defer cancel()

	// never drained, so publishes beyond the buffer must drop, not block
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize+10; i++ {
			hub.Publish(eventFor("user-1"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on slow subscriber")
	}
	if got := len(ch); got != subscriberBufferSize {
		t.Errorf("buffered messages = %d, want %d", got, subscriberBufferSize)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	ch, cancel := hub.Subscribe("user-1")
	if hub.SubscriberCount("user-1") != 1 {
		t.Fatal("subscriber not registered")
	}
	cancel()
	if hub.SubscriberCount("user-1") != 0 {
		t.Fatal("subscriber not removed")
	}
	if _, open := <-ch; open {
		t.Fatal("channel not closed on unsubscribe")
	}
}

func TestHubPublishRacingUnsubscribe(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()

	// publishers and cancellers hammer the same recipient; a publish must
	// never send on a channel an unsubscribe already closed
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					hub.Publish(eventFor("user-1"))
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		_, cancel := hub.Subscribe("user-1")
		cancel()
	}
	close(stop)
	wg.Wait()

	if hub.SubscriberCount("user-1") != 0 {
		t.Fatal("subscribers leaked")
	}
}

type fakeBroker struct {
	mu       sync.Mutex
	channels []string
	payloads []realtimePayload
	err      error
}

func (f *fakeBroker) Publish(ctx context.Context, channel string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.channels = append(f.channels, channel)
	if p, ok := payload.(realtimePayload); ok {
		f.payloads = append(f.payloads, p)
	}
	return nil
}

func TestNotifierPublishesToBrokerChannel(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()
	broker := &fakeBroker{}
	notifier := NewNotifier(hub, broker, logger.NewNopLogger())

	notifier.Consume(eventFor("user-42"))

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.channels) != 1 || broker.channels[0] != "notifications:user-42" {
		t.Errorf("broker channels = %v, want [notifications:user-42]", broker.channels)
	}
}

func TestNotifierForwardsEveryTransition(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()
	broker := &fakeBroker{}
	notifier := NewNotifier(hub, broker, logger.NewNopLogger())

	ch, cancel := notifier.Subscribe("user-1")
	defer cancel()

	kinds := []domain.DeliveryEventKind{
		domain.DeliveryEventCreated,
		domain.DeliveryEventSent,
		domain.DeliveryEventRetrying,
		domain.DeliveryEventFailed,
		domain.DeliveryEventRead,
	}
	for _, kind := range kinds {
		event := eventFor("user-1")
		event.Kind = kind
		event.Attempt = &domain.DeliveryAttempt{Channel: domain.ChannelSMS}
		notifier.Consume(event)
	}

	for i, kind := range kinds {
		select {
		case got := <-ch:
			if got.Kind != kind {
				t.Fatalf("local event %d kind = %s, want %s", i, got.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for local event %d", i)
		}
	}

	broker.mu.Lock()
	defer broker.mu.Unlock()
	if len(broker.payloads) != len(kinds) {
		t.Fatalf("broker payloads = %d, want %d", len(broker.payloads), len(kinds))
	}
	for i, kind := range kinds {
		if broker.payloads[i].Kind != kind {
			t.Errorf("broker payload %d kind = %s, want %s", i, broker.payloads[i].Kind, kind)
		}
		if broker.payloads[i].Channel != domain.ChannelSMS {
			t.Errorf("broker payload %d channel = %s, want sms", i, broker.payloads[i].Channel)
		}
	}
}

func TestNotifierBrokerFailureStillDeliversLocally(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()
	broker := &fakeBroker{err: errors.New("connection refused")}
	notifier := NewNotifier(hub, broker, logger.NewNopLogger())

	ch, cancel := notifier.Subscribe("user-1")
	defer cancel()

	notifier.Consume(eventFor("user-1"))

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("local subscriber did not receive event despite broker failure")
	}
}

func TestNotifierWithoutBroker(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	defer hub.Close()
	notifier := NewNotifier(hub, nil, logger.NewNopLogger())

	// must not panic
	notifier.Consume(eventFor("user-1"))
}
