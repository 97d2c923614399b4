package analytics

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

type counterKey struct {
	day     string
	typ     domain.NotificationType
	channel domain.Channel
	field   string
}

type fakeStore struct {
	mu       sync.Mutex
	counters map[counterKey]int64
	stats    []domain.DailyStat
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{counters: make(map[counterKey]int64)}
}

func (f *fakeStore) IncrementDaily(ctx context.Context, day string, t domain.NotificationType, ch domain.Channel, field string, delta int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.counters[counterKey{day, t, ch, field}] += delta
	return nil
}

func (f *fakeStore) Report(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func eventAt(kind domain.DeliveryEventKind, ch domain.Channel, at time.Time) domain.DeliveryEvent {
	n := &domain.Notification{
		ID:       primitive.NewObjectID(),
		Type:     domain.NotificationTypeSessionReminder,
		Priority: domain.PriorityHigh,
	}
	var attempt *domain.DeliveryAttempt
	if kind != domain.DeliveryEventRead {
		attempt = &domain.DeliveryAttempt{NotificationID: n.ID, Channel: ch}
	}
	return domain.DeliveryEvent{Kind: kind, Notification: n, Attempt: attempt, At: at}
}

func TestAggregatorCountsByDayTypeChannel(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, logger.NewNopLogger())

	day := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)
	agg.Consume(eventAt(domain.DeliveryEventSent, domain.ChannelSMS, day))
	agg.Consume(eventAt(domain.DeliveryEventSent, domain.ChannelSMS, day))
	agg.Consume(eventAt(domain.DeliveryEventDelivered, domain.ChannelSMS, day))
	agg.Consume(eventAt(domain.DeliveryEventFailed, domain.ChannelEmail, day))
	agg.Consume(eventAt(domain.DeliveryEventRetrying, domain.ChannelEmail, day))

	tests := []struct {
		key  counterKey
		want int64
	}{
		{counterKey{"2026-03-10", domain.NotificationTypeSessionReminder, domain.ChannelSMS, "sent"}, 2},
		{counterKey{"2026-03-10", domain.NotificationTypeSessionReminder, domain.ChannelSMS, "delivered"}, 1},
		{counterKey{"2026-03-10", domain.NotificationTypeSessionReminder, domain.ChannelEmail, "failed"}, 1},
		{counterKey{"2026-03-10", domain.NotificationTypeSessionReminder, domain.ChannelEmail, "retried"}, 1},
	}
	for _, tt := range tests {
		if got := store.counters[tt.key]; got != tt.want {
			t.Errorf("counter %+v = %d, want %d", tt.key, got, tt.want)
		}
	}
}

func TestAggregatorReadEventUsesInAppChannel(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, logger.NewNopLogger())

	day := time.Date(2026, 3, 10, 22, 0, 0, 0, time.UTC)
	agg.Consume(eventAt(domain.DeliveryEventRead, "", day))

	key := counterKey{"2026-03-10", domain.NotificationTypeSessionReminder, domain.ChannelInApp, "read"}
	if got := store.counters[key]; got != 1 {
		t.Errorf("read counter = %d, want 1", got)
	}
}

func TestAggregatorIgnoresCreatedEvents(t *testing.T) {
	store := newFakeStore()
	agg := NewAggregator(store, logger.NewNopLogger())

	agg.Consume(eventAt(domain.DeliveryEventCreated, domain.ChannelPush, time.Now()))
	if len(store.counters) != 0 {
		t.Errorf("created event produced counters: %v", store.counters)
	}
}

func TestAggregatorSwallowsStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("write concern failure")
	agg := NewAggregator(store, logger.NewNopLogger())

	// must not panic or propagate
	agg.Consume(eventAt(domain.DeliveryEventSent, domain.ChannelPush, time.Now()))
}

func TestAggregatorReport(t *testing.T) {
	store := newFakeStore()
	store.stats = []domain.DailyStat{
		{Day: "2026-03-09", Type: domain.NotificationTypeSessionReminder, Channel: domain.ChannelSMS, Sent: 10, Delivered: 8, Failed: 2, Read: 4},
		{Day: "2026-03-10", Type: domain.NotificationTypeProgressUpdate, Channel: domain.ChannelInApp, Sent: 5, Delivered: 5, Read: 3},
	}
	agg := NewAggregator(store, logger.NewNopLogger())

	from := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	report, err := agg.Report(context.Background(), from, to)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}

	if report.TotalSent != 15 || report.TotalDelivered != 13 || report.TotalFailed != 2 || report.TotalRead != 7 {
		t.Errorf("totals = sent %d delivered %d failed %d read %d",
			report.TotalSent, report.TotalDelivered, report.TotalFailed, report.TotalRead)
	}
	wantDelivery := float64(13) / float64(15)
	if report.DeliveryRate != wantDelivery {
		t.Errorf("delivery rate = %v, want %v", report.DeliveryRate, wantDelivery)
	}
	wantRead := float64(7) / float64(13)
	if report.ReadRate != wantRead {
		t.Errorf("read rate = %v, want %v", report.ReadRate, wantRead)
	}
}
