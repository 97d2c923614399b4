package consumer

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tanmiacare/go-notification-engine/internal/builder"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/scheduler"
	"github.com/tanmiacare/go-notification-engine/internal/shared/config"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs []*domain.ReminderJob
}

func (f *memJobStore) CreateMany(ctx context.Context, jobs []*domain.ReminderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range jobs {
		j.ID = primitive.NewObjectID()
		f.jobs = append(f.jobs, j)
	}
	return nil
}

func (f *memJobStore) ClaimDue(ctx context.Context, now time.Time, staleAfter time.Duration, claimedBy string, limit int) ([]*domain.ReminderJob, error) {
	return nil, nil
}

func (f *memJobStore) MarkSent(ctx context.Context, jobID string, at time.Time) error { return nil }

func (f *memJobStore) ReleaseClaim(ctx context.Context, jobID string) error { return nil }

func (f *memJobStore) CancelUnsent(ctx context.Context, entityID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, j := range f.jobs {
		if j.RelatedEntityID == entityID && j.SentAt == nil && !j.Cancelled {
			j.Cancelled = true
			n++
		}
	}
	return n, nil
}

func (f *memJobStore) CountUnsent(ctx context.Context, entityID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, j := range f.jobs {
		if j.RelatedEntityID == entityID && j.SentAt == nil && !j.Cancelled {
			n++
		}
	}
	return n, nil
}

func (f *memJobStore) CountForEntity(ctx context.Context, entityID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, j := range f.jobs {
		if j.RelatedEntityID == entityID {
			n++
		}
	}
	return n, nil
}

type memDeliverer struct {
	mu        sync.Mutex
	delivered []*domain.Notification
}

func (f *memDeliverer) Deliver(ctx context.Context, n *domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, n)
	return nil
}

func newTestConsumer(t *testing.T) (*EventConsumer, *memJobStore, *memDeliverer) {
	t.Helper()
	store := &memJobStore{}
	deliverer := &memDeliverer{}
	b := builder.NewBuilder()
	s := scheduler.NewScheduler(
		config.SchedulerConfig{PollInterval: 30 * time.Second, ClaimTTL: 2 * time.Minute},
		store, b, deliverer, "instance-test", logger.NewNopLogger(),
	)
	c := NewEventConsumer(nil, s, b, deliverer, logger.NewNopLogger())
	return c, store, deliverer
}

func sessionEvent(t domain.ClinicEventType, entityID string, occursAt time.Time) domain.ClinicEvent {
	return domain.ClinicEvent{
		Type:     t,
		EntityID: entityID,
		OccursAt: &occursAt,
		Recipients: []domain.Recipient{
			{ID: "parent-1", Role: domain.RoleParent},
		},
		Params:    map[string]string{"student_name": "Sara"},
		Timestamp: time.Now(),
	}
}

func TestHandleSessionCreatedSchedulesReminders(t *testing.T) {
	c, store, _ := newTestConsumer(t)

	occursAt := time.Now().Add(48 * time.Hour)
	if err := c.Handle(context.Background(), sessionEvent(domain.EventSessionCreated, "session-1", occursAt)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	unsent, _ := store.CountUnsent(context.Background(), "session-1")
	if unsent != 3 {
		t.Errorf("unsent jobs = %d, want 3", unsent)
	}
}

func TestHandleDuplicateSessionCreatedIsSwallowed(t *testing.T) {
	c, _, _ := newTestConsumer(t)

	occursAt := time.Now().Add(48 * time.Hour)
	event := sessionEvent(domain.EventSessionCreated, "session-1", occursAt)
	if err := c.Handle(context.Background(), event); err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	// redelivered event must not error, or the broker would loop forever
	if err := c.Handle(context.Background(), event); err != nil {
		t.Fatalf("duplicate Handle: %v", err)
	}
}

func TestHandleSessionRescheduledReplacesJobs(t *testing.T) {
	c, store, _ := newTestConsumer(t)
	ctx := context.Background()

	if err := c.Handle(ctx, sessionEvent(domain.EventSessionCreated, "session-1", time.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Handle(ctx, sessionEvent(domain.EventSessionRescheduled, "session-1", time.Now().Add(72*time.Hour))); err != nil {
		t.Fatalf("reschedule: %v", err)
	}

	unsent, _ := store.CountUnsent(ctx, "session-1")
	if unsent != 3 {
		t.Errorf("active jobs after reschedule = %d, want 3", unsent)
	}
	store.mu.Lock()
	total := len(store.jobs)
	store.mu.Unlock()
	if total != 6 {
		t.Errorf("total jobs = %d, want 6 (3 cancelled + 3 active)", total)
	}
}

func TestHandleSessionCancelledVoidsJobs(t *testing.T) {
	c, store, _ := newTestConsumer(t)
	ctx := context.Background()

	if err := c.Handle(ctx, sessionEvent(domain.EventSessionCreated, "session-1", time.Now().Add(48*time.Hour))); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Handle(ctx, domain.ClinicEvent{Type: domain.EventSessionCancelled, EntityID: "session-1"}); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	unsent, _ := store.CountUnsent(ctx, "session-1")
	if unsent != 0 {
		t.Errorf("unsent jobs after cancel = %d, want 0", unsent)
	}
}

func TestHandleCancelForUnknownSessionIsSwallowed(t *testing.T) {
	c, _, _ := newTestConsumer(t)

	// nothing was ever scheduled; the message must be dropped, not requeued
	err := c.Handle(context.Background(), domain.ClinicEvent{
		Type:     domain.EventSessionCancelled,
		EntityID: "session-unknown",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandleAttendanceEventNotifiesEveryRecipient(t *testing.T) {
	c, _, deliverer := newTestConsumer(t)

	event := domain.ClinicEvent{
		Type:     domain.EventAttendanceCheckin,
		EntityID: "attendance-9",
		Recipients: []domain.Recipient{
			{ID: "parent-1", Role: domain.RoleParent},
			{ID: "therapist-1", Role: domain.RoleTherapist},
		},
		Params: map[string]string{"student_name": "Sara", "checkin_time": "09:05"},
	}
	if err := c.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.delivered) != 2 {
		t.Fatalf("delivered %d notifications, want 2", len(deliverer.delivered))
	}
	for _, n := range deliverer.delivered {
		if n.Type != domain.NotificationTypeAttendanceCheckin {
			t.Errorf("type = %s, want attendance_checkin", n.Type)
		}
		if n.RelatedEntityID != "attendance-9" {
			t.Errorf("related entity = %s, want attendance-9", n.RelatedEntityID)
		}
	}
}

func TestHandleEmergencyEventIsUrgent(t *testing.T) {
	c, _, deliverer := newTestConsumer(t)

	event := domain.ClinicEvent{
		Type:       domain.EventEmergencyTriggered,
		EntityID:   "emergency-1",
		Recipients: []domain.Recipient{{ID: "parent-1", Role: domain.RoleParent}},
		Params:     map[string]string{"student_name": "Sara", "message": "Please call the clinic"},
	}
	if err := c.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.delivered) != 1 {
		t.Fatalf("delivered %d, want 1", len(deliverer.delivered))
	}
	if deliverer.delivered[0].Priority != domain.PriorityUrgent {
		t.Errorf("priority = %s, want urgent", deliverer.delivered[0].Priority)
	}
}

func TestHandleUnmappedEventIsIgnored(t *testing.T) {
	c, _, deliverer := newTestConsumer(t)

	event := domain.ClinicEvent{
		Type:       "billing.invoiced",
		EntityID:   "invoice-1",
		Recipients: []domain.Recipient{{ID: "parent-1", Role: domain.RoleParent}},
	}
	if err := c.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	deliverer.mu.Lock()
	defer deliverer.mu.Unlock()
	if len(deliverer.delivered) != 0 {
		t.Errorf("delivered %d notifications for unmapped event, want 0", len(deliverer.delivered))
	}
}
