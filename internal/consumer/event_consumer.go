package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/builder"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/metrics"
	"github.com/tanmiacare/go-notification-engine/internal/scheduler"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

const (
	clinicEventsExchange = "clinic.events"
	clinicEventsQueue    = "notification-engine.clinic-events"
)

// Source provides a stream of raw broker messages
type Source interface {
	DeclareExchange(name, kind string) error
	DeclareQueue(name string) error
	BindQueue(queue, routingKey, exchange string) error
	Consume(queue string) (<-chan Message, error)
}

// Message is one consumable broker delivery
type Message interface {
	Payload() []byte
	Ack() error
	Nack(requeue bool) error
}

// Deliverer persists and dispatches a built notification
type Deliverer interface {
	Deliver(ctx context.Context, n *domain.Notification) error
}

// eventNotificationTypes maps clinic events to the notification template
// they produce. Session lifecycle events are absent because they drive the
// reminder scheduler instead.
var eventNotificationTypes = map[domain.ClinicEventType]domain.NotificationType{
	domain.EventAttendanceCheckin:  domain.NotificationTypeAttendanceCheckin,
	domain.EventAttendanceLate:     domain.NotificationTypeAttendanceLate,
	domain.EventProgressUpdated:    domain.NotificationTypeProgressUpdate,
	domain.EventGoalCompleted:      domain.NotificationTypeGoalCompleted,
	domain.EventEmergencyTriggered: domain.NotificationTypeEmergencyContact,
}

// EventConsumer turns clinic domain events into reminder schedules and
// immediate notifications
type EventConsumer struct {
	source    Source
	scheduler *scheduler.Scheduler
	builder   *builder.Builder
	deliverer Deliverer
	log       *logger.Logger
	done      chan struct{}
}

// NewEventConsumer creates a clinic event consumer
func NewEventConsumer(source Source, s *scheduler.Scheduler, b *builder.Builder, d Deliverer, log *logger.Logger) *EventConsumer {
	return &EventConsumer{
		source:    source,
		scheduler: s,
		builder:   b,
		deliverer: d,
		log:       log,
		done:      make(chan struct{}),
	}
}

// Start declares the topology and begins consuming until Stop is called
func (c *EventConsumer) Start() error {
	if err := c.source.DeclareExchange(clinicEventsExchange, "topic"); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if err := c.source.DeclareQueue(clinicEventsQueue); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := c.source.BindQueue(clinicEventsQueue, "#", clinicEventsExchange); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	messages, err := c.source.Consume(clinicEventsQueue)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go c.run(messages)
	c.log.Info("Clinic event consumer started", "queue", clinicEventsQueue)
	return nil
}

// Stop ends the consume loop
func (c *EventConsumer) Stop() {
	close(c.done)
}

func (c *EventConsumer) run(messages <-chan Message) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-messages:
			if !ok {
				c.log.Error("Clinic event stream closed")
				metrics.ConsumerRestarts.Inc()
				return
			}
			c.handleMessage(msg)
		}
	}
}

func (c *EventConsumer) handleMessage(msg Message) {
	var event domain.ClinicEvent
	if err := json.Unmarshal(msg.Payload(), &event); err != nil {
		c.log.Error("Dropping malformed clinic event", "error", err)
		if err := msg.Ack(); err != nil {
			c.log.Error("Failed to ack malformed event", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Handle(ctx, event); err != nil {
		c.log.Error("Failed to handle clinic event",
			"error", err, "event_type", event.Type, "entity_id", event.EntityID)
		if err := msg.Nack(true); err != nil {
			c.log.Error("Failed to nack event", "error", err)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		c.log.Error("Failed to ack event", "error", err)
	}
}

// Handle routes one clinic event. Session lifecycle events manage reminder
// jobs; everything else becomes an immediate notification per recipient.
func (c *EventConsumer) Handle(ctx context.Context, event domain.ClinicEvent) error {
	switch event.Type {
	case domain.EventSessionCreated:
		req, err := scheduleRequest(event)
		if err != nil {
			c.log.Error("Dropping unschedulable session event", "error", err, "entity_id", event.EntityID)
			return nil
		}
		_, err = c.scheduler.ScheduleEntityReminders(ctx, "session", event.EntityID, req)
		var conflict *scheduler.SchedulingConflictError
		if errors.As(err, &conflict) {
			c.log.Warn("Session already has reminders scheduled", "entity_id", event.EntityID)
			return nil
		}
		return err

	case domain.EventSessionRescheduled:
		req, err := scheduleRequest(event)
		if err != nil {
			c.log.Error("Dropping unschedulable session event", "error", err, "entity_id", event.EntityID)
			return nil
		}
		_, err = c.scheduler.Reschedule(ctx, "session", event.EntityID, req)
		return err

	case domain.EventSessionCancelled:
		_, err := c.scheduler.Cancel(ctx, event.EntityID)
		var notFound *scheduler.EntityNotFoundError
		if errors.As(err, &notFound) {
			c.log.Warn("Cancel for unknown session, nothing scheduled", "entity_id", event.EntityID)
			return nil
		}
		return err

	default:
		return c.notify(ctx, event)
	}
}

// notify builds and delivers an immediate notification for every recipient
// named on the event
func (c *EventConsumer) notify(ctx context.Context, event domain.ClinicEvent) error {
	t, ok := eventNotificationTypes[event.Type]
	if !ok {
		c.log.Debug("Ignoring unmapped clinic event", "event_type", event.Type)
		return nil
	}
	if len(event.Recipients) == 0 {
		c.log.Warn("Clinic event names no recipients", "event_type", event.Type, "entity_id", event.EntityID)
		return nil
	}

	for _, recipient := range event.Recipients {
		n, err := c.builder.Build(t, event.Params, recipient, &builder.Options{
			RelatedType: relatedType(event.Type),
			RelatedID:   event.EntityID,
		})
		if err != nil {
			// bad template data is not retryable, drop with a log
			c.log.Error("Failed to build notification from event",
				"error", err, "event_type", event.Type, "recipient", recipient.ID)
			continue
		}
		if err := c.deliverer.Deliver(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func scheduleRequest(event domain.ClinicEvent) (domain.ScheduleRemindersRequest, error) {
	if event.OccursAt == nil {
		return domain.ScheduleRemindersRequest{}, fmt.Errorf("session event %s has no occurs_at", event.EntityID)
	}
	if len(event.Recipients) == 0 {
		return domain.ScheduleRemindersRequest{}, fmt.Errorf("session event %s has no recipients", event.EntityID)
	}
	return domain.ScheduleRemindersRequest{
		EntityType: "session",
		Baseline:   *event.OccursAt,
		Recipients: event.Recipients,
		Params:     event.Params,
	}, nil
}

func relatedType(t domain.ClinicEventType) string {
	switch t {
	case domain.EventAttendanceCheckin, domain.EventAttendanceLate:
		return "attendance"
	case domain.EventProgressUpdated:
		return "progress"
	case domain.EventGoalCompleted:
		return "goal"
	case domain.EventEmergencyTriggered:
		return "emergency"
	default:
		return "session"
	}
}
