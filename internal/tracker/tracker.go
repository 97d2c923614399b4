package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/metrics"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

// ErrTerminalAttempt is returned when a state transition is requested on an
// attempt that already reached a terminal state
var ErrTerminalAttempt = errors.New("delivery attempt is terminal")

// NotificationStore persists notification status fields
type NotificationStore interface {
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, id, userID string, at time.Time) error
	BulkMarkRead(ctx context.Context, ids []string, userID string, at time.Time) (int64, error)
}

// AttemptStore persists delivery attempts
type AttemptStore interface {
	Create(ctx context.Context, attempt *domain.DeliveryAttempt) error
	Update(ctx context.Context, attempt *domain.DeliveryAttempt) error
}

// Consumer receives delivery events. Consumers must be fast; slow work
// belongs in the consumer's own goroutines.
type Consumer func(event domain.DeliveryEvent)

const eventBufferSize = 1024

// Tracker records delivery state transitions, enforces the terminal-state
// guard, and fans events out to registered consumers. It is the only
// component that writes status fields.
type Tracker struct {
	notifications NotificationStore
	attempts      AttemptStore
	log           *logger.Logger
	now           func() time.Time

	mu        sync.RWMutex
	consumers []Consumer
	events    chan domain.DeliveryEvent
	done      chan struct{}

	outcomeMu sync.Mutex
	outcomes  []outcome
	window    time.Duration
}

// outcome is one terminal delivery result used for the recent failure rate
type outcome struct {
	at     time.Time
	failed bool
}

// NewTracker creates a delivery tracker and starts its event loop
func NewTracker(notifications NotificationStore, attempts AttemptStore, log *logger.Logger) *Tracker {
	t := &Tracker{
		notifications: notifications,
		attempts:      attempts,
		log:           log,
		now:           time.Now,
		events:        make(chan domain.DeliveryEvent, eventBufferSize),
		done:          make(chan struct{}),
		window:        5 * time.Minute,
	}
	go t.eventLoop()
	return t
}

// Register adds a consumer for delivery events. Events are delivered in
// emission order by a single loop goroutine.
func (t *Tracker) Register(c Consumer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.consumers = append(t.consumers, c)
}

// Close stops the event loop
func (t *Tracker) Close() {
	close(t.done)
}

// CreateAttempt persists a fresh scheduled attempt for one channel and
// emits a created event
func (t *Tracker) CreateAttempt(ctx context.Context, n *domain.Notification, ch domain.Channel) (*domain.DeliveryAttempt, error) {
	now := t.now()
	attempt := &domain.DeliveryAttempt{
		NotificationID: n.ID,
		Channel:        ch,
		Status:         domain.AttemptStatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := t.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}
	t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventCreated, Notification: n, Attempt: attempt, At: now})
	return attempt, nil
}

// RecordSent marks an attempt as handed to the transport
func (t *Tracker) RecordSent(ctx context.Context, n *domain.Notification, attempt *domain.DeliveryAttempt, externalRef string) error {
	if attempt.IsTerminal() {
		return ErrTerminalAttempt
	}

	now := t.now()
	attempt.Status = domain.AttemptStatusSent
	attempt.ExternalRef = externalRef
	attempt.LastAttemptedAt = &now
	attempt.UpdatedAt = now
	if err := t.attempts.Update(ctx, attempt); err != nil {
		return err
	}

	if n.SentAt == nil {
		if err := t.notifications.MarkSent(ctx, n.ID.Hex(), now); err != nil {
			t.log.Error("Failed to mark notification sent", "error", err, "id", n.ID.Hex())
		} else {
			n.SentAt = &now
		}
	}

	metrics.AttemptsSent.WithLabelValues(string(n.Type), string(attempt.Channel)).Inc()
	t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventSent, Notification: n, Attempt: attempt, At: now})
	return nil
}

// RecordDelivered marks an attempt as confirmed delivered, a terminal state
func (t *Tracker) RecordDelivered(ctx context.Context, n *domain.Notification, attempt *domain.DeliveryAttempt) error {
	if attempt.Status == domain.AttemptStatusDelivered || attempt.Terminal {
		return ErrTerminalAttempt
	}

	now := t.now()
	attempt.Status = domain.AttemptStatusDelivered
	attempt.DeliveredAt = &now
	attempt.UpdatedAt = now
	if err := t.attempts.Update(ctx, attempt); err != nil {
		return err
	}

	t.recordOutcome(now, false)
	metrics.AttemptsDelivered.WithLabelValues(string(n.Type), string(attempt.Channel)).Inc()
	t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventDelivered, Notification: n, Attempt: attempt, At: now})
	return nil
}

// RecordFailed records a failure. A non-terminal failure moves the attempt
// back to scheduled with an incremented retry count; a terminal one freezes
// it as failed forever.
func (t *Tracker) RecordFailed(ctx context.Context, n *domain.Notification, attempt *domain.DeliveryAttempt, reason string, terminal bool) error {
	if attempt.IsTerminal() {
		return ErrTerminalAttempt
	}

	now := t.now()
	attempt.LastAttemptedAt = &now
	attempt.FailureReason = reason
	attempt.UpdatedAt = now

	if terminal {
		attempt.Status = domain.AttemptStatusFailed
		attempt.Terminal = true
		attempt.FailedAt = &now
		if err := t.attempts.Update(ctx, attempt); err != nil {
			return err
		}
		t.recordOutcome(now, true)
		metrics.AttemptsFailed.WithLabelValues(string(n.Type), string(attempt.Channel), reason).Inc()
		t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventFailed, Notification: n, Attempt: attempt, At: now})
		return nil
	}

	attempt.Status = domain.AttemptStatusScheduled
	attempt.RetryCount++
	if err := t.attempts.Update(ctx, attempt); err != nil {
		return err
	}
	metrics.AttemptRetries.WithLabelValues(string(attempt.Channel)).Inc()
	t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventRetrying, Notification: n, Attempt: attempt, At: now})
	return nil
}

// MarkRead records a read receipt. Marking an already-read notification is
// a no-op, not an error.
func (t *Tracker) MarkRead(ctx context.Context, n *domain.Notification, userID string) error {
	if n.IsRead {
		return nil
	}

	now := t.now()
	if err := t.notifications.MarkRead(ctx, n.ID.Hex(), userID, now); err != nil {
		return err
	}
	n.IsRead = true
	n.ReadAt = &now
	t.emit(domain.DeliveryEvent{Kind: domain.DeliveryEventRead, Notification: n, At: now})
	return nil
}

// BulkMarkRead records read receipts for many notifications at once
func (t *Tracker) BulkMarkRead(ctx context.Context, ids []string, userID string) (int64, error) {
	return t.notifications.BulkMarkRead(ctx, ids, userID, t.now())
}

// RecentFailureRate returns the fraction of terminal outcomes in the recent
// window that were failures
func (t *Tracker) RecentFailureRate() float64 {
	t.outcomeMu.Lock()
	defer t.outcomeMu.Unlock()

	cutoff := t.now().Add(-t.window)
	var total, failed int
	kept := t.outcomes[:0]
	for _, o := range t.outcomes {
		if o.at.Before(cutoff) {
			continue
		}
		kept = append(kept, o)
		total++
		if o.failed {
			failed++
		}
	}
	t.outcomes = kept

	if total == 0 {
		return 0
	}
	return float64(failed) / float64(total)
}

func (t *Tracker) recordOutcome(at time.Time, failed bool) {
	t.outcomeMu.Lock()
	defer t.outcomeMu.Unlock()
	t.outcomes = append(t.outcomes, outcome{at: at, failed: failed})
}

// emit queues an event without ever blocking the caller
func (t *Tracker) emit(event domain.DeliveryEvent) {
	select {
	case t.events <- event:
	default:
		t.log.Warn("Event buffer full, dropping delivery event", "kind", event.Kind)
	}
}

// eventLoop delivers events to consumers in emission order
func (t *Tracker) eventLoop() {
	for {
		select {
		case <-t.done:
			return
		case event := <-t.events:
			t.mu.RLock()
			consumers := t.consumers
			t.mu.RUnlock()
			for _, c := range consumers {
				c(event)
			}
		}
	}
}
