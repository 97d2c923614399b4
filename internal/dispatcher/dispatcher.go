package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/metrics"
	"github.com/tanmiacare/go-notification-engine/internal/preference"
	"github.com/tanmiacare/go-notification-engine/internal/queue"
	"github.com/tanmiacare/go-notification-engine/internal/sender"
	"github.com/tanmiacare/go-notification-engine/internal/shared/config"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
	"github.com/tanmiacare/go-notification-engine/internal/tracker"
)

// Directory resolves a recipient's delivery address for a channel
type Directory interface {
	AddressFor(ctx context.Context, userID string, ch domain.Channel) (string, error)
}

// NotificationReader loads the current persisted state of a notification.
// The dispatcher re-reads immediately before a send so a cancellation that
// landed while the job was queued still takes effect.
type NotificationReader interface {
	FindByID(ctx context.Context, id string) (*domain.Notification, error)
}

// Stats is a snapshot of dispatcher load for health reporting
type Stats struct {
	ActiveWorkers     int            `json:"active_workers"`
	QueueDepth        map[string]int `json:"queue_depth"`
	RecentFailureRate float64        `json:"recent_failure_rate"`
}

// Dispatcher resolves effective channels for a notification, creates one
// delivery attempt per channel and drives each through its channel worker
// pool. A (notification, channel) pair is never in flight twice.
type Dispatcher struct {
	cfg       config.DispatcherConfig
	resolver  *preference.Resolver
	tracker   *tracker.Tracker
	senders   sender.Registry
	directory Directory
	reader    NotificationReader
	log       *logger.Logger
	now       func() time.Time

	queues map[domain.Channel]*queue.PriorityQueue

	leaseMu sync.Mutex
	leases  map[string]struct{}

	activeMu sync.Mutex
	active   int

	wg      sync.WaitGroup
	stopCtx context.Context
	stop    context.CancelFunc
}

// NewDispatcher creates a dispatcher with one queue per supported channel
func NewDispatcher(
	cfg config.DispatcherConfig,
	resolver *preference.Resolver,
	tr *tracker.Tracker,
	senders sender.Registry,
	directory Directory,
	reader NotificationReader,
	log *logger.Logger,
) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		cfg:       cfg,
		resolver:  resolver,
		tracker:   tr,
		senders:   senders,
		directory: directory,
		reader:    reader,
		log:       log,
		now:       time.Now,
		queues:    make(map[domain.Channel]*queue.PriorityQueue),
		leases:    make(map[string]struct{}),
		stopCtx:   ctx,
		stop:      cancel,
	}
	for _, ch := range domain.SupportedChannels() {
		d.queues[ch] = queue.NewPriorityQueue()
	}
	return d
}

// Start launches the per-channel worker pools
func (d *Dispatcher) Start() {
	for ch, q := range d.queues {
		for i := 0; i < d.cfg.WorkersPerChannel; i++ {
			d.wg.Add(1)
			go d.worker(ch, q)
		}
	}
	d.log.Info("Dispatcher started",
		"channels", len(d.queues), "workers_per_channel", d.cfg.WorkersPerChannel)
}

// Stop drains the worker pools and waits for in-flight sends to finish
func (d *Dispatcher) Stop() {
	d.stop()
	for _, q := range d.queues {
		q.Close()
	}
	d.wg.Wait()
	d.log.Info("Dispatcher stopped")
}

// Dispatch resolves effective channels for the notification and queues one
// delivery attempt per channel. A preference resolution problem is logged
// and never blocks delivery on the surviving channels.
func (d *Dispatcher) Dispatch(ctx context.Context, n *domain.Notification) error {
	channels, err := d.resolver.Resolve(ctx, n.RecipientID, n.Type, n.Priority, n.Channels, d.now())
	if err != nil {
		if len(channels) == 0 {
			return fmt.Errorf("resolve preferences for %s: %w", n.RecipientID, err)
		}
		d.log.Warn("Preference resolution degraded, using fallback channels",
			"error", err, "user_id", n.RecipientID, "notification_id", n.ID.Hex())
	}
	if len(channels) == 0 {
		d.log.Info("Notification suppressed by preferences",
			"notification_id", n.ID.Hex(), "type", n.Type, "user_id", n.RecipientID)
		return nil
	}

	for _, ch := range channels {
		attempt, err := d.tracker.CreateAttempt(ctx, n, ch)
		if errors.Is(err, domain.ErrDuplicateAttempt) {
			d.log.Warn("Delivery already attempted, skipping",
				"notification_id", n.ID.Hex(), "channel", ch)
			continue
		}
		if err != nil {
			return fmt.Errorf("create attempt for channel %s: %w", ch, err)
		}
		d.enqueue(n, attempt)
	}
	return nil
}

// enqueue places an attempt on its channel queue unless the same
// (notification, channel) pair is already queued or in flight
func (d *Dispatcher) enqueue(n *domain.Notification, attempt *domain.DeliveryAttempt) {
	key := leaseKey(n.ID.Hex(), attempt.Channel)
	d.leaseMu.Lock()
	if _, held := d.leases[key]; held {
		d.leaseMu.Unlock()
		d.log.Warn("Skipping duplicate delivery job",
			"notification_id", n.ID.Hex(), "channel", attempt.Channel)
		return
	}
	d.leases[key] = struct{}{}
	d.leaseMu.Unlock()

	q := d.queues[attempt.Channel]
	q.Push(&queue.DeliveryJob{
		ID:           key,
		Priority:     n.Priority,
		Notification: n,
		Attempt:      attempt,
	})
	metrics.DispatchQueueDepth.WithLabelValues(string(attempt.Channel)).Set(float64(q.Len()))
}

func leaseKey(notificationID string, ch domain.Channel) string {
	return notificationID + ":" + string(ch)
}

func (d *Dispatcher) releaseLease(key string) {
	d.leaseMu.Lock()
	delete(d.leases, key)
	d.leaseMu.Unlock()
}

// worker pops jobs from one channel queue until the queue is closed
func (d *Dispatcher) worker(ch domain.Channel, q *queue.PriorityQueue) {
	defer d.wg.Done()
	for {
		job := q.Pop()
		if job == nil {
			return
		}
		metrics.DispatchQueueDepth.WithLabelValues(string(ch)).Set(float64(q.Len()))

		d.activeMu.Lock()
		d.active++
		d.activeMu.Unlock()

		d.process(job)

		d.activeMu.Lock()
		d.active--
		d.activeMu.Unlock()
	}
}

// process performs one delivery attempt and records its outcome
func (d *Dispatcher) process(job *queue.DeliveryJob) {
	n, attempt := job.Notification, job.Attempt
	ctx, cancel := context.WithTimeout(d.stopCtx, 30*time.Second)
	defer cancel()

	if stale, reason := d.staleness(ctx, n); stale {
		d.releaseLease(job.ID)
		d.log.Info("Skipping delivery of stale notification",
			"notification_id", n.ID.Hex(), "channel", attempt.Channel, "reason", reason)
		if reason == "expired" {
			if err := d.tracker.RecordFailed(ctx, n, attempt, reason, true); err != nil {
				d.log.Error("Failed to record stale attempt", "error", err)
			}
		}
		return
	}

	address, err := d.directory.AddressFor(ctx, n.RecipientID, attempt.Channel)
	if err != nil {
		d.releaseLease(job.ID)
		d.fail(ctx, n, attempt, fmt.Errorf("resolve address: %w", sender.Permanent(err)))
		return
	}

	s, ok := d.senders.For(attempt.Channel)
	if !ok {
		d.releaseLease(job.ID)
		d.fail(ctx, n, attempt, sender.Permanent(sender.ErrNoSender))
		return
	}

	start := d.now()
	ref, err := s.Send(ctx, address, sender.Content{
		TitleAr: n.TitleAr, TitleEn: n.TitleEn,
		BodyAr: n.BodyAr, BodyEn: n.BodyEn,
	})
	metrics.SendDuration.WithLabelValues(string(attempt.Channel)).Observe(d.now().Sub(start).Seconds())

	if err != nil {
		d.handleSendError(ctx, job, err)
		return
	}

	d.releaseLease(job.ID)
	if err := d.tracker.RecordSent(ctx, n, attempt, ref); err != nil {
		d.log.Error("Failed to record sent attempt", "error", err, "notification_id", n.ID.Hex())
		return
	}
	if err := d.tracker.RecordDelivered(ctx, n, attempt); err != nil {
		d.log.Error("Failed to record delivered attempt", "error", err, "notification_id", n.ID.Hex())
	}
}

// staleness reports whether the notification was cancelled or expired
// since the job was queued
func (d *Dispatcher) staleness(ctx context.Context, n *domain.Notification) (bool, string) {
	now := d.now()
	current := n
	if d.reader != nil {
		fresh, err := d.reader.FindByID(ctx, n.ID.Hex())
		if err != nil {
			d.log.Warn("Could not refresh notification before send",
				"error", err, "notification_id", n.ID.Hex())
		} else if fresh != nil {
			current = fresh
		}
	}
	if current.Cancelled {
		return true, "cancelled"
	}
	if current.Expired(now) {
		return true, "expired"
	}
	return false, ""
}

// handleSendError applies the retry policy: permanent errors and exhausted
// retries fail terminally, everything else is requeued with backoff
func (d *Dispatcher) handleSendError(ctx context.Context, job *queue.DeliveryJob, sendErr error) {
	n, attempt := job.Notification, job.Attempt

	if sender.IsPermanent(sendErr) || !sender.IsTransient(sendErr) {
		d.releaseLease(job.ID)
		d.fail(ctx, n, attempt, sendErr)
		return
	}

	if attempt.RetryCount >= d.cfg.MaxRetries {
		d.releaseLease(job.ID)
		d.log.Error("Delivery retries exhausted",
			"notification_id", n.ID.Hex(), "channel", attempt.Channel,
			"retry_count", attempt.RetryCount, "error", sendErr)
		if err := d.tracker.RecordFailed(ctx, n, attempt, sendErr.Error(), true); err != nil {
			d.log.Error("Failed to record terminal failure", "error", err)
		}
		return
	}

	if err := d.tracker.RecordFailed(ctx, n, attempt, sendErr.Error(), false); err != nil {
		d.releaseLease(job.ID)
		d.log.Error("Failed to record retryable failure", "error", err)
		return
	}

	delay := d.Backoff(attempt.RetryCount)
	d.log.Warn("Delivery failed, retrying",
		"notification_id", n.ID.Hex(), "channel", attempt.Channel,
		"retry_count", attempt.RetryCount, "delay", delay, "error", sendErr)

	// the lease stays held across the backoff so a concurrent dispatch of
	// the same pair cannot slip in
	time.AfterFunc(delay, func() {
		select {
		case <-d.stopCtx.Done():
			d.releaseLease(job.ID)
			return
		default:
		}
		q := d.queues[attempt.Channel]
		q.Push(&queue.DeliveryJob{
			ID:           job.ID,
			Priority:     n.Priority,
			Notification: n,
			Attempt:      attempt,
		})
		metrics.DispatchQueueDepth.WithLabelValues(string(attempt.Channel)).Set(float64(q.Len()))
	})
}

func (d *Dispatcher) fail(ctx context.Context, n *domain.Notification, attempt *domain.DeliveryAttempt, sendErr error) {
	d.log.Error("Delivery failed permanently",
		"notification_id", n.ID.Hex(), "channel", attempt.Channel, "error", sendErr)
	if err := d.tracker.RecordFailed(ctx, n, attempt, sendErr.Error(), true); err != nil {
		d.log.Error("Failed to record terminal failure", "error", err)
	}
}

// Backoff returns the requeue delay before retry number retryCount+1,
// doubling from the base delay and capped at the configured maximum
func (d *Dispatcher) Backoff(retryCount int) time.Duration {
	delay := d.cfg.BaseDelay << uint(retryCount)
	if delay <= 0 || delay > d.cfg.MaxDelay {
		return d.cfg.MaxDelay
	}
	return delay
}

// Stats reports current dispatcher load
func (d *Dispatcher) Stats() Stats {
	d.activeMu.Lock()
	active := d.active
	d.activeMu.Unlock()

	depth := make(map[string]int, len(d.queues))
	for ch, q := range d.queues {
		depth[string(ch)] = q.Len()
	}
	return Stats{
		ActiveWorkers:     active,
		QueueDepth:        depth,
		RecentFailureRate: d.tracker.RecentFailureRate(),
	}
}
