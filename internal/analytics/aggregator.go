package analytics

import (
	"context"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
)

// Store persists daily delivery counters
type Store interface {
	IncrementDaily(ctx context.Context, day string, t domain.NotificationType, ch domain.Channel, field string, delta int64) error
	Report(ctx context.Context, from, to time.Time) ([]domain.DailyStat, error)
}

const flushTimeout = 5 * time.Second

// Aggregator folds delivery events into per-day, per-type, per-channel
// counters. It consumes events from the tracker and must never fail a
// delivery, so storage errors are logged and swallowed.
type Aggregator struct {
	store Store
	log   *logger.Logger
	now   func() time.Time
}

// NewAggregator creates an aggregator over the given store
func NewAggregator(store Store, log *logger.Logger) *Aggregator {
	return &Aggregator{store: store, log: log, now: time.Now}
}

// Consume is registered with the tracker as an event consumer
func (a *Aggregator) Consume(event domain.DeliveryEvent) {
	field := fieldFor(event.Kind)
	if field == "" {
		return
	}

	var ch domain.Channel
	if event.Attempt != nil {
		ch = event.Attempt.Channel
	} else {
		ch = domain.ChannelInApp
	}

	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	day := event.At.UTC().Format("2006-01-02")
	if err := a.store.IncrementDaily(ctx, day, event.Notification.Type, ch, field, 1); err != nil {
		a.log.Error("Failed to record analytics counter",
			"error", err, "day", day, "field", field, "type", event.Notification.Type)
	}
}

// fieldFor maps an event kind to its counter field; kinds without a
// counter return ""
func fieldFor(kind domain.DeliveryEventKind) string {
	switch kind {
	case domain.DeliveryEventSent:
		return "sent"
	case domain.DeliveryEventDelivered:
		return "delivered"
	case domain.DeliveryEventFailed:
		return "failed"
	case domain.DeliveryEventRetrying:
		return "retried"
	case domain.DeliveryEventRead:
		return "read"
	default:
		return ""
	}
}

// Report returns aggregated daily stats for the inclusive date range
func (a *Aggregator) Report(ctx context.Context, from, to time.Time) (*domain.AnalyticsReport, error) {
	stats, err := a.store.Report(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &domain.AnalyticsReport{
		From: from.UTC().Format("2006-01-02"),
		To:   to.UTC().Format("2006-01-02"),
		Days: stats,
	}
	for _, s := range stats {
		report.TotalSent += s.Sent
		report.TotalDelivered += s.Delivered
		report.TotalFailed += s.Failed
		report.TotalRead += s.Read
	}
	if report.TotalSent > 0 {
		report.DeliveryRate = float64(report.TotalDelivered) / float64(report.TotalSent)
	}
	if report.TotalDelivered > 0 {
		report.ReadRate = float64(report.TotalRead) / float64(report.TotalDelivered)
	}
	return report, nil
}
