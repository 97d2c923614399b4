package service

import (
	"context"
	"fmt"

	"github.com/tanmiacare/go-notification-engine/internal/builder"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
	"github.com/tanmiacare/go-notification-engine/internal/repository"
	"github.com/tanmiacare/go-notification-engine/internal/shared/logger"
	"github.com/tanmiacare/go-notification-engine/internal/tracker"

	apperrors "github.com/tanmiacare/go-notification-engine/internal/shared/errors"
)

// Dispatcher queues a persisted notification for channel delivery
type Dispatcher interface {
	Dispatch(ctx context.Context, n *domain.Notification) error
}

// NotificationService coordinates building, persisting and dispatching
// notifications, and owns the read-state operations
type NotificationService struct {
	notifications *repository.NotificationRepository
	attempts      *repository.AttemptRepository
	builder       *builder.Builder
	dispatcher    Dispatcher
	tracker       *tracker.Tracker
	log           *logger.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(
	notifications *repository.NotificationRepository,
	attempts *repository.AttemptRepository,
	b *builder.Builder,
	d Dispatcher,
	tr *tracker.Tracker,
	log *logger.Logger,
) *NotificationService {
	return &NotificationService{
		notifications: notifications,
		attempts:      attempts,
		builder:       b,
		dispatcher:    d,
		tracker:       tr,
		log:           log,
	}
}

// Create builds a notification from a template, persists it and queues it
// for delivery
func (s *NotificationService) Create(ctx context.Context, req domain.CreateNotificationRequest) (*domain.Notification, error) {
	opts := &builder.Options{
		PriorityOverride: req.Priority,
		Channels:         req.Channels,
		ExpiresAt:        req.ExpiresAt,
	}
	n, err := s.builder.Build(req.Type, req.Params, req.Recipient, opts)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid notification request", err)
	}
	if err := s.Deliver(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// Deliver persists an already-built notification and hands it to the
// dispatcher
func (s *NotificationService) Deliver(ctx context.Context, n *domain.Notification) error {
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("persist notification: %w", err)
	}
	if err := s.dispatcher.Dispatch(ctx, n); err != nil {
		return fmt.Errorf("dispatch notification %s: %w", n.ID.Hex(), err)
	}
	return nil
}

// Get returns one notification by ID
func (s *NotificationService) Get(ctx context.Context, id string) (*domain.Notification, error) {
	return s.notifications.FindByID(ctx, id)
}

// List returns a page of a recipient's notifications
func (s *NotificationService) List(ctx context.Context, recipientID string, req domain.GetNotificationsRequest) ([]*domain.Notification, int64, error) {
	return s.notifications.FindByRecipient(ctx, recipientID, req)
}

// UnreadCount returns the recipient's unread total
func (s *NotificationService) UnreadCount(ctx context.Context, recipientID string) (int64, error) {
	return s.notifications.UnreadCount(ctx, recipientID)
}

// MarkRead records a read receipt for the recipient's own notification
func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID string) (*domain.Notification, error) {
	n, err := s.notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.RecipientID != recipientID {
		return nil, apperrors.NewNotFoundError("notification not found", nil)
	}
	if err := s.tracker.MarkRead(ctx, n, recipientID); err != nil {
		return nil, err
	}
	return n, nil
}

// BulkMarkRead marks several of the recipient's notifications read
func (s *NotificationService) BulkMarkRead(ctx context.Context, recipientID string, req domain.BulkMarkReadRequest) (int64, error) {
	return s.tracker.BulkMarkRead(ctx, req.NotificationIDs, recipientID)
}

// Cancel voids an undelivered notification
func (s *NotificationService) Cancel(ctx context.Context, id string) error {
	if _, err := s.notifications.FindByID(ctx, id); err != nil {
		return err
	}
	return s.notifications.Cancel(ctx, id)
}

// Attempts returns the delivery attempts made for a notification
func (s *NotificationService) Attempts(ctx context.Context, notificationID string) ([]*domain.DeliveryAttempt, error) {
	if _, err := s.notifications.FindByID(ctx, notificationID); err != nil {
		return nil, err
	}
	return s.attempts.FindByNotification(ctx, notificationID)
}
