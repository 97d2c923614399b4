package domain

import "time"

// CreateNotificationRequest represents a request to build and dispatch a
// notification immediately
type CreateNotificationRequest struct {
	Type      NotificationType  `json:"type" binding:"required"`
	Recipient Recipient         `json:"recipient" binding:"required"`
	Params    map[string]string `json:"params"`
	Priority  Priority          `json:"priority,omitempty"`
	Channels  []Channel         `json:"channels,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// ScheduleRemindersRequest represents a request to create reminder jobs for
// an entity anchored at a baseline time
type ScheduleRemindersRequest struct {
	EntityType string            `json:"entity_type"`
	Baseline   time.Time         `json:"baseline" binding:"required"`
	Recipients []Recipient       `json:"recipients" binding:"required,min=1"`
	Params     map[string]string `json:"params"`
}

// ManualReminderRequest represents a request to fire one reminder kind now
type ManualReminderRequest struct {
	Kind       ReminderKind      `json:"kind" binding:"required"`
	Baseline   time.Time         `json:"baseline"`
	Recipients []Recipient       `json:"recipients" binding:"required,min=1"`
	Params     map[string]string `json:"params"`
}

// GetNotificationsRequest represents a request to list a user's notifications
type GetNotificationsRequest struct {
	Type       NotificationType `form:"type"`
	UnreadOnly bool             `form:"unread_only"`
	Page       int              `form:"page"`
	PageSize   int              `form:"page_size"`
}

// BulkMarkReadRequest represents a request to mark several notifications read
type BulkMarkReadRequest struct {
	NotificationIDs []string `json:"notification_ids" binding:"required,min=1"`
}

