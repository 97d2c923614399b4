package domain

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicateAttempt reports that an attempt already exists for a
// (notification, channel) pair. The store enforces the pair's uniqueness.
var ErrDuplicateAttempt = errors.New("delivery attempt already exists for this notification and channel")

// NotificationType represents the kind of notification being delivered
type NotificationType string

const (
	NotificationTypeSessionReminder   NotificationType = "session_reminder"
	NotificationTypeSessionStarted    NotificationType = "session_started"
	NotificationTypeAttendanceCheckin NotificationType = "attendance_checkin"
	NotificationTypeAttendanceLate    NotificationType = "attendance_late"
	NotificationTypeProgressUpdate    NotificationType = "progress_update"
	NotificationTypeGoalCompleted     NotificationType = "goal_completed"
	NotificationTypeEmergencyContact  NotificationType = "emergency_contact"
	NotificationTypeSystemUpdate      NotificationType = "system_update"
)

// Priority represents how urgently a notification should be delivered
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the ordering weight of a priority, higher is more urgent
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 1
	default:
		return 0
	}
}

// IsValid reports whether the priority is a known value
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Channel represents a delivery mechanism
type Channel string

const (
	ChannelInApp    Channel = "in_app"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// SupportedChannels lists every channel the engine can deliver to
func SupportedChannels() []Channel {
	return []Channel{ChannelInApp, ChannelSMS, ChannelPush, ChannelEmail, ChannelWhatsApp}
}

// RecipientRole identifies who a notification is addressed to
type RecipientRole string

const (
	RoleStudent   RecipientRole = "student"
	RoleParent    RecipientRole = "parent"
	RoleTherapist RecipientRole = "therapist"
	RoleAdmin     RecipientRole = "admin"
)

// Recipient pairs a user ID with the role they hold in the clinic
type Recipient struct {
	ID   string        `json:"id" bson:"id"`
	Role RecipientRole `json:"role" bson:"role"`
}

// Notification represents one message to one recipient, independent of how
// many channels deliver it
type Notification struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Type              NotificationType   `json:"type" bson:"type"`
	Priority          Priority           `json:"priority" bson:"priority"`
	RecipientID       string             `json:"recipient_id" bson:"recipient_id"`
	RecipientRole     RecipientRole      `json:"recipient_role" bson:"recipient_role"`
	TitleAr           string             `json:"title_ar" bson:"title_ar"`
	TitleEn           string             `json:"title_en" bson:"title_en"`
	BodyAr            string             `json:"body_ar" bson:"body_ar"`
	BodyEn            string             `json:"body_en" bson:"body_en"`
	Channels          []Channel          `json:"channels" bson:"channels"`
	ScheduledAt       time.Time          `json:"scheduled_at" bson:"scheduled_at"`
	SentAt            *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	ExpiresAt         *time.Time         `json:"expires_at,omitempty" bson:"expires_at,omitempty"`
	IsRead            bool               `json:"is_read" bson:"is_read"`
	ReadAt            *time.Time         `json:"read_at,omitempty" bson:"read_at,omitempty"`
	Cancelled         bool               `json:"cancelled" bson:"cancelled"`
	RelatedEntityType string             `json:"related_entity_type,omitempty" bson:"related_entity_type,omitempty"`
	RelatedEntityID   string             `json:"related_entity_id,omitempty" bson:"related_entity_id,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// Expired reports whether the notification has passed its expiry at the given time
func (n *Notification) Expired(at time.Time) bool {
	return n.ExpiresAt != nil && at.After(*n.ExpiresAt)
}

// Title returns the title for a locale, defaulting to Arabic
func (n *Notification) Title(locale string) string {
	if locale == "en" {
		return n.TitleEn
	}
	return n.TitleAr
}

// Body returns the body for a locale, defaulting to Arabic
func (n *Notification) Body(locale string) string {
	if locale == "en" {
		return n.BodyEn
	}
	return n.BodyAr
}

// AttemptStatus represents the delivery state of a single channel attempt
type AttemptStatus string

const (
	AttemptStatusScheduled AttemptStatus = "scheduled"
	AttemptStatusSent      AttemptStatus = "sent"
	AttemptStatusDelivered AttemptStatus = "delivered"
	AttemptStatusFailed    AttemptStatus = "failed"
)

// DeliveryAttempt is one channel-specific try to deliver a notification.
// There is at most one attempt document per (notification, channel) pair.
type DeliveryAttempt struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	NotificationID  primitive.ObjectID `json:"notification_id" bson:"notification_id"`
	Channel         Channel            `json:"channel" bson:"channel"`
	Status          AttemptStatus      `json:"status" bson:"status"`
	RetryCount      int                `json:"retry_count" bson:"retry_count"`
	LastAttemptedAt *time.Time         `json:"last_attempted_at,omitempty" bson:"last_attempted_at,omitempty"`
	DeliveredAt     *time.Time         `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	FailedAt        *time.Time         `json:"failed_at,omitempty" bson:"failed_at,omitempty"`
	ExternalRef     string             `json:"external_ref,omitempty" bson:"external_ref,omitempty"`
	Terminal        bool               `json:"terminal" bson:"terminal"`
	FailureReason   string             `json:"failure_reason,omitempty" bson:"failure_reason,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// IsTerminal reports whether no further delivery may be attempted
func (a *DeliveryAttempt) IsTerminal() bool {
	return a.Terminal || a.Status == AttemptStatusDelivered
}
