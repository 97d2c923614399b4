package domain

import "time"

// DeliveryEventKind represents a state transition recorded by the tracker
type DeliveryEventKind string

const (
	DeliveryEventCreated   DeliveryEventKind = "created"
	DeliveryEventSent      DeliveryEventKind = "sent"
	DeliveryEventDelivered DeliveryEventKind = "delivered"
	DeliveryEventFailed    DeliveryEventKind = "failed"
	DeliveryEventRetrying  DeliveryEventKind = "retrying"
	DeliveryEventRead      DeliveryEventKind = "read"
)

// DeliveryEvent is emitted by the tracker on every state transition and
// consumed by the realtime notifier and the analytics aggregator
type DeliveryEvent struct {
	Kind         DeliveryEventKind `json:"kind"`
	Notification *Notification     `json:"notification"`
	Attempt      *DeliveryAttempt  `json:"attempt,omitempty"`
	At           time.Time         `json:"at"`
}

// ClinicEventType represents the type of a domain event arriving from the
// clinic application over the message broker
type ClinicEventType string

const (
	EventSessionCreated     ClinicEventType = "session.created"
	EventSessionRescheduled ClinicEventType = "session.rescheduled"
	EventSessionCancelled   ClinicEventType = "session.cancelled"
	EventAttendanceCheckin  ClinicEventType = "attendance.checkin"
	EventAttendanceLate     ClinicEventType = "attendance.late"
	EventProgressUpdated    ClinicEventType = "progress.updated"
	EventGoalCompleted      ClinicEventType = "goal.completed"
	EventEmergencyTriggered ClinicEventType = "emergency.triggered"
)

// ClinicEvent represents a domain event consumed from RabbitMQ
type ClinicEvent struct {
	Type       ClinicEventType   `json:"type"`
	EntityID   string            `json:"entity_id"`
	OccursAt   *time.Time        `json:"occurs_at,omitempty"`
	Recipients []Recipient       `json:"recipients,omitempty"`
	Params     map[string]string `json:"params,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}
