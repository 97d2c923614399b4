package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReminderKind identifies which of the fixed reminder offsets a job fires
type ReminderKind string

const (
	ReminderDayBefore  ReminderKind = "day_before"
	ReminderHourBefore ReminderKind = "hour_before"
	ReminderNow        ReminderKind = "now"
)

// ReminderKinds lists the kinds created for every scheduled entity, in
// firing order
func ReminderKinds() []ReminderKind {
	return []ReminderKind{ReminderDayBefore, ReminderHourBefore, ReminderNow}
}

// Offset returns the duration before the entity baseline at which the kind fires
func (k ReminderKind) Offset() time.Duration {
	switch k {
	case ReminderDayBefore:
		return 24 * time.Hour
	case ReminderHourBefore:
		return time.Hour
	default:
		return 0
	}
}

// IsValid reports whether the kind is a known value
func (k ReminderKind) IsValid() bool {
	switch k {
	case ReminderDayBefore, ReminderHourBefore, ReminderNow:
		return true
	}
	return false
}

// ReminderJob is a scheduled, entity-anchored trigger that produces
// notifications when its time arrives. For a given entity at most one
// un-sent job exists per kind.
type ReminderJob struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RelatedEntityType string             `json:"related_entity_type" bson:"related_entity_type"`
	RelatedEntityID   string             `json:"related_entity_id" bson:"related_entity_id"`
	Kind              ReminderKind       `json:"reminder_kind" bson:"reminder_kind"`
	TriggerAt         time.Time          `json:"trigger_at" bson:"trigger_at"`
	Baseline          time.Time          `json:"baseline" bson:"baseline"`
	Recipients        []Recipient        `json:"recipients" bson:"recipients"`
	Params            map[string]string  `json:"params,omitempty" bson:"params,omitempty"`
	SentAt            *time.Time         `json:"sent_at,omitempty" bson:"sent_at,omitempty"`
	Cancelled         bool               `json:"cancelled" bson:"cancelled"`
	ClaimedAt         *time.Time         `json:"claimed_at,omitempty" bson:"claimed_at,omitempty"`
	ClaimedBy         string             `json:"claimed_by,omitempty" bson:"claimed_by,omitempty"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}
