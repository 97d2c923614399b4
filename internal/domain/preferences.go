package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserPreference represents one user's delivery preferences for one
// notification type. Absence of a document means "all channels enabled".
type UserPreference struct {
	ID              primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID          string             `json:"user_id" bson:"user_id"`
	Type            NotificationType   `json:"notification_type" bson:"notification_type"`
	Channels        []Channel          `json:"channels" bson:"channels"`
	Enabled         bool               `json:"enabled" bson:"enabled"`
	QuietHoursStart string             `json:"quiet_hours_start,omitempty" bson:"quiet_hours_start,omitempty"` // "22:00"
	QuietHoursEnd   string             `json:"quiet_hours_end,omitempty" bson:"quiet_hours_end,omitempty"`     // "07:00"
	Timezone        string             `json:"timezone,omitempty" bson:"timezone,omitempty"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

// DefaultPreference returns the preference applied when no document exists:
// every supported channel enabled, no quiet hours
func DefaultPreference(userID string, t NotificationType) *UserPreference {
	return &UserPreference{
		UserID:   userID,
		Type:     t,
		Channels: SupportedChannels(),
		Enabled:  true,
		Timezone: "UTC",
	}
}

// HasQuietHours reports whether a quiet-hours window is configured
func (p *UserPreference) HasQuietHours() bool {
	return p.QuietHoursStart != "" && p.QuietHoursEnd != ""
}
