package builder

import (
	"fmt"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// TemplateValidationError reports a missing or unknown piece of a build
// request. It is returned before anything is persisted.
type TemplateValidationError struct {
	Type         domain.NotificationType
	MissingField string
}

func (e *TemplateValidationError) Error() string {
	return fmt.Sprintf("template %q: missing required field %q", e.Type, e.MissingField)
}

// Options tweak a single build without changing the template defaults
type Options struct {
	PriorityOverride domain.Priority
	Channels         []domain.Channel
	ExpiresAt        *time.Time
	ScheduledAt      time.Time
	RelatedType      string
	RelatedID        string
}

// Builder renders notification records from typed templates
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a notification builder
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build renders an unpersisted notification for the given type and
// recipient. Both language variants are always produced; callers pick the
// string to display. Persistence is the caller's responsibility.
func (b *Builder) Build(t domain.NotificationType, params map[string]string, recipient domain.Recipient, opts *Options) (*domain.Notification, error) {
	def, ok := templates[t]
	if !ok {
		return nil, &TemplateValidationError{Type: t, MissingField: "type"}
	}
	if recipient.ID == "" {
		return nil, &TemplateValidationError{Type: t, MissingField: "recipient"}
	}

	for _, field := range def.requiredParams {
		if _, ok := params[field]; !ok {
			return nil, &TemplateValidationError{Type: t, MissingField: field}
		}
	}

	if opts == nil {
		opts = &Options{}
	}

	priority := def.defaultPriority
	if opts.PriorityOverride != "" {
		if !opts.PriorityOverride.IsValid() {
			return nil, &TemplateValidationError{Type: t, MissingField: "priority"}
		}
		priority = opts.PriorityOverride
	}

	channels := def.defaultChannels
	if len(opts.Channels) > 0 {
		channels = opts.Channels
	}

	now := b.now()
	scheduledAt := opts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	if opts.ExpiresAt != nil && opts.ExpiresAt.Before(scheduledAt) {
		return nil, &TemplateValidationError{Type: t, MissingField: "expires_at"}
	}

	return &domain.Notification{
		Type:              t,
		Priority:          priority,
		RecipientID:       recipient.ID,
		RecipientRole:     recipient.Role,
		TitleAr:           applyVariables(def.titleAr, params),
		TitleEn:           applyVariables(def.titleEn, params),
		BodyAr:            applyVariables(def.bodyAr, params),
		BodyEn:            applyVariables(def.bodyEn, params),
		Channels:          channels,
		ScheduledAt:       scheduledAt,
		ExpiresAt:         opts.ExpiresAt,
		RelatedEntityType: opts.RelatedType,
		RelatedEntityID:   opts.RelatedID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// DefaultPriority returns the default priority for a type
func DefaultPriority(t domain.NotificationType) (domain.Priority, bool) {
	def, ok := templates[t]
	if !ok {
		return "", false
	}
	return def.defaultPriority, true
}

// KnownType reports whether a type exists in the registry
func KnownType(t domain.NotificationType) bool {
	_, ok := templates[t]
	return ok
}
