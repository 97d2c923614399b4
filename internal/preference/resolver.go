package preference

import (
	"context"
	"fmt"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// ResolutionError reports malformed stored preference data, such as an
// unknown timezone. The resolver still returns a usable channel set computed
// from defaults; callers log the error and continue.
type ResolutionError struct {
	UserID string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("preference resolution for user %s: %s", e.UserID, e.Reason)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Store loads stored preferences. Absence of a document is not an error;
// implementations return the default preference instead.
type Store interface {
	GetByUser(ctx context.Context, userID string, t domain.NotificationType) (*domain.UserPreference, error)
}

// Resolver computes the effective channel set for a delivery
type Resolver struct {
	store Store
}

// NewResolver creates a preference resolver
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the channels a notification may actually use at the given
// instant. Rules, in order: a disabled type suppresses everything unless the
// priority is urgent, which still forces in_app; quiet hours reduce
// non-urgent deliveries to in_app only; otherwise the stored channel set is
// intersected with the requested one.
func (r *Resolver) Resolve(ctx context.Context, userID string, t domain.NotificationType, priority domain.Priority, requested []domain.Channel, at time.Time) ([]domain.Channel, error) {
	pref, err := r.store.GetByUser(ctx, userID, t)
	if err != nil {
		return nil, err
	}
	if pref == nil {
		pref = domain.DefaultPreference(userID, t)
	}

	if !pref.Enabled {
		if priority == domain.PriorityUrgent {
			return []domain.Channel{domain.ChannelInApp}, nil
		}
		return nil, nil
	}

	enabled := pref.Channels
	if len(enabled) == 0 {
		enabled = domain.SupportedChannels()
	}

	effective := intersect(enabled, requested)

	if priority != domain.PriorityUrgent && pref.HasQuietHours() {
		quiet, qerr := inQuietHours(pref, at)
		if qerr != nil {
			// Malformed window or timezone: skip suppression, surface the
			// data problem to the caller alongside the default resolution.
			return effective, &ResolutionError{
				UserID: userID,
				Reason: "malformed quiet-hours data",
				Err:    qerr,
			}
		}
		if quiet {
			// Silent delivery: the record lands in the inbox, nothing buzzes.
			return []domain.Channel{domain.ChannelInApp}, nil
		}
	}

	return effective, nil
}

// intersect keeps the requested channels that are also enabled, preserving
// the requested order. An empty request means "whatever is enabled".
func intersect(enabled, requested []domain.Channel) []domain.Channel {
	if len(requested) == 0 {
		return enabled
	}
	set := make(map[domain.Channel]bool, len(enabled))
	for _, ch := range enabled {
		set[ch] = true
	}
	var out []domain.Channel
	for _, ch := range requested {
		if set[ch] {
			out = append(out, ch)
		}
	}
	return out
}

// inQuietHours evaluates the window in the user's stored timezone. A window
// whose start is after its end wraps midnight (22:00-07:00).
func inQuietHours(pref *domain.UserPreference, at time.Time) (bool, error) {
	loc, err := time.LoadLocation(pref.Timezone)
	if err != nil {
		return false, fmt.Errorf("timezone %q: %w", pref.Timezone, err)
	}

	start, err := parseClock(pref.QuietHoursStart)
	if err != nil {
		return false, err
	}
	end, err := parseClock(pref.QuietHoursEnd)
	if err != nil {
		return false, err
	}

	local := at.In(loc)
	minutes := local.Hour()*60 + local.Minute()

	if start <= end {
		return minutes >= start && minutes < end, nil
	}
	// Window wraps midnight
	return minutes >= start || minutes < end, nil
}

// parseClock parses "HH:MM" into minutes since midnight
func parseClock(s string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("clock %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock %q: out of range", s)
	}
	return h*60 + m, nil
}
