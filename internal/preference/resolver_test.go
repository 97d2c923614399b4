package preference

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// fakeStore returns a fixed preference, or the default when nil
type fakeStore struct {
	pref *domain.UserPreference
}

func (f *fakeStore) GetByUser(_ context.Context, userID string, t domain.NotificationType) (*domain.UserPreference, error) {
	if f.pref == nil {
		return domain.DefaultPreference(userID, t), nil
	}
	return f.pref, nil
}

var allChannels = domain.SupportedChannels()

func TestResolveNoStoredPreference(t *testing.T) {
	r := NewResolver(&fakeStore{})

	got, err := r.Resolve(context.Background(), "u1", domain.NotificationTypeProgressUpdate,
		domain.PriorityMedium, []domain.Channel{domain.ChannelInApp, domain.ChannelSMS}, time.Now())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("channels = %v, want requested set unchanged", got)
	}
}

func TestResolveDisabledType(t *testing.T) {
	pref := domain.DefaultPreference("u1", domain.NotificationTypeProgressUpdate)
	pref.Enabled = false
	r := NewResolver(&fakeStore{pref: pref})

	tests := []struct {
		name     string
		priority domain.Priority
		want     []domain.Channel
	}{
		{name: "non-urgent yields nothing", priority: domain.PriorityHigh, want: nil},
		{name: "urgent forces in_app", priority: domain.PriorityUrgent, want: []domain.Channel{domain.ChannelInApp}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), "u1", domain.NotificationTypeProgressUpdate,
				tt.priority, allChannels, time.Now())
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("channels = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResolveQuietHours(t *testing.T) {
	pref := domain.DefaultPreference("u1", domain.NotificationTypeSessionReminder)
	pref.QuietHoursStart = "22:00"
	pref.QuietHoursEnd = "07:00"
	pref.Timezone = "Asia/Riyadh" // UTC+3, no DST

	r := NewResolver(&fakeStore{pref: pref})

	// 23:00 local = 20:00 UTC
	insideWindow := time.Date(2024, 2, 14, 20, 0, 0, 0, time.UTC)
	// 12:00 local = 09:00 UTC
	outsideWindow := time.Date(2024, 2, 14, 9, 0, 0, 0, time.UTC)
	// 02:30 local, past midnight, still inside the wrapped window
	wrappedWindow := time.Date(2024, 2, 14, 23, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		priority domain.Priority
		at       time.Time
		want     []domain.Channel
	}{
		{
			name:     "medium inside window is silenced to in_app",
			priority: domain.PriorityMedium,
			at:       insideWindow,
			want:     []domain.Channel{domain.ChannelInApp},
		},
		{
			name:     "high inside window is silenced too",
			priority: domain.PriorityHigh,
			at:       insideWindow,
			want:     []domain.Channel{domain.ChannelInApp},
		},
		{
			name:     "urgent bypasses quiet hours",
			priority: domain.PriorityUrgent,
			at:       insideWindow,
			want:     allChannels,
		},
		{
			name:     "outside window nothing is suppressed",
			priority: domain.PriorityMedium,
			at:       outsideWindow,
			want:     allChannels,
		},
		{
			name:     "window wraps midnight",
			priority: domain.PriorityMedium,
			at:       wrappedWindow,
			want:     []domain.Channel{domain.ChannelInApp},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(context.Background(), "u1", domain.NotificationTypeSessionReminder,
				tt.priority, allChannels, tt.at)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("channels = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("channels = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResolveMalformedTimezone(t *testing.T) {
	pref := domain.DefaultPreference("u1", domain.NotificationTypeSessionReminder)
	pref.QuietHoursStart = "22:00"
	pref.QuietHoursEnd = "07:00"
	pref.Timezone = "Mars/Olympus"

	r := NewResolver(&fakeStore{pref: pref})

	got, err := r.Resolve(context.Background(), "u1", domain.NotificationTypeSessionReminder,
		domain.PriorityMedium, allChannels, time.Now())

	var re *ResolutionError
	if !errors.As(err, &re) {
		t.Fatalf("Resolve() error = %v, want ResolutionError", err)
	}
	// Defaults still usable despite the bad data
	if len(got) != len(allChannels) {
		t.Errorf("channels = %v, want full default set", got)
	}
}

func TestResolveIntersectsRequestedChannels(t *testing.T) {
	pref := domain.DefaultPreference("u1", domain.NotificationTypeGoalCompleted)
	pref.Channels = []domain.Channel{domain.ChannelInApp, domain.ChannelEmail}

	r := NewResolver(&fakeStore{pref: pref})

	got, err := r.Resolve(context.Background(), "u1", domain.NotificationTypeGoalCompleted,
		domain.PriorityMedium, []domain.Channel{domain.ChannelEmail, domain.ChannelSMS}, time.Now())
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if len(got) != 1 || got[0] != domain.ChannelEmail {
		t.Errorf("channels = %v, want [email]", got)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "22:00", want: 1320},
		{in: "07:30", want: 450},
		{in: "00:00", want: 0},
		{in: "24:00", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseClock(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}
