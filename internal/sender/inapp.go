package sender

import (
	"context"

	"github.com/google/uuid"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// InAppSender serves the in_app channel. The notification document itself is
// the delivery; the send is a store-side no-op that always succeeds.
type InAppSender struct{}

// NewInAppSender creates an in_app sender
func NewInAppSender() *InAppSender {
	return &InAppSender{}
}

// Channel returns the channel this sender serves
func (s *InAppSender) Channel() domain.Channel {
	return domain.ChannelInApp
}

// Send completes immediately with a locally generated reference
func (s *InAppSender) Send(_ context.Context, _ string, _ Content) (string, error) {
	return "inapp-" + uuid.New().String(), nil
}
