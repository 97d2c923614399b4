package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

// Content is the rendered, bilingual payload handed to a channel sender.
// Senders decide how to combine the language variants for their medium.
type Content struct {
	TitleAr string
	TitleEn string
	BodyAr  string
	BodyEn  string
}

// ChannelSender delivers rendered content to one recipient over one channel.
// Implementations signal retryability through TransientError/PermanentError.
type ChannelSender interface {
	// Channel returns the channel this sender serves
	Channel() domain.Channel
	// Send delivers the content and returns a transport-assigned reference
	Send(ctx context.Context, recipientAddress string, content Content) (externalRef string, err error)
}

// Registry maps channels to their senders
type Registry map[domain.Channel]ChannelSender

// NewRegistry builds a registry from the given senders
func NewRegistry(senders ...ChannelSender) Registry {
	r := make(Registry, len(senders))
	for _, s := range senders {
		r[s.Channel()] = s
	}
	return r
}

// For returns the sender for a channel
func (r Registry) For(ch domain.Channel) (ChannelSender, bool) {
	s, ok := r[ch]
	return s, ok
}

// TransientError indicates a send failure that may succeed on retry
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps an error to mark it retryable
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient checks whether an error is retryable
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// PermanentError indicates a send failure that will never succeed,
// such as an invalid phone number
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error to mark it terminal
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks whether an error is terminal
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ErrNoSender is returned when dispatch resolves a channel with no sender
var ErrNoSender = fmt.Errorf("no sender registered for channel")
