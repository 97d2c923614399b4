package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// GatewayConfig holds configuration for an HTTP messaging gateway
type GatewayConfig struct {
	URL      string
	APIKey   string
	SenderID string
	Timeout  time.Duration
}

// gatewayResponse is the reference envelope returned by the messaging gateway
type gatewayResponse struct {
	MessageID string `json:"message_id"`
}

// SMSSender delivers notifications through an HTTP SMS gateway
type SMSSender struct {
	config GatewayConfig
	client *http.Client
}

// NewSMSSender creates a new SMS sender
func NewSMSSender(config GatewayConfig) *SMSSender {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &SMSSender{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Channel returns the channel this sender serves
func (s *SMSSender) Channel() domain.Channel {
	return domain.ChannelSMS
}

// Send posts a single bilingual text to the gateway
func (s *SMSSender) Send(ctx context.Context, recipientAddress string, content Content) (string, error) {
	if !phoneRegex.MatchString(recipientAddress) {
		return "", Permanent(fmt.Errorf("invalid phone number: %s", recipientAddress))
	}

	payload := map[string]string{
		"to":      recipientAddress,
		"from":    s.config.SenderID,
		"message": content.BodyAr + "\n" + content.BodyEn,
	}
	return postGateway(ctx, s.client, s.config, "sms", payload)
}

// WhatsAppSender delivers notifications through the same gateway's
// WhatsApp endpoint
type WhatsAppSender struct {
	config GatewayConfig
	client *http.Client
}

// NewWhatsAppSender creates a new WhatsApp sender
func NewWhatsAppSender(config GatewayConfig) *WhatsAppSender {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &WhatsAppSender{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Channel returns the channel this sender serves
func (s *WhatsAppSender) Channel() domain.Channel {
	return domain.ChannelWhatsApp
}

// Send posts a single bilingual message to the gateway's WhatsApp endpoint
func (s *WhatsAppSender) Send(ctx context.Context, recipientAddress string, content Content) (string, error) {
	if !phoneRegex.MatchString(recipientAddress) {
		return "", Permanent(fmt.Errorf("invalid phone number: %s", recipientAddress))
	}

	payload := map[string]string{
		"to":      recipientAddress,
		"from":    s.config.SenderID,
		"title":   content.TitleAr,
		"message": content.BodyAr + "\n" + content.BodyEn,
	}
	return postGateway(ctx, s.client, s.config, "whatsapp", payload)
}

// PushSender delivers notifications through an HTTP push gateway
type PushSender struct {
	config GatewayConfig
	client *http.Client
}

// NewPushSender creates a new push sender
func NewPushSender(config GatewayConfig) *PushSender {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &PushSender{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Channel returns the channel this sender serves
func (s *PushSender) Channel() domain.Channel {
	return domain.ChannelPush
}

// Send posts a push payload addressed by device-registration user ID
func (s *PushSender) Send(ctx context.Context, recipientAddress string, content Content) (string, error) {
	payload := map[string]string{
		"user_id":  recipientAddress,
		"title_ar": content.TitleAr,
		"title_en": content.TitleEn,
		"body_ar":  content.BodyAr,
		"body_en":  content.BodyEn,
	}
	return postGateway(ctx, s.client, s.config, "push", payload)
}

// postGateway sends the payload and classifies the failure mode: 4xx
// responses are permanent, everything else retryable.
func postGateway(ctx context.Context, client *http.Client, config GatewayConfig, path string, payload map[string]string) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", Permanent(fmt.Errorf("failed to marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.URL+"/"+path, bytes.NewReader(body))
	if err != nil {
		return "", Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+config.APIKey)
	req.Header.Set("User-Agent", "tanmiacare-notification-engine/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return "", Transient(fmt.Errorf("gateway request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var gw gatewayResponse
		data, _ := io.ReadAll(resp.Body)
		if err := json.Unmarshal(data, &gw); err != nil || gw.MessageID == "" {
			// Gateway accepted the message but gave no usable reference
			return fmt.Sprintf("%s-%d", path, time.Now().UnixNano()), nil
		}
		return gw.MessageID, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return "", Permanent(fmt.Errorf("gateway rejected message: status %d", resp.StatusCode))
	default:
		return "", Transient(fmt.Errorf("gateway unavailable: status %d", resp.StatusCode))
	}
}
