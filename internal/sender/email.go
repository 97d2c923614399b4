package sender

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"regexp"

	"github.com/google/uuid"
	"github.com/tanmiacare/go-notification-engine/internal/domain"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailConfig holds SMTP configuration for the email channel
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// EmailSender delivers notifications over SMTP
type EmailSender struct {
	config EmailConfig
}

// NewEmailSender creates a new email sender
func NewEmailSender(config EmailConfig) *EmailSender {
	return &EmailSender{config: config}
}

// Channel returns the channel this sender serves
func (s *EmailSender) Channel() domain.Channel {
	return domain.ChannelEmail
}

// Send delivers a bilingual email. A malformed address is permanent;
// SMTP transport failures are transient.
func (s *EmailSender) Send(_ context.Context, recipientAddress string, content Content) (string, error) {
	if !emailRegex.MatchString(recipientAddress) {
		return "", Permanent(fmt.Errorf("invalid email address: %s", recipientAddress))
	}

	subject := content.TitleAr
	if content.TitleEn != "" {
		subject = content.TitleAr + " | " + content.TitleEn
	}
	body := content.BodyAr + "\r\n\r\n" + content.BodyEn

	if err := s.sendSMTP(recipientAddress, subject, body); err != nil {
		return "", Transient(err)
	}

	return "smtp-" + uuid.New().String(), nil
}

// sendSMTP sends an email via SMTP, using implicit TLS on port 465
func (s *EmailSender) sendSMTP(to, subject, body string) error {
	from := s.config.FromEmail
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromEmail)
	}

	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s",
		from, to, subject, body)

	auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)

	if s.config.SMTPPort == 465 {
		tlsConfig := &tls.Config{ServerName: s.config.SMTPHost}

		conn, err := tls.Dial("tcp", addr, tlsConfig)
		if err != nil {
			return fmt.Errorf("failed to connect to SMTP server: %w", err)
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.config.SMTPHost)
		if err != nil {
			return fmt.Errorf("failed to create SMTP client: %w", err)
		}
		defer client.Quit()

		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
		if err = client.Mail(s.config.FromEmail); err != nil {
			return fmt.Errorf("failed to set sender: %w", err)
		}
		if err = client.Rcpt(to); err != nil {
			return fmt.Errorf("failed to set recipient: %w", err)
		}

		w, err := client.Data()
		if err != nil {
			return fmt.Errorf("failed to get data writer: %w", err)
		}
		if _, err = w.Write([]byte(message)); err != nil {
			return fmt.Errorf("failed to write message: %w", err)
		}
		return w.Close()
	}

	return smtp.SendMail(addr, auth, s.config.FromEmail, []string{to}, []byte(message))
}
