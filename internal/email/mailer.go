// Package email renders and sends the daily yield digest and welcome
// messages through Resend.
package email

import (
	"context"
	"regexp"

	"github.com/pkg/errors"
	"github.com/resend/resend-go/v2"
)

// ErrEmailDisabled is returned when no Resend API key is configured.
var ErrEmailDisabled = errors.New("RESEND_API_KEY not configured, email sending disabled")

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
	Headers map[string]string
}

// Mailer sends a message and returns the provider's message id.
type Mailer interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type ResendMailer struct {
	client *resend.Client
}

// NewResendMailer returns nil when apiKey is empty.
func NewResendMailer(apiKey string) *ResendMailer {
	if apiKey == "" {
		return nil
	}
	return &ResendMailer{client: resend.NewClient(apiKey)}
}

func (m *ResendMailer) Send(ctx context.Context, msg Message) (string, error) {
	if m == nil || m.client == nil {
		return "", ErrEmailDisabled
	}
	resp, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    msg.From,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Headers: msg.Headers,
	})
	if err != nil {
		return "", errors.Wrap(err, "resend API error")
	}
	return resp.Id, nil
}

// KeyInfo describes the configured API key without revealing it.
type KeyInfo struct {
	Configured bool   `json:"configured"`
	Message    string `json:"message"`
	Length     int    `json:"apiKeyLength,omitempty"`
	Prefix     string `json:"apiKeyPrefix,omitempty"`
}

func DescribeKey(apiKey string) KeyInfo {
	if apiKey == "" {
		return KeyInfo{Message: "RESEND_API_KEY environment variable is not set"}
	}
	prefix := apiKey
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return KeyInfo{
		Configured: true,
		Message:    "Resend API key is configured",
		Length:     len(apiKey),
		Prefix:     prefix + "...",
	}
}
