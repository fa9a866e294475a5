// Package mail delivers order confirmation emails.
package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const senderName = "MISTIKA"

// Message is a single-recipient email with text and HTML bodies.
type Message struct {
	To       string
	Subject  string
	Text     string
	HTML     string
	Category string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SendGridSender delivers messages through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   string
}

func NewSendGridSender(apiKey, from string) (*SendGridSender, error) {
	if apiKey == "" {
		return nil, errors.New("sendgrid api key is empty")
	}
	if from == "" {
		return nil, errors.New("from address is empty")
	}
	return &SendGridSender{client: sendgrid.NewSendClient(apiKey), from: from}, nil
}

func (s *SendGridSender) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return errors.New("to address is empty")
	}

	message := sgmail.NewSingleEmail(
		sgmail.NewEmail(senderName, s.from),
		msg.Subject,
		sgmail.NewEmail("", msg.To),
		msg.Text,
		msg.HTML,
	)
	if msg.Category != "" {
		message.AddCategories(msg.Category)
	}

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", response.StatusCode, response.Body)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail not sent: no provider configured",
		"to", msg.To,
		"subject", msg.Subject,
		"category", msg.Category,
	)
	return nil
}
