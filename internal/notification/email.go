package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"equiptrack-backend/internal/logger"
)

type Email struct {
	To        []string
	Subject   string
	PlainText string
	HTML      string
}

// EmailSender is any mail backend.
type EmailSender interface {
	Send(ctx context.Context, msg Email) error
}

// SendGridSender delivers mail through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *mail.Email
}

func NewSendGridSender(apiKey, fromEmail, fromName string) *SendGridSender {
	return &SendGridSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromEmail),
	}
}

// Send delivers one personalization per recipient so addresses stay private.
func (s *SendGridSender) Send(ctx context.Context, msg Email) error {
	if len(msg.To) == 0 {
		return nil
	}
	message := mail.NewV3Mail()
	message.SetFrom(s.from)
	message.Subject = msg.Subject
	message.AddContent(mail.NewContent("text/plain", msg.PlainText))
	if msg.HTML != "" {
		message.AddContent(mail.NewContent("text/html", msg.HTML))
	}
	for _, to := range msg.To {
		p := mail.NewPersonalization()
		p.AddTos(mail.NewEmail("", to))
		message.AddPersonalizations(p)
	}

	logger.ExternalServiceCall("sendgrid", "Send", "recipients", len(msg.To), "subject", msg.Subject)
	resp, err := s.client.SendWithContext(ctx, message)
	if err == nil && resp.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", resp.StatusCode, resp.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

// LogSender writes mail to the log instead of sending it. Used when no
// SendGrid key is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Email) error {
	logger.Info("Email (not sent)", "to", strings.Join(msg.To, ","), "subject", msg.Subject)
	return nil
}
