package email

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// LogSender writes the message to the log. Used for ENV=local and when no
// Resend key is configured.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(ctx context.Context, to, subject, body string) error {
	s.logger.InfoContext(ctx, "operator email (not sent)", "to", to, "subject", subject, "body", body)
	return nil
}

type ResendSender struct {
	client *resend.Client
	from   string
}

func (s *ResendSender) Send(ctx context.Context, to, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    s.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// NewSender returns a ResendSender outside local when an API key is set,
// a LogSender otherwise.
func NewSender(env, apiKey, from string, logger *slog.Logger) Sender {
	if env == "local" || apiKey == "" {
		return &LogSender{logger: logger}
	}
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// OrphanAlerter tells an operator that an account exists without a profile
// row. Nothing is repaired automatically.
type OrphanAlerter struct {
	sender Sender
	to     string
	logger *slog.Logger
}

// NewOrphanAlerter returns nil when to is empty, so callers can pass the
// result straight through as an optional reporter.
func NewOrphanAlerter(sender Sender, to string, logger *slog.Logger) *OrphanAlerter {
	if to == "" {
		return nil
	}
	return &OrphanAlerter{sender: sender, to: to, logger: logger.With("component", "orphan_alert")}
}

// ReportOrphan sends the alert. Delivery failures are logged and dropped.
func (a *OrphanAlerter) ReportOrphan(ctx context.Context, userID, email string, cause error) {
	subject := "backup-desk: account created without profile"
	body := fmt.Sprintf(
		"<p>Sign-up created account <code>%s</code> (%s) but inserting its profile row failed.</p>"+
			"<p>Error: <code>%s</code></p>"+
			"<p>Insert the profile manually or remove the account.</p>",
		html.EscapeString(userID), html.EscapeString(email), html.EscapeString(errString(cause)),
	)
	if err := a.sender.Send(ctx, a.to, subject, body); err != nil {
		a.logger.ErrorContext(ctx, "orphan alert not delivered", "user_id", userID, "error", err)
	}
}

func errString(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
