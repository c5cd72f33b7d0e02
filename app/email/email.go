package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mrz1836/postmark"

	"github.com/briefly-ai/briefly-api/config"
)

var ErrSendFailed = errors.New("failed to send email")

// PostmarkMailer sends transactional mail through Postmark.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
	logger *slog.Logger
}

// NewPostmarkMailer builds a mailer from configuration. Returns nil when no
// server token is configured so callers can treat mail as optional.
func NewPostmarkMailer(cfg config.EmailConfig, logger *slog.Logger) *PostmarkMailer {
	if cfg.PostmarkServerToken == "" {
		logger.Warn("Postmark server token not set, email delivery disabled")
		return nil
	}
	return &PostmarkMailer{
		client: postmark.NewClient(cfg.PostmarkServerToken, ""),
		from:   cfg.FromAddress,
		logger: logger,
	}
}

// SendWelcome greets a new account and tells it how long the trial runs.
func (m *PostmarkMailer) SendWelcome(ctx context.Context, to, username string, trialDays int) error {
	body := fmt.Sprintf(
		"Hi %s,\n\nWelcome to Briefly! Your trial is active for the next %d days.\n"+
			"Summarize pages, caption images and chat right away from your dashboard.\n\n"+
			"The Briefly team",
		username, trialDays)

	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:     m.from,
		To:       to,
		Subject:  "Welcome to Briefly",
		Tag:      "welcome",
		TextBody: body,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}

	m.logger.InfoContext(ctx, "Welcome email sent", slog.String("to", to))
	return nil
}
