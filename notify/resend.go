// Package notify delivers operator alerts by email.
package notify

import (
	"context"
	"fmt"
	"html"

	resend "github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// ResendAlerter emails alerts to the configured operators.
type ResendAlerter struct {
	client *resend.Client
	from   string
	to     []string
	log    *zap.Logger
}

func NewResendAlerter(apiKey, from string, to []string, log *zap.Logger) *ResendAlerter {
	return &ResendAlerter{
		client: resend.NewClient(apiKey),
		from:   from,
		to:     to,
		log:    log,
	}
}

func (a *ResendAlerter) Alert(ctx context.Context, subject, body string) error {
	params := &resend.SendEmailRequest{
		From:    a.from,
		To:      a.to,
		Subject: "[Kirda] " + subject,
		Html:    fmt.Sprintf("<p>%s</p>", html.EscapeString(body)),
		Text:    body,
	}
	sent, err := a.client.Emails.Send(params)
	if err != nil {
		a.log.Error("failed to send alert email", zap.String("subject", subject), zap.Error(err))
		return err
	}
	a.log.Info("alert email sent", zap.String("subject", subject), zap.String("email_id", sent.Id))
	return nil
}

// LogAlerter only logs; used when no email provider is configured.
type LogAlerter struct {
	Log *zap.Logger
}

func (a LogAlerter) Alert(_ context.Context, subject, body string) error {
	a.Log.Warn("alert", zap.String("subject", subject), zap.String("body", body))
	return nil
}
