// Package notifier alerts users about suspicious activity on their account.
package notifier

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/taskdash-api/services/auth-service/internal/model"
)

// HTMLSender is satisfied by *mailer.Mailer.
type HTMLSender interface {
	SendHTML(to []string, subject, htmlBody string) error
}

// MailNotifier e-mails the account owner when a superseded refresh token is replayed.
type MailNotifier struct {
	sender  HTMLSender
	appName string
	logger  *zerolog.Logger
}

func NewMailNotifier(sender HTMLSender, appName string, logger *zerolog.Logger) *MailNotifier {
	return &MailNotifier{
		sender:  sender,
		appName: appName,
		logger:  logger,
	}
}

var reuseTemplate = template.Must(template.New("reuse").Parse(`<p>Hi {{.Name}},</p>
<p>A sign-in token for your {{.App}} account that had already been replaced was used again at {{.At}}.</p>
<p>If this was not you, sign in again and change your password.</p>`))

func (n *MailNotifier) RefreshTokenReused(_ context.Context, user *model.User) error {
	var body bytes.Buffer
	err := reuseTemplate.Execute(&body, struct {
		Name string
		App  string
		At   string
	}{
		Name: user.Name,
		App:  n.appName,
		At:   time.Now().UTC().Format(time.RFC1123),
	})
	if err != nil {
		return fmt.Errorf("failed to render reuse alert: %w", err)
	}

	if err := n.sender.SendHTML([]string{user.Email}, "Unusual sign-in activity", body.String()); err != nil {
		return fmt.Errorf("failed to send reuse alert: %w", err)
	}

	n.logger.Info().Str("user_id", user.ID.Hex()).Msg("sent refresh token reuse alert")

	return nil
}

// LogNotifier only records the event. It is used when no SMTP server is configured.
type LogNotifier struct {
	logger *zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) RefreshTokenReused(_ context.Context, user *model.User) error {
	n.logger.Info().Str("user_id", user.ID.Hex()).Msg("refresh token reuse alert not sent: mailer disabled")
	return nil
}
