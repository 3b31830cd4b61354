// Package mailer sends account emails through the Resend API.
package mailer

import (
	"fmt"
	"log/slog"

	"github.com/resend/resend-go/v2"
)

// Mailer sends verification and password-reset emails. A nil client
// (no API key configured) makes every send a logged no-op so account
// flows still work in development.
type Mailer struct {
	client *resend.Client
	from   string
}

// New creates a Mailer. An empty apiKey disables sending.
func New(apiKey, from string) *Mailer {
	m := &Mailer{from: from}
	if apiKey != "" {
		m.client = resend.NewClient(apiKey)
	}
	return m
}

// Enabled reports whether emails will actually be sent.
func (m *Mailer) Enabled() bool {
	return m.client != nil
}

// SendVerificationCode emails the account verification code.
func (m *Mailer) SendVerificationCode(to, username, code string) error {
	subject := "Verify your email"
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>Your verification code is:</p>
<p style="font-size:24px;font-family:monospace;letter-spacing:2px"><strong>%s</strong></p>
<p>Enter this code on the verification page to activate uploads on your account.</p>
<p>If you didn't create an account, you can ignore this email.</p>`,
		username, code)

	return m.send(to, subject, html)
}

// SendPasswordReset emails a password reset link containing the token.
func (m *Mailer) SendPasswordReset(to, username, resetURL string) error {
	subject := "Reset your password"
	html := fmt.Sprintf(
		`<p>Hi %s,</p>
<p>A password reset was requested for your account. The link below is valid for one hour and can be used once:</p>
<p><a href="%s">%s</a></p>
<p>If you didn't request this, you can ignore this email and your password stays unchanged.</p>`,
		username, resetURL, resetURL)

	return m.send(to, subject, html)
}

func (m *Mailer) send(to, subject, html string) error {
	if m.client == nil {
		slog.Info("email sending disabled, skipping", "to", to, "subject", subject)
		return nil
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := m.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	slog.Debug("email sent", "to", to, "subject", subject, "id", sent.Id)
	return nil
}
