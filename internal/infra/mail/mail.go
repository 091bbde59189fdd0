// Package mail sends transactional account mail through an HTTP JSON mail
// API (Mailtrap-compatible).
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/config"
	"github.com/spaceuser/iam-service/internal/infra/logger"
)

// Service implements port.Mailer against the configured mail API.
type Service struct {
	cfg    config.MailSettings
	client *http.Client
	logger *zap.Logger
}

// NewService constructs a mail service using the provided settings.
func NewService(cfg config.MailSettings, log *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: log,
	}
}

type recipient struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendRequest struct {
	From     recipient   `json:"from"`
	To       []recipient `json:"to"`
	Subject  string      `json:"subject"`
	HTML     string      `json:"html,omitempty"`
	Text     string      `json:"text,omitempty"`
	Category string      `json:"category,omitempty"`
}

// SendAccountConfirmation mails the confirmation link for a newly registered
// account.
func (s *Service) SendAccountConfirmation(ctx context.Context, email, name, confirmURL string) error {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Confirm your account</h2>
    <p>Hello %s,</p>
    <p>Thanks for registering. Confirm your email address to activate your account:</p>
    <p style="margin: 30px 0;">
      <a href="%s" style="background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">Confirm Email</a>
    </p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #007bff;">%s</p>
    <p>If you did not create this account, you can ignore this email.</p>
  </div>
</body>
</html>`, name, confirmURL, confirmURL)

	text := fmt.Sprintf("Hello %s,\n\nConfirm your email address to activate your account:\n\n%s\n\nIf you did not create this account, you can ignore this email.\n", name, confirmURL)

	return s.send(ctx, sendRequest{
		From:     recipient{Email: s.cfg.FromAddress, Name: s.cfg.FromName},
		To:       []recipient{{Email: email, Name: name}},
		Subject:  "Confirm your account",
		HTML:     html,
		Text:     text,
		Category: "account_confirmation",
	})
}

// SendPasswordReset mails the password reset link.
func (s *Service) SendPasswordReset(ctx context.Context, email, name, resetURL string) error {
	html := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Password reset request</h2>
    <p>Hello %s,</p>
    <p>We received a request to reset your password. Click the button below to choose a new one:</p>
    <p style="margin: 30px 0;">
      <a href="%s" style="background-color: #007bff; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px; display: inline-block;">Reset Password</a>
    </p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #007bff;">%s</p>
    <p>If you didn't request a password reset, please ignore this email.</p>
  </div>
</body>
</html>`, name, resetURL, resetURL)

	text := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your password. Open the link below to choose a new one:\n\n%s\n\nIf you didn't request a password reset, please ignore this email.\n", name, resetURL)

	return s.send(ctx, sendRequest{
		From:     recipient{Email: s.cfg.FromAddress, Name: s.cfg.FromName},
		To:       []recipient{{Email: email, Name: name}},
		Subject:  "Password reset request",
		HTML:     html,
		Text:     text,
		Category: "password_reset",
	})
}

func (s *Service) send(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal mail request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create mail request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("mail API returned status %d", resp.StatusCode)
	}

	if len(payload.To) > 0 {
		s.logger.Debug("mail dispatched",
			zap.String("category", payload.Category),
			zap.String("to", logger.MaskEmail(payload.To[0].Email)),
		)
	}

	return nil
}

var _ port.Mailer = (*Service)(nil)
