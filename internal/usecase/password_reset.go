package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/logger"
	"github.com/spaceuser/iam-service/internal/infra/security"
)

// PasswordRecoveryService drives the forgot-password / reset-password flow.
type PasswordRecoveryService struct {
	store   *IdentityStore
	tokens  *security.PurposeTokenService
	policy  *security.PasswordPolicy
	mailer  port.Mailer
	logger  *zap.Logger
	baseURL string
}

// NewPasswordRecoveryService constructs the password recovery workflow.
func NewPasswordRecoveryService(
	store *IdentityStore,
	tokens *security.PurposeTokenService,
	policy *security.PasswordPolicy,
	mailer port.Mailer,
	log *zap.Logger,
	baseURL string,
) *PasswordRecoveryService {
	if policy == nil {
		policy = security.NewPasswordPolicy()
	}
	return &PasswordRecoveryService{
		store:   store,
		tokens:  tokens,
		policy:  policy,
		mailer:  mailer,
		logger:  log,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// RequestReset issues a reset token and mails the reset link. The outcome is
// identical whether or not an account exists for the email, so the endpoint
// cannot be used to enumerate accounts; unknown addresses are only logged.
func (s *PasswordRecoveryService) RequestReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrValidation)
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("password reset requested for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return err
	}

	token, err := s.tokens.GenerateResetToken(user.ID, user.SecurityStamp)
	if err != nil {
		return fmt.Errorf("generate reset token: %w", err)
	}

	resetURL := fmt.Sprintf("%s/ResetPassword?email=%s&token=%s",
		s.baseURL,
		url.QueryEscape(user.Email),
		url.QueryEscape(token),
	)

	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetURL); err != nil {
		s.logger.Warn("password reset mail not delivered",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	return nil
}

// PerformReset redeems a reset token and installs the new password.
// Redemption rotates the security stamp, so the token cannot be presented a
// second time. Unknown emails fail exactly like invalid tokens.
func (s *PasswordRecoveryService) PerformReset(ctx context.Context, email, token, newPassword string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return security.ErrInvalidOrExpiredToken
		}
		return err
	}

	if err := s.tokens.ValidateResetToken(token, user.ID, user.SecurityStamp); err != nil {
		return err
	}

	if err := s.policy.Validate(newPassword, domain.PasswordContext{
		Username: user.UserName,
		Email:    user.Email,
		Phone:    user.PhoneNumber,
	}); err != nil {
		return fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	stamp, err := security.NewSecurityStamp()
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.SecurityStamp = stamp

	if _, err := s.store.SaveUser(ctx, *user); err != nil {
		return err
	}

	s.logger.Info("password reset completed", zap.String("user_id", user.ID))

	return nil
}
