package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/infra/logger"
	"github.com/spaceuser/iam-service/internal/infra/security"
)

// AuthService verifies credentials and issues session tokens.
type AuthService struct {
	store           *IdentityStore
	sessions        *security.SessionTokenService
	maxFailures     int
	lockoutDuration time.Duration
	logger          *zap.Logger
	now             func() time.Time
}

// NewAuthService constructs the authentication workflow.
func NewAuthService(
	store *IdentityStore,
	sessions *security.SessionTokenService,
	maxFailures int,
	lockoutDuration time.Duration,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		store:           store,
		sessions:        sessions,
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
		logger:          log,
		now:             time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	clone := *s
	clone.now = now
	return &clone
}

// LoginResult carries the issued session token and the signed-in account.
type LoginResult struct {
	Token string
	User  domain.User
	Roles []string
}

// Login verifies the credentials and issues a session token. Unknown
// accounts, wrong passwords, unconfirmed emails, and active lockouts all
// fail with ErrInvalidCredentials so the response never reveals which one
// applied. Each wrong password counts toward the lockout threshold; a
// successful sign-in clears the counter.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if err == ErrUserNotFound {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.IsLockedOut(s.now()) {
		s.logger.Info("sign-in rejected for locked-out account",
			zap.String("user_id", user.ID),
		)
		return nil, ErrInvalidCredentials
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		lockedOut, recordErr := s.store.RecordFailedSignIn(ctx, *user, s.maxFailures, s.lockoutDuration)
		if recordErr != nil {
			return nil, recordErr
		}
		if lockedOut {
			s.logger.Info("account locked out after repeated failures",
				zap.String("user_id", user.ID),
				zap.Duration("duration", s.lockoutDuration),
			)
		}
		return nil, ErrInvalidCredentials
	}

	if !user.EmailConfirmed {
		s.logger.Debug("sign-in rejected for unconfirmed account",
			zap.String("email", logger.MaskEmail(user.Email)),
		)
		return nil, ErrInvalidCredentials
	}

	if err := s.store.ResetFailedSignIns(ctx, *user); err != nil {
		return nil, err
	}

	roles, err := s.store.RoleNames(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	token, err := s.sessions.Issue(user.ID, user.UserName, roles)
	if err != nil {
		return nil, err
	}

	return &LoginResult{Token: token, User: *user, Roles: roles}, nil
}
