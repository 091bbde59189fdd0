package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/security"
)

// AccountService applies profile mutations and deletions for authenticated
// users.
type AccountService struct {
	store  *IdentityStore
	images port.ImageStore
	policy *security.PasswordPolicy
	logger *zap.Logger
}

// NewAccountService constructs the account mutation workflow.
func NewAccountService(store *IdentityStore, images port.ImageStore, policy *security.PasswordPolicy, log *zap.Logger) *AccountService {
	if policy == nil {
		policy = security.NewPasswordPolicy()
	}
	return &AccountService{
		store:  store,
		images: images,
		policy: policy,
		logger: log,
	}
}

// UpdateAccountInput carries the profile fields to persist. A non-empty
// NewPassword replaces the credential.
type UpdateAccountInput struct {
	UserID           string
	Name             string
	Surname1         string
	Surname2         string
	Email            string
	PhoneNumber      string
	BirthDate        time.Time
	NewPassword      string
	Image            []byte
	ImageName        string
	ImageContentType string
}

// MutationResult reports the outcome of an account mutation. When
// SessionTerminated is set the boundary must discard the caller's session
// token.
type MutationResult struct {
	User              domain.User
	SessionTerminated bool
}

// Update loads the account, applies the supplied fields, optionally replaces
// the profile image and password, and persists under optimistic concurrency.
// Changing the password rotates the security stamp, invalidating every
// outstanding confirmation and reset token. Every successful update
// terminates the current session.
func (s *AccountService) Update(ctx context.Context, input UpdateAccountInput) (*MutationResult, error) {
	if err := validateUpdateInput(input); err != nil {
		return nil, err
	}

	user, err := s.store.FindByID(ctx, input.UserID)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(input.Email)

	user.Name = strings.TrimSpace(input.Name)
	user.Surname1 = strings.TrimSpace(input.Surname1)
	user.Surname2 = strings.TrimSpace(input.Surname2)
	user.Email = email
	user.UserName = email
	user.BirthDate = input.BirthDate

	if phone := strings.TrimSpace(input.PhoneNumber); phone != "" {
		user.PhoneNumber = &phone
	} else {
		user.PhoneNumber = nil
	}

	if len(input.Image) > 0 {
		path, err := s.images.SaveProfileImage(ctx, email, input.ImageName, input.ImageContentType, input.Image)
		if err != nil {
			return nil, fmt.Errorf("store profile image: %w", err)
		}
		user.ProfileImagePath = path
	}

	if input.NewPassword != "" {
		if err := s.policy.Validate(input.NewPassword, domain.PasswordContext{
			Username: user.UserName,
			Email:    user.Email,
			Phone:    user.PhoneNumber,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
		}

		hash, err := security.HashPassword(input.NewPassword)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}

		stamp, err := security.NewSecurityStamp()
		if err != nil {
			return nil, err
		}

		user.PasswordHash = hash
		user.SecurityStamp = stamp
	}

	updated, err := s.store.SaveUser(ctx, *user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("account updated",
		zap.String("user_id", updated.ID),
		zap.Bool("password_changed", input.NewPassword != ""),
	)

	return &MutationResult{User: *updated, SessionTerminated: true}, nil
}

// Delete removes the account and its stored profile images. Role rows
// referenced by the account survive; only the assignments go.
func (s *AccountService) Delete(ctx context.Context, userID string) (*MutationResult, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.images.RemoveProfileImages(ctx, user.Email); err != nil {
		// Orphaned objects are preferable to a half-deleted account.
		s.logger.Warn("profile images not removed",
			zap.String("user_id", user.ID),
			zap.Error(err),
		)
	}

	if err := s.store.DeleteUser(ctx, user.ID); err != nil {
		return nil, err
	}

	s.logger.Info("account deleted", zap.String("user_id", user.ID))

	return &MutationResult{User: *user, SessionTerminated: true}, nil
}

// ListUsers returns every account, for the admin listing.
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	return s.store.ListUsers(ctx)
}

func validateUpdateInput(input UpdateAccountInput) error {
	name := strings.TrimSpace(input.Name)
	surname1 := strings.TrimSpace(input.Surname1)
	email := strings.TrimSpace(input.Email)

	switch {
	case strings.TrimSpace(input.UserID) == "":
		return fmt.Errorf("%w: user id is required", ErrValidation)
	case name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case surname1 == "":
		return fmt.Errorf("%w: surname1 is required", ErrValidation)
	case email == "" || !strings.Contains(email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	case input.BirthDate.IsZero():
		return fmt.Errorf("%w: birth date is required", ErrValidation)
	}

	for field, value := range map[string]string{
		"name":     name,
		"surname1": surname1,
		"surname2": strings.TrimSpace(input.Surname2),
	} {
		if len([]rune(value)) > maxNameLength {
			return fmt.Errorf("%w: %s must be at most %d characters", ErrValidation, field, maxNameLength)
		}
	}

	return nil
}
