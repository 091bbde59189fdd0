package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/logger"
	"github.com/spaceuser/iam-service/internal/infra/security"
)

const (
	// DefaultRole is assigned to every newly registered account.
	DefaultRole = "Basic"

	maxNameLength = 24
)

// RegistrationService handles new account onboarding and email confirmation.
type RegistrationService struct {
	store            *IdentityStore
	tokens           *security.PurposeTokenService
	policy           *security.PasswordPolicy
	mailer           port.Mailer
	images           port.ImageStore
	logger           *zap.Logger
	baseURL          string
	defaultImagePath string
}

// NewRegistrationService constructs a registration service.
func NewRegistrationService(
	store *IdentityStore,
	tokens *security.PurposeTokenService,
	policy *security.PasswordPolicy,
	mailer port.Mailer,
	images port.ImageStore,
	log *zap.Logger,
	baseURL string,
	defaultImagePath string,
) *RegistrationService {
	if policy == nil {
		policy = security.NewPasswordPolicy()
	}
	return &RegistrationService{
		store:            store,
		tokens:           tokens,
		policy:           policy,
		mailer:           mailer,
		images:           images,
		logger:           log,
		baseURL:          strings.TrimRight(baseURL, "/"),
		defaultImagePath: defaultImagePath,
	}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Name             string
	Surname1         string
	Surname2         string
	Email            string
	Password         string
	PhoneNumber      string
	BirthDate        time.Time
	Image            []byte
	ImageName        string
	ImageContentType string
}

// Register creates a pending account: the password is checked against
// policy, the profile image (if any) is stored before the account row is
// written, the Basic role is assigned, and a confirmation email with an
// embedded single-use link is dispatched. A mail failure after the account
// exists is logged and does not undo the registration.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (domain.User, error) {
	if err := validateRegisterInput(input); err != nil {
		return domain.User{}, err
	}

	email := strings.TrimSpace(input.Email)

	if err := s.policy.Validate(input.Password, domain.PasswordContext{
		Username: email,
		Email:    email,
	}); err != nil {
		return domain.User{}, fmt.Errorf("%w: %v", ErrPasswordPolicyViolation, err)
	}

	profileImagePath := s.defaultImagePath
	if len(input.Image) > 0 {
		path, err := s.images.SaveProfileImage(ctx, email, input.ImageName, input.ImageContentType, input.Image)
		if err != nil {
			return domain.User{}, fmt.Errorf("store profile image: %w", err)
		}
		profileImagePath = path
	}

	user := domain.User{
		Name:             strings.TrimSpace(input.Name),
		Surname1:         strings.TrimSpace(input.Surname1),
		Surname2:         strings.TrimSpace(input.Surname2),
		Email:            email,
		UserName:         email,
		BirthDate:        input.BirthDate,
		ProfileImagePath: profileImagePath,
		EmailConfirmed:   false,
	}
	if phone := strings.TrimSpace(input.PhoneNumber); phone != "" {
		user.PhoneNumber = &phone
	}

	created, err := s.store.CreateUser(ctx, user, input.Password)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.store.AddToRole(ctx, created.ID, DefaultRole); err != nil {
		return domain.User{}, err
	}

	if err := s.sendConfirmation(ctx, created); err != nil {
		s.logger.Warn("confirmation mail not delivered; account remains pending",
			zap.String("user_id", created.ID),
			zap.String("email", logger.MaskEmail(created.Email)),
			zap.Error(err),
		)
	}

	return created, nil
}

// ConfirmEmail redeems a confirmation token. Redemption rotates the security
// stamp, so a second presentation of the same token fails.
func (s *RegistrationService) ConfirmEmail(ctx context.Context, userID, token string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(token) == "" {
		return security.ErrInvalidOrExpiredToken
	}

	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if err := s.tokens.ValidateConfirmToken(token, user.ID, user.SecurityStamp); err != nil {
		return err
	}

	newStamp, err := security.NewSecurityStamp()
	if err != nil {
		return err
	}

	user.EmailConfirmed = true
	user.SecurityStamp = newStamp

	if _, err := s.store.SaveUser(ctx, *user); err != nil {
		return err
	}

	return nil
}

// ResendConfirmation re-issues the confirmation mail for a pending account.
// Unknown and already-confirmed addresses are ignored so the endpoint cannot
// be used to probe which accounts exist.
func (s *RegistrationService) ResendConfirmation(ctx context.Context, email string) error {
	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Debug("resend confirmation for unknown email",
				zap.String("email", logger.MaskEmail(email)),
			)
			return nil
		}
		return err
	}

	if user.EmailConfirmed {
		return nil
	}

	return s.sendConfirmation(ctx, *user)
}

func (s *RegistrationService) sendConfirmation(ctx context.Context, user domain.User) error {
	token, err := s.tokens.GenerateConfirmToken(user.ID, user.SecurityStamp)
	if err != nil {
		return fmt.Errorf("generate confirmation token: %w", err)
	}

	confirmURL := fmt.Sprintf("%s/ConfirmEmail?userId=%s&token=%s",
		s.baseURL,
		url.QueryEscape(user.ID),
		url.QueryEscape(token),
	)

	if err := s.mailer.SendAccountConfirmation(ctx, user.Email, user.Name, confirmURL); err != nil {
		return fmt.Errorf("send confirmation mail: %w", err)
	}

	return nil
}

func validateRegisterInput(input RegisterInput) error {
	name := strings.TrimSpace(input.Name)
	surname1 := strings.TrimSpace(input.Surname1)
	email := strings.TrimSpace(input.Email)

	switch {
	case name == "":
		return fmt.Errorf("%w: name is required", ErrValidation)
	case surname1 == "":
		return fmt.Errorf("%w: surname1 is required", ErrValidation)
	case email == "" || !strings.Contains(email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	case strings.TrimSpace(input.Password) == "":
		return fmt.Errorf("%w: password is required", ErrValidation)
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
