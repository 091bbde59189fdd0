package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spaceuser/iam-service/internal/infra/security"
)

const (
	strongTestPassword  = "Sup3r!SecurePass#7890"
	testTokenSecret     = "0123456789abcdef0123456789abcdef"
	testBaseURL         = "http://localhost:8080"
	defaultTestImage    = "/imgs/default-profile.jpg"
	testBirthYear       = 1990
	anotherTestPassword = "R3set!Fresh#Value42"
)

func testBirthDate() time.Time {
	return time.Date(testBirthYear, time.June, 15, 0, 0, 0, 0, time.UTC)
}

type registrationFixture struct {
	service *RegistrationService
	users   *stubUserRepository
	roles   *stubRoleRepository
	mailer  *stubMailer
	images  *stubImageStore
	store   *IdentityStore
	tokens  *security.PurposeTokenService
}

func newRegistrationFixture(t *testing.T) *registrationFixture {
	t.Helper()

	users := newStubUserRepository()
	roles := newStubRoleRepository()
	mailer := &stubMailer{}
	images := &stubImageStore{}
	store := NewIdentityStore(users, roles)

	tokens, err := security.NewPurposeTokenService(testTokenSecret, 24*time.Hour, 4*time.Hour)
	if err != nil {
		t.Fatalf("NewPurposeTokenService returned error: %v", err)
	}

	service := NewRegistrationService(store, tokens, security.NewPasswordPolicy(), mailer, images, zap.NewNop(), testBaseURL, defaultTestImage)

	return &registrationFixture{
		service: service,
		users:   users,
		roles:   roles,
		mailer:  mailer,
		images:  images,
		store:   store,
		tokens:  tokens,
	}
}

func aliceInput() RegisterInput {
	return RegisterInput{
		Name:      "Alice",
		Surname1:  "Wonder",
		Email:     "alice@example.com",
		Password:  strongTestPassword,
		BirthDate: testBirthDate(),
	}
}

func TestRegistrationService_Register_Success(t *testing.T) {
	fx := newRegistrationFixture(t)

	user, err := fx.service.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if user.ID == "" {
		t.Fatal("expected generated user id")
	}
	if user.EmailConfirmed {
		t.Fatal("expected account to start unconfirmed")
	}
	if user.UserName != "alice@example.com" {
		t.Fatalf("expected username to mirror email, got %q", user.UserName)
	}
	if user.NormalizedEmail != "ALICE@EXAMPLE.COM" {
		t.Fatalf("expected uppercase-folded email, got %q", user.NormalizedEmail)
	}
	if user.ProfileImagePath != defaultTestImage {
		t.Fatalf("expected default image path, got %q", user.ProfileImagePath)
	}
	if user.SecurityStamp == "" || user.ConcurrencyStamp == "" {
		t.Fatal("expected stamps to be populated")
	}

	if ok, err := security.VerifyPassword(strongTestPassword, user.PasswordHash); err != nil || !ok {
		t.Fatal("expected stored hash to verify against the original password")
	}

	roles, err := fx.store.RoleNames(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("RoleNames returned error: %v", err)
	}
	if len(roles) != 1 || roles[0] != DefaultRole {
		t.Fatalf("expected default role %q, got %v", DefaultRole, roles)
	}

	if fx.mailer.confirmCalls != 1 {
		t.Fatalf("expected one confirmation mail, got %d", fx.mailer.confirmCalls)
	}
	if fx.mailer.lastConfirmEmail != "alice@example.com" {
		t.Fatalf("unexpected confirmation recipient %q", fx.mailer.lastConfirmEmail)
	}

	userID, token, err := fx.mailer.confirmLinkParams()
	if err != nil {
		t.Fatalf("failed to parse confirmation link: %v", err)
	}
	if userID != user.ID {
		t.Fatalf("confirmation link user id mismatch: %q vs %q", userID, user.ID)
	}
	if err := fx.tokens.ValidateConfirmToken(token, user.ID, user.SecurityStamp); err != nil {
		t.Fatalf("confirmation link token does not validate: %v", err)
	}
}

func TestRegistrationService_Register_AcceptsMinimumComplexityPassword(t *testing.T) {
	fx := newRegistrationFixture(t)

	// Shortest shape the policy documents: 8+ chars with one character from
	// each of the upper, lower, digit, and symbol classes.
	input := aliceInput()
	input.Password = "Str0ng!Pass"

	user, err := fx.service.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if ok, err := security.VerifyPassword("Str0ng!Pass", user.PasswordHash); err != nil || !ok {
		t.Fatal("expected stored hash to verify against the original password")
	}
}

func TestRegistrationService_Register_WithProfileImage(t *testing.T) {
	fx := newRegistrationFixture(t)

	input := aliceInput()
	input.Image = []byte("fake image bytes")
	input.ImageName = "avatar.png"
	input.ImageContentType = "image/png"

	user, err := fx.service.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if fx.images.saveCalls != 1 {
		t.Fatalf("expected one image upload, got %d", fx.images.saveCalls)
	}
	if fx.images.lastEmail != "alice@example.com" {
		t.Fatalf("expected image keyed by email, got %q", fx.images.lastEmail)
	}
	if user.ProfileImagePath == defaultTestImage {
		t.Fatal("expected stored image path instead of the default sentinel")
	}
}

func TestRegistrationService_Register_ImageStorageFailureAborts(t *testing.T) {
	fx := newRegistrationFixture(t)
	fx.images.saveErr = errors.New("object store down")

	input := aliceInput()
	input.Image = []byte("fake image bytes")
	input.ImageName = "avatar.png"

	if _, err := fx.service.Register(context.Background(), input); err == nil {
		t.Fatal("expected error when image storage fails")
	}

	if fx.users.createCalls != 0 {
		t.Fatalf("expected no account row after storage failure, got %d creates", fx.users.createCalls)
	}
	if fx.mailer.confirmCalls != 0 {
		t.Fatal("expected no confirmation mail after storage failure")
	}
}

func TestRegistrationService_Register_DuplicateEmail(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.service.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	_, err := fx.service.Register(context.Background(), aliceInput())
	if !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}

	if len(fx.users.users) != 1 {
		t.Fatalf("expected exactly one stored account, got %d", len(fx.users.users))
	}
}

func TestRegistrationService_Register_DuplicateEmailCaseInsensitive(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.service.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("first Register returned error: %v", err)
	}

	input := aliceInput()
	input.Email = "ALICE@Example.COM"

	if _, err := fx.service.Register(context.Background(), input); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount for case-variant email, got %v", err)
	}
}

func TestRegistrationService_Register_PasswordPolicyViolation(t *testing.T) {
	fx := newRegistrationFixture(t)

	input := aliceInput()
	input.Password = "password"

	_, err := fx.service.Register(context.Background(), input)
	if !errors.Is(err, ErrPasswordPolicyViolation) {
		t.Fatalf("expected ErrPasswordPolicyViolation, got %v", err)
	}

	if fx.users.createCalls != 0 {
		t.Fatal("expected no account row for rejected password")
	}
	if fx.images.saveCalls != 0 {
		t.Fatal("expected no image upload for rejected password")
	}
}

func TestRegistrationService_Register_ValidationErrors(t *testing.T) {
	fx := newRegistrationFixture(t)

	longName := "Abcdefghijklmnopqrstuvwxy" // 25 runes

	cases := []struct {
		name   string
		mutate func(*RegisterInput)
	}{
		{"missing name", func(in *RegisterInput) { in.Name = "" }},
		{"missing surname1", func(in *RegisterInput) { in.Surname1 = "" }},
		{"missing email", func(in *RegisterInput) { in.Email = "" }},
		{"malformed email", func(in *RegisterInput) { in.Email = "not-an-email" }},
		{"missing password", func(in *RegisterInput) { in.Password = "" }},
		{"missing birth date", func(in *RegisterInput) { in.BirthDate = time.Time{} }},
		{"name too long", func(in *RegisterInput) { in.Name = longName }},
		{"surname2 too long", func(in *RegisterInput) { in.Surname2 = longName }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := aliceInput()
			tc.mutate(&input)

			if _, err := fx.service.Register(context.Background(), input); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if fx.users.createCalls != 0 {
		t.Fatal("expected no account rows for invalid inputs")
	}
}

func TestRegistrationService_Register_MailFailureIsDegradedSuccess(t *testing.T) {
	fx := newRegistrationFixture(t)
	fx.mailer.confirmErr = errors.New("mail API down")

	user, err := fx.service.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("expected registration to succeed despite mail failure, got %v", err)
	}

	if _, err := fx.store.FindByID(context.Background(), user.ID); err != nil {
		t.Fatalf("expected account to persist despite mail failure: %v", err)
	}

	// The account stays unconfirmed and recoverable via resend.
	fx.mailer.confirmErr = nil
	if err := fx.service.ResendConfirmation(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("ResendConfirmation returned error: %v", err)
	}
	if fx.mailer.confirmCalls != 2 {
		t.Fatalf("expected resend to dispatch mail, got %d calls", fx.mailer.confirmCalls)
	}
}

func TestRegistrationService_ConfirmEmail_Success(t *testing.T) {
	fx := newRegistrationFixture(t)

	user, err := fx.service.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	userID, token, err := fx.mailer.confirmLinkParams()
	if err != nil {
		t.Fatalf("failed to parse confirmation link: %v", err)
	}

	if err := fx.service.ConfirmEmail(context.Background(), userID, token); err != nil {
		t.Fatalf("ConfirmEmail returned error: %v", err)
	}

	stored, err := fx.store.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("FindByID returned error: %v", err)
	}
	if !stored.EmailConfirmed {
		t.Fatal("expected account to be confirmed")
	}
	if stored.SecurityStamp == user.SecurityStamp {
		t.Fatal("expected security stamp rotation on confirmation")
	}
}

func TestRegistrationService_ConfirmEmail_TokenSingleUse(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.service.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	userID, token, err := fx.mailer.confirmLinkParams()
	if err != nil {
		t.Fatalf("failed to parse confirmation link: %v", err)
	}

	if err := fx.service.ConfirmEmail(context.Background(), userID, token); err != nil {
		t.Fatalf("first redemption returned error: %v", err)
	}

	err = fx.service.ConfirmEmail(context.Background(), userID, token)
	if !errors.Is(err, security.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected second redemption to fail with ErrInvalidOrExpiredToken, got %v", err)
	}
}

func TestRegistrationService_ConfirmEmail_UnknownUser(t *testing.T) {
	fx := newRegistrationFixture(t)

	err := fx.service.ConfirmEmail(context.Background(), "no-such-user", "whatever-token")
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRegistrationService_ConfirmEmail_ForeignToken(t *testing.T) {
	fx := newRegistrationFixture(t)

	alice, err := fx.service.Register(context.Background(), aliceInput())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	bobInput := aliceInput()
	bobInput.Name = "Bob"
	bobInput.Email = "bob@example.com"
	if _, err := fx.service.Register(context.Background(), bobInput); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	_, bobToken, err := fx.mailer.confirmLinkParams()
	if err != nil {
		t.Fatalf("failed to parse confirmation link: %v", err)
	}

	err = fx.service.ConfirmEmail(context.Background(), alice.ID, bobToken)
	if !errors.Is(err, security.ErrInvalidOrExpiredToken) {
		t.Fatalf("expected foreign token to be rejected, got %v", err)
	}
}

func TestRegistrationService_ResendConfirmation_UnknownEmailIsSilent(t *testing.T) {
	fx := newRegistrationFixture(t)

	if err := fx.service.ResendConfirmation(context.Background(), "ghost@example.com"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if fx.mailer.confirmCalls != 0 {
		t.Fatal("expected no mail for unknown email")
	}
}

func TestRegistrationService_ResendConfirmation_ConfirmedAccountIsSilent(t *testing.T) {
	fx := newRegistrationFixture(t)

	if _, err := fx.service.Register(context.Background(), aliceInput()); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	userID, token, err := fx.mailer.confirmLinkParams()
	if err != nil {
		t.Fatalf("failed to parse confirmation link: %v", err)
	}
	if err := fx.service.ConfirmEmail(context.Background(), userID, token); err != nil {
		t.Fatalf("ConfirmEmail returned error: %v", err)
	}

	if err := fx.service.ResendConfirmation(context.Background(), "alice@example.com"); err != nil {
		t.Fatalf("expected silent success for confirmed account, got %v", err)
	}
	if fx.mailer.confirmCalls != 1 {
		t.Fatalf("expected no additional mail for confirmed account, got %d", fx.mailer.confirmCalls)
	}
}
