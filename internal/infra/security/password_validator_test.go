package security

import (
	"errors"
	"testing"

	"github.com/spaceuser/iam-service/internal/core/domain"
)

func TestDefaultPasswordValidator(t *testing.T) {
	cases := []struct {
		name     string
		password string
		wantCode string
	}{
		{name: "valid", password: "Str0ng!Pass", wantCode: ""},
		{name: "valid alternate", password: "An0ther!Pass", wantCode: ""},
		{name: "too short", password: "Ab1!x", wantCode: "min_length"},
		{name: "missing uppercase", password: "weak!passw0rd", wantCode: "uppercase"},
		{name: "missing lowercase", password: "WEAK!PASSW0RD", wantCode: "lowercase"},
		{name: "missing digit", password: "Weak!Password", wantCode: "digit"},
		{name: "missing symbol", password: "Weak1Passw0rd", wantCode: "symbol"},
	}

	validator := DefaultPasswordValidator()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.Validate(tc.password)
			if tc.wantCode == "" {
				if err != nil {
					t.Fatalf("expected password to pass, got %v", err)
				}
				return
			}

			var violation *PasswordValidationError
			if !errors.As(err, &violation) {
				t.Fatalf("expected PasswordValidationError, got %v", err)
			}
			if violation.Code != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, violation.Code)
			}
		})
	}
}

func TestPasswordPolicyAcceptsClassCompliantPasswords(t *testing.T) {
	policy := NewPasswordPolicy()
	ctx := domain.PasswordContext{Email: "alice@example.com", Username: "alice@example.com"}

	for _, password := range []string{"Str0ng!Pass", "An0ther!Pass"} {
		if err := policy.Validate(password, ctx); err != nil {
			t.Fatalf("expected %q to satisfy the policy, got %v", password, err)
		}
	}
}

func TestPasswordPolicyStrengthFloorIsOptIn(t *testing.T) {
	policy := NewPasswordPolicy().WithMinStrength(2)

	err := policy.Validate("AliceWonder1!", domain.PasswordContext{
		Username: "alicewonder",
		Email:    "alicewonder@example.com",
	})
	if err == nil {
		t.Fatal("expected password derived from user inputs to be rejected")
	}

	if err := policy.Validate("Tr4vel&Beyond9", domain.PasswordContext{Email: "alice@example.com"}); err != nil {
		t.Fatalf("expected unrelated strong password to pass, got %v", err)
	}
}

func TestRequirePasswordStrengthRule(t *testing.T) {
	rule := RequirePasswordStrengthRule(2, "alice@example.com")

	var violation *PasswordValidationError
	if err := rule.Validate("Password1!"); !errors.As(err, &violation) || violation.Code != "weak_password" {
		t.Fatalf("expected weak_password violation, got %v", err)
	}
	if err := rule.Validate("Tr4vel&Beyond9"); err != nil {
		t.Fatalf("expected strong password to pass the floor, got %v", err)
	}
}

func TestRequireDifferentFrom(t *testing.T) {
	rule := RequireDifferentFrom("OldPass1!")

	if err := rule.Validate("OldPass1!"); err == nil {
		t.Fatal("expected reuse of current password to be rejected")
	}
	if err := rule.Validate("NewPass2@"); err != nil {
		t.Fatalf("expected different password to pass, got %v", err)
	}
}
