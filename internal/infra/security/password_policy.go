package security

import (
	"fmt"

	"github.com/spaceuser/iam-service/internal/core/domain"
)

const defaultMinPasswordLength = 8

// DefaultPasswordValidator returns the built-in validator enforcing the
// account password policy: minimum length plus one character from each of
// the upper, lower, digit, and symbol classes. These class rules are the
// acceptance bar; a zxcvbn strength floor is available as an opt-in via
// PasswordPolicy.WithMinStrength.
func DefaultPasswordValidator() *PasswordValidator {
	return NewPasswordValidator(
		MinLengthRule(defaultMinPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
	)
}

// PasswordPolicy adapts the password validator to the workflow-level policy
// contract.
type PasswordPolicy struct {
	minStrengthScore int
}

// NewPasswordPolicy builds the policy enforcing the character class rules.
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{}
}

// WithMinStrength layers a zxcvbn strength floor (1-4) on top of the class
// rules, penalizing passwords derived from the user's own email, username,
// or phone. Zero leaves the floor disabled.
func (p *PasswordPolicy) WithMinStrength(score int) *PasswordPolicy {
	clone := *p
	clone.minStrengthScore = score
	return &clone
}

// Validate applies the configured rules to ensure the password meets policy
// requirements.
func (p *PasswordPolicy) Validate(password string, ctx domain.PasswordContext) error {
	if p == nil {
		return fmt.Errorf("password policy not configured")
	}

	rules := []PasswordRule{
		MinLengthRule(defaultMinPasswordLength),
		RequireUppercaseRule(),
		RequireLowercaseRule(),
		RequireDigitRule(),
		RequireSymbolRule(),
	}

	if p.minStrengthScore > 0 {
		inputs := make([]string, 0, 3)
		if ctx.Username != "" {
			inputs = append(inputs, ctx.Username)
		}
		if ctx.Email != "" {
			inputs = append(inputs, ctx.Email)
		}
		if ctx.Phone != nil && *ctx.Phone != "" {
			inputs = append(inputs, *ctx.Phone)
		}
		rules = append(rules, RequirePasswordStrengthRule(p.minStrengthScore, inputs...))
	}

	return NewPasswordValidator(rules...).Validate(password)
}
