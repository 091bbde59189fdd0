package usecase

import "errors"

var (
	// ErrValidation indicates missing or malformed input fields.
	ErrValidation = errors.New("validation failed")
	// ErrPasswordPolicyViolation indicates the password does not satisfy complexity requirements.
	ErrPasswordPolicyViolation = errors.New("password does not meet complexity requirements")
	// ErrDuplicateAccount indicates an account already exists for the email.
	ErrDuplicateAccount = errors.New("an account with this email already exists")
	// ErrUserNotFound indicates the referenced account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials covers unknown accounts, wrong passwords,
	// unconfirmed emails, and locked-out accounts alike, so a caller cannot
	// tell which of them failed a sign-in.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrConcurrentModification indicates the account changed underneath the
	// caller and the write was discarded.
	ErrConcurrentModification = errors.New("account was modified concurrently")
)
