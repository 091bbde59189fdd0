package port

import "context"

// Mailer dispatches transactional account mail. Implementations must not
// block workflow completion indefinitely; callers treat failures after a
// persisted state change as degraded success.
type Mailer interface {
	SendAccountConfirmation(ctx context.Context, email, name, confirmURL string) error
	SendPasswordReset(ctx context.Context, email, name, resetURL string) error
}
