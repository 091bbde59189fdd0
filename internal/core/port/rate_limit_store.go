package port

import (
	"context"
	"time"
)

// RateLimitStore tracks request attempts for sliding-window throttling.
type RateLimitStore interface {
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	// PruneAndCount drops attempts older than the window and returns how many
	// remain inside it.
	PruneAndCount(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
}
