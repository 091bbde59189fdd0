package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spaceuser/iam-service/internal/core/port"
)

// RateLimitRepository keeps request attempts in Redis sorted sets, one set
// per identifier, scored by the attempt timestamp.
type RateLimitRepository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRateLimitRepository constructs a repository using the provided Redis client.
func NewRateLimitRepository(client *redis.Client, keyPrefix string, ttl time.Duration) *RateLimitRepository {
	return &RateLimitRepository{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

// RecordAttempt stores the attempt timestamp and refreshes the key TTL.
func (r *RateLimitRepository) RecordAttempt(ctx context.Context, identifier string, at time.Time) error {
	key := r.key(identifier)
	member := redis.Z{
		Score:  float64(at.UnixNano()),
		Member: fmt.Sprintf("%d-%s", at.UnixNano(), uuid.NewString()),
	}

	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, member)
	if r.ttl > 0 {
		pipe.Expire(ctx, key, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis record attempt: %w", err)
	}

	return nil
}

// PruneAndCount removes attempts that fell out of the window and returns how
// many remain inside it.
func (r *RateLimitRepository) PruneAndCount(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error) {
	if window <= 0 {
		return 0, errors.New("window must be positive")
	}

	key := r.key(identifier)
	threshold := strconv.FormatInt(reference.Add(-window).UnixNano(), 10)

	pipe := r.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", threshold)
	card := pipe.ZCard(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis prune and count: %w", err)
	}

	return int(card.Val()), nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.keyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.keyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
