package port

import (
	"context"
	"time"

	"github.com/spaceuser/iam-service/internal/core/domain"
)

// UserRepository persists user aggregates.
//
// Create returns repository.ErrDuplicate when the normalized username or
// email is already taken. Update is optimistic: it matches on the concurrency
// stamp the caller read and returns repository.ErrConflict when another
// writer won the race, repository.ErrDuplicate when the change collides with
// another account's natural key, repository.ErrNotFound when the row is gone.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByNormalizedEmail(ctx context.Context, normalizedEmail string) (*domain.User, error)
	GetByNormalizedUserName(ctx context.Context, normalizedUserName string) (*domain.User, error)
	Update(ctx context.Context, user domain.User) (*domain.User, error)
	UpdateLockout(ctx context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]domain.User, error)
}
