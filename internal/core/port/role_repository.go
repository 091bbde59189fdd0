package port

import (
	"context"

	"github.com/spaceuser/iam-service/internal/core/domain"
)

// RoleRepository persists roles and user-role assignments. Role rows outlive
// the users that reference them; deleting a user only removes the join rows.
type RoleRepository interface {
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	EnsureRoles(ctx context.Context, names []string) error
	AssignToUser(ctx context.Context, userID, roleID string) error
	ListByUser(ctx context.Context, userID string) ([]domain.Role, error)
}
