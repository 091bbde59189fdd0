package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/repository"
)

// RoleRepository implements role persistence operations.
type RoleRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a PostgreSQL-backed role repository.
func NewRoleRepository(pool *pgxpool.Pool) *RoleRepository {
	return &RoleRepository{
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByName retrieves a role by its case-insensitive name.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	stmt, args, err := r.builder.Select("id", "name", "normalized_name").
		From("roles").
		Where(squirrel.Eq{"normalized_name": strings.ToUpper(name)}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role by name sql: %w", err)
	}

	var role domain.Role
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&role.ID, &role.Name, &role.NormalizedName); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role by name: %w", err)
	}

	return &role, nil
}

// EnsureRoles inserts any of the named roles that do not exist yet. Called at
// startup to seed the role catalog.
func (r *RoleRepository) EnsureRoles(ctx context.Context, names []string) error {
	if len(names) == 0 {
		return nil
	}

	query := r.builder.Insert("roles").
		Columns("id", "name", "normalized_name")

	for _, name := range names {
		query = query.Values(uuid.NewString(), name, strings.ToUpper(name))
	}

	stmt, args, err := query.Suffix("ON CONFLICT (normalized_name) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build ensure roles sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("ensure roles: %w", err)
	}

	return nil
}

// AssignToUser links the user to the role. Re-assigning is a no-op.
func (r *RoleRepository) AssignToUser(ctx context.Context, userID, roleID string) error {
	stmt, args, err := r.builder.Insert("user_roles").
		Columns("user_id", "role_id", "assigned_at").
		Values(userID, roleID, time.Now().UTC()).
		Suffix("ON CONFLICT DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build assign role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// ListByUser returns roles assigned to the specified user.
func (r *RoleRepository) ListByUser(ctx context.Context, userID string) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select("r.id", "r.name", "r.normalized_name").
		From("roles r").
		Join("user_roles ur ON ur.role_id = r.id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build roles by user sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles by user: %w", err)
	}
	defer rows.Close()

	roles := make([]domain.Role, 0)
	for rows.Next() {
		var role domain.Role
		if err := rows.Scan(&role.ID, &role.Name, &role.NormalizedName); err != nil {
			return nil, fmt.Errorf("scan role by user: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles by user: %w", err)
	}

	return roles, nil
}

var _ port.RoleRepository = (*RoleRepository)(nil)
