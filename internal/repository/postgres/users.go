package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/repository"
)

var userColumns = []string{
	"id",
	"name",
	"surname1",
	"surname2",
	"email",
	"normalized_email",
	"user_name",
	"normalized_user_name",
	"phone_number",
	"birth_date",
	"profile_image_path",
	"password_hash",
	"email_confirmed",
	"security_stamp",
	"concurrency_stamp",
	"lockout_enabled",
	"lockout_end",
	"access_failed_count",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{
		exec:    pool,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// NewUserRepositoryWithExecutor wires a repository against an arbitrary
// executor, used by tests backed by pgxmock.
func NewUserRepositoryWithExecutor(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new user row. A unique violation on the normalized
// username or email maps to repository.ErrDuplicate.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	var phoneValue any
	if user.PhoneNumber != nil && *user.PhoneNumber != "" {
		phoneValue = *user.PhoneNumber
	}

	var surname2Value any
	if user.Surname2 != "" {
		surname2Value = user.Surname2
	}

	var lockoutEndValue any
	if user.LockoutEnd != nil {
		lockoutEndValue = *user.LockoutEnd
	}

	stmt, args, err := r.builder.Insert("users").
		Columns(userColumns...).
		Values(
			user.ID,
			user.Name,
			user.Surname1,
			surname2Value,
			user.Email,
			user.NormalizedEmail,
			user.UserName,
			user.NormalizedUserName,
			phoneValue,
			user.BirthDate,
			user.ProfileImagePath,
			user.PasswordHash,
			user.EmailConfirmed,
			user.SecurityStamp,
			user.ConcurrencyStamp,
			user.LockoutEnabled,
			lockoutEndValue,
			user.AccessFailedCount,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByNormalizedEmail retrieves a user by uppercase-folded email.
func (r *UserRepository) GetByNormalizedEmail(ctx context.Context, normalizedEmail string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"normalized_email": normalizedEmail})
}

// GetByNormalizedUserName retrieves a user by uppercase-folded username.
func (r *UserRepository) GetByNormalizedUserName(ctx context.Context, normalizedUserName string) (*domain.User, error) {
	return r.getBy(ctx, squirrel.Eq{"normalized_user_name": normalizedUserName})
}

func (r *UserRepository) getBy(ctx context.Context, pred squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		Where(pred).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// Update persists profile and credential fields under optimistic concurrency:
// the row is matched on the concurrency stamp the caller read, and a fresh
// stamp is written on success. Zero rows affected means the caller lost a
// race (ErrConflict) or the row is gone (ErrNotFound). A unique violation,
// e.g. the email was changed to an already-taken address, maps to
// ErrDuplicate so callers can tell it apart from a stale stamp. Lockout
// counters are deliberately not written here; see UpdateLockout.
func (r *UserRepository) Update(ctx context.Context, user domain.User) (*domain.User, error) {
	var phoneValue any
	if user.PhoneNumber != nil && *user.PhoneNumber != "" {
		phoneValue = *user.PhoneNumber
	}

	var surname2Value any
	if user.Surname2 != "" {
		surname2Value = user.Surname2
	}

	newStamp := uuid.NewString()
	updatedAt := time.Now().UTC()

	stmt, args, err := r.builder.Update("users").
		Set("name", user.Name).
		Set("surname1", user.Surname1).
		Set("surname2", surname2Value).
		Set("email", user.Email).
		Set("normalized_email", user.NormalizedEmail).
		Set("user_name", user.UserName).
		Set("normalized_user_name", user.NormalizedUserName).
		Set("phone_number", phoneValue).
		Set("birth_date", user.BirthDate).
		Set("profile_image_path", user.ProfileImagePath).
		Set("password_hash", user.PasswordHash).
		Set("email_confirmed", user.EmailConfirmed).
		Set("security_stamp", user.SecurityStamp).
		Set("concurrency_stamp", newStamp).
		Set("updated_at", updatedAt).
		Where(squirrel.Eq{"id": user.ID}).
		Where(squirrel.Eq{"concurrency_stamp": user.ConcurrencyStamp}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, user.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, repository.ErrNotFound
			}
			return nil, err
		}
		return nil, repository.ErrConflict
	}

	user.ConcurrencyStamp = newStamp
	user.UpdatedAt = updatedAt
	return &user, nil
}

// UpdateLockout writes the sign-in throttling fields only, bypassing the
// concurrency stamp so a failed login never conflicts with a profile edit.
func (r *UserRepository) UpdateLockout(ctx context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error {
	var lockoutEndValue any
	if lockoutEnd != nil {
		lockoutEndValue = *lockoutEnd
	}

	stmt, args, err := r.builder.Update("users").
		Set("access_failed_count", accessFailedCount).
		Set("lockout_end", lockoutEndValue).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update lockout sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update lockout: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// Delete removes the user row. Role assignments cascade via FK; role rows
// are untouched.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("users").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// List returns all users ordered by creation time.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user       domain.User
		surname2   sql.NullString
		phone      sql.NullString
		lockoutEnd *time.Time
	)

	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Surname1,
		&surname2,
		&user.Email,
		&user.NormalizedEmail,
		&user.UserName,
		&user.NormalizedUserName,
		&phone,
		&user.BirthDate,
		&user.ProfileImagePath,
		&user.PasswordHash,
		&user.EmailConfirmed,
		&user.SecurityStamp,
		&user.ConcurrencyStamp,
		&user.LockoutEnabled,
		&lockoutEnd,
		&user.AccessFailedCount,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if surname2.Valid {
		user.Surname2 = surname2.String
	}
	if phone.Valid {
		val := phone.String
		user.PhoneNumber = &val
	}
	user.LockoutEnd = lockoutEnd

	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
