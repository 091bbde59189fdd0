package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/core/port"
	"github.com/spaceuser/iam-service/internal/infra/security"
	"github.com/spaceuser/iam-service/internal/repository"
)

// IdentityStore mediates every user write the workflows perform: it owns
// normalization, password hashing, and the stamp bookkeeping, and translates
// repository sentinels into workflow errors.
type IdentityStore struct {
	users port.UserRepository
	roles port.RoleRepository
	now   func() time.Time
}

// NewIdentityStore constructs the store adapter over the persistence ports.
func NewIdentityStore(users port.UserRepository, roles port.RoleRepository) *IdentityStore {
	return &IdentityStore{
		users: users,
		roles: roles,
		now:   time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *IdentityStore) WithClock(now func() time.Time) *IdentityStore {
	clone := *s
	clone.now = now
	return &clone
}

// Normalize uppercase-folds an identifier for case-insensitive lookup.
func Normalize(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}

// CreateUser hashes the password, fills in identifiers, stamps, and
// normalized keys, and persists the user. A duplicate normalized username
// surfaces as ErrDuplicateAccount.
func (s *IdentityStore) CreateUser(ctx context.Context, user domain.User, password string) (domain.User, error) {
	passwordHash, err := security.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	securityStamp, err := security.NewSecurityStamp()
	if err != nil {
		return domain.User{}, err
	}

	now := s.now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.PasswordHash = passwordHash
	user.NormalizedEmail = Normalize(user.Email)
	user.NormalizedUserName = Normalize(user.UserName)
	user.SecurityStamp = securityStamp
	user.ConcurrencyStamp = uuid.NewString()
	user.LockoutEnabled = true
	user.CreatedAt = now
	user.UpdatedAt = now

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrDuplicateAccount
		}
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

// FindByID loads a user by identifier.
func (s *IdentityStore) FindByID(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user by id: %w", err)
	}
	return user, nil
}

// FindByEmail loads a user by case-insensitive email.
func (s *IdentityStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	user, err := s.users.GetByNormalizedEmail(ctx, Normalize(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user by email: %w", err)
	}
	return user, nil
}

// FindByUserName loads a user by case-insensitive username.
func (s *IdentityStore) FindByUserName(ctx context.Context, userName string) (*domain.User, error) {
	user, err := s.users.GetByNormalizedUserName(ctx, Normalize(userName))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user by username: %w", err)
	}
	return user, nil
}

// SaveUser persists profile and credential changes under optimistic
// concurrency and returns the stored user with its fresh concurrency stamp.
// An email or username that collides with another account surfaces as
// ErrDuplicateAccount, a lost write race as ErrConcurrentModification.
func (s *IdentityStore) SaveUser(ctx context.Context, user domain.User) (*domain.User, error) {
	user.NormalizedEmail = Normalize(user.Email)
	user.NormalizedUserName = Normalize(user.UserName)

	updated, err := s.users.Update(ctx, user)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			return nil, ErrDuplicateAccount
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrConcurrentModification
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("save user: %w", err)
		}
	}

	return updated, nil
}

// DeleteUser removes the account. Role assignments go with it; role rows stay.
func (s *IdentityStore) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// ListUsers returns every account.
func (s *IdentityStore) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// AddToRole assigns the named role to the user.
func (s *IdentityStore) AddToRole(ctx context.Context, userID, roleName string) error {
	role, err := s.roles.GetByName(ctx, roleName)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("role %q not found", roleName)
		}
		return fmt.Errorf("lookup role: %w", err)
	}

	if err := s.roles.AssignToUser(ctx, userID, role.ID); err != nil {
		return fmt.Errorf("assign role: %w", err)
	}

	return nil
}

// RoleNames returns the names of the roles assigned to the user.
func (s *IdentityStore) RoleNames(ctx context.Context, userID string) ([]string, error) {
	roles, err := s.roles.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user roles: %w", err)
	}

	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

// RecordFailedSignIn increments the failure counter and, once maxFailures is
// reached, starts a lockout window and resets the counter. It reports
// whether the account is now locked out.
func (s *IdentityStore) RecordFailedSignIn(ctx context.Context, user domain.User, maxFailures int, lockoutDuration time.Duration) (bool, error) {
	failedCount := user.AccessFailedCount + 1

	if user.LockoutEnabled && failedCount >= maxFailures {
		lockoutEnd := s.now().UTC().Add(lockoutDuration)
		if err := s.users.UpdateLockout(ctx, user.ID, 0, &lockoutEnd); err != nil {
			return false, fmt.Errorf("record lockout: %w", err)
		}
		return true, nil
	}

	if err := s.users.UpdateLockout(ctx, user.ID, failedCount, user.LockoutEnd); err != nil {
		return false, fmt.Errorf("record failed sign-in: %w", err)
	}
	return false, nil
}

// ResetFailedSignIns clears the failure counter after a successful sign-in.
func (s *IdentityStore) ResetFailedSignIns(ctx context.Context, user domain.User) error {
	if user.AccessFailedCount == 0 && user.LockoutEnd == nil {
		return nil
	}
	if err := s.users.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
		return fmt.Errorf("reset failed sign-ins: %w", err)
	}
	return nil
}
