package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	uuid "github.com/google/uuid"

	"github.com/spaceuser/iam-service/internal/core/domain"
	"github.com/spaceuser/iam-service/internal/repository"
)

// stubUserRepository is an in-memory port.UserRepository with the same
// conflict and concurrency semantics as the PostgreSQL implementation.
type stubUserRepository struct {
	users map[string]domain.User

	createErr  error
	updateErr  error
	lockoutErr error

	createCalls  int
	updateCalls  int
	lockoutCalls int
	deleteCalls  int
}

func newStubUserRepository() *stubUserRepository {
	return &stubUserRepository{users: make(map[string]domain.User)}
}

func (m *stubUserRepository) Create(_ context.Context, user domain.User) error {
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.users {
		if existing.NormalizedUserName == user.NormalizedUserName ||
			existing.NormalizedEmail == user.NormalizedEmail {
			return repository.ErrDuplicate
		}
	}
	m.users[user.ID] = user
	return nil
}

func (m *stubUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := user
	return &copied, nil
}

func (m *stubUserRepository) GetByNormalizedEmail(_ context.Context, normalizedEmail string) (*domain.User, error) {
	for _, user := range m.users {
		if user.NormalizedEmail == normalizedEmail {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *stubUserRepository) GetByNormalizedUserName(_ context.Context, normalizedUserName string) (*domain.User, error) {
	for _, user := range m.users {
		if user.NormalizedUserName == normalizedUserName {
			copied := user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *stubUserRepository) Update(_ context.Context, user domain.User) (*domain.User, error) {
	m.updateCalls++
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	existing, ok := m.users[user.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if existing.ConcurrencyStamp != user.ConcurrencyStamp {
		return nil, repository.ErrConflict
	}
	for id, other := range m.users {
		if id == user.ID {
			continue
		}
		if other.NormalizedUserName == user.NormalizedUserName ||
			other.NormalizedEmail == user.NormalizedEmail {
			return nil, repository.ErrDuplicate
		}
	}
	user.ConcurrencyStamp = uuid.NewString()
	user.UpdatedAt = time.Now().UTC()
	m.users[user.ID] = user
	copied := user
	return &copied, nil
}

func (m *stubUserRepository) UpdateLockout(_ context.Context, id string, accessFailedCount int, lockoutEnd *time.Time) error {
	m.lockoutCalls++
	if m.lockoutErr != nil {
		return m.lockoutErr
	}
	user, ok := m.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.AccessFailedCount = accessFailedCount
	user.LockoutEnd = lockoutEnd
	m.users[id] = user
	return nil
}

func (m *stubUserRepository) Delete(_ context.Context, id string) error {
	m.deleteCalls++
	if _, ok := m.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.users, id)
	return nil
}

func (m *stubUserRepository) List(_ context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.users))
	for _, user := range m.users {
		out = append(out, user)
	}
	return out, nil
}

// stubRoleRepository is an in-memory port.RoleRepository seeded with the
// default role catalog.
type stubRoleRepository struct {
	roles       map[string]domain.Role
	assignments map[string][]string

	assignErr   error
	assignCalls int
}

func newStubRoleRepository() *stubRoleRepository {
	repo := &stubRoleRepository{
		roles:       make(map[string]domain.Role),
		assignments: make(map[string][]string),
	}
	for _, name := range []string{"Admin", "Basic", "Premium"} {
		id := uuid.NewString()
		repo.roles[id] = domain.Role{ID: id, Name: name, NormalizedName: Normalize(name)}
	}
	return repo
}

func (m *stubRoleRepository) GetByName(_ context.Context, name string) (*domain.Role, error) {
	normalized := Normalize(name)
	for _, role := range m.roles {
		if role.NormalizedName == normalized {
			copied := role
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *stubRoleRepository) EnsureRoles(_ context.Context, names []string) error {
	for _, name := range names {
		if _, err := m.GetByName(context.Background(), name); err == nil {
			continue
		}
		id := uuid.NewString()
		m.roles[id] = domain.Role{ID: id, Name: name, NormalizedName: Normalize(name)}
	}
	return nil
}

func (m *stubRoleRepository) AssignToUser(_ context.Context, userID, roleID string) error {
	m.assignCalls++
	if m.assignErr != nil {
		return m.assignErr
	}
	for _, assigned := range m.assignments[userID] {
		if assigned == roleID {
			return nil
		}
	}
	m.assignments[userID] = append(m.assignments[userID], roleID)
	return nil
}

func (m *stubRoleRepository) ListByUser(_ context.Context, userID string) ([]domain.Role, error) {
	out := make([]domain.Role, 0)
	for _, roleID := range m.assignments[userID] {
		if role, ok := m.roles[roleID]; ok {
			out = append(out, role)
		}
	}
	return out, nil
}

// stubMailer records dispatched mail so tests can pull tokens out of the
// embedded links.
type stubMailer struct {
	confirmCalls int
	resetCalls   int
	confirmErr   error
	resetErr     error

	lastConfirmEmail string
	lastConfirmURL   string
	lastResetEmail   string
	lastResetURL     string
}

func (m *stubMailer) SendAccountConfirmation(_ context.Context, email, _ string, confirmURL string) error {
	m.confirmCalls++
	m.lastConfirmEmail = email
	m.lastConfirmURL = confirmURL
	return m.confirmErr
}

func (m *stubMailer) SendPasswordReset(_ context.Context, email, _ string, resetURL string) error {
	m.resetCalls++
	m.lastResetEmail = email
	m.lastResetURL = resetURL
	return m.resetErr
}

func (m *stubMailer) confirmLinkParams() (userID, token string, err error) {
	parsed, err := url.Parse(m.lastConfirmURL)
	if err != nil {
		return "", "", err
	}
	query := parsed.Query()
	return query.Get("userId"), query.Get("token"), nil
}

func (m *stubMailer) resetLinkParams() (email, token string, err error) {
	parsed, err := url.Parse(m.lastResetURL)
	if err != nil {
		return "", "", err
	}
	query := parsed.Query()
	return query.Get("email"), query.Get("token"), nil
}

// stubImageStore records uploads without talking to an object store.
type stubImageStore struct {
	saveErr    error
	saveCalls  int
	removeErr  error
	removeCall int

	lastEmail    string
	lastFilename string
}

func (m *stubImageStore) SaveProfileImage(_ context.Context, email, filename, _ string, data []byte) (string, error) {
	m.saveCalls++
	m.lastEmail = email
	m.lastFilename = filename
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if len(data) == 0 {
		return "", errors.New("empty image data")
	}
	return fmt.Sprintf("http://storage.local/profile-images/profile/%s/%s", email, filename), nil
}

func (m *stubImageStore) RemoveProfileImages(_ context.Context, email string) error {
	m.removeCall++
	m.lastEmail = email
	return m.removeErr
}
