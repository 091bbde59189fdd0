package domain

import "time"

// User is the aggregate root for an account. Confirmation and reset tokens
// issued for the user are bound to SecurityStamp; rotating the stamp
// invalidates every outstanding token at once.
type User struct {
	ID                 string
	Name               string
	Surname1           string
	Surname2           string
	Email              string
	NormalizedEmail    string
	UserName           string
	NormalizedUserName string
	PhoneNumber        *string
	BirthDate          time.Time
	ProfileImagePath   string
	PasswordHash       string
	EmailConfirmed     bool
	SecurityStamp      string
	ConcurrencyStamp   string
	LockoutEnabled     bool
	LockoutEnd         *time.Time
	AccessFailedCount  int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// IsLockedOut reports whether the account rejects sign-in attempts at the
// given instant.
func (u User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}

// Role is a named grant attached to users through the user_roles join table.
type Role struct {
	ID             string
	Name           string
	NormalizedName string
}

// UserRole links a user to a role.
type UserRole struct {
	UserID     string
	RoleID     string
	AssignedAt time.Time
}

// PasswordContext carries the user inputs a candidate password must not
// resemble.
type PasswordContext struct {
	Username string
	Email    string
	Phone    *string
}
