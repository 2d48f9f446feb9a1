package domain

import "time"

// UserStatus enumerates possible account states.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusDeleted   UserStatus = "deleted"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID                  string
	Email               string
	Username            string
	PasswordHash        string
	FirstName           *string
	LastName            *string
	PhoneNumber         *string
	IsActive            bool
	IsVerified          bool
	IsSuperuser         bool
	Status              UserStatus
	TwoFactorEnabled    bool
	TwoFactorSecret     *string
	RoleID              *string
	PasswordChangedAt   *time.Time
	LastLoginAt         *time.Time
	FailedLoginAttempts int
	LockedUntil         *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether the account lockout is still in force at the given instant.
// A lock whose deadline has passed counts as unlocked without an explicit clear.
func (u User) IsLocked(at time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(at)
}

// CanAuthenticate reports whether the account status permits a login to complete.
func (u User) CanAuthenticate() bool {
	return u.IsActive && u.Status == UserStatusActive
}

// Sanitized returns a copy of the user with credential material removed.
func (u User) Sanitized() User {
	u.PasswordHash = ""
	u.TwoFactorSecret = nil
	return u
}

// BackupCode is a single-use fallback credential for two-factor authentication.
// A code row is deleted the moment it is consumed.
type BackupCode struct {
	ID        string
	UserID    string
	Code      string
	CreatedAt time.Time
}
