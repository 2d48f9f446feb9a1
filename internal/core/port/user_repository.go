package port

import (
	"context"
	"time"

	"github.com/kryptonation/restomate/internal/core/domain"
)

// UserFilter narrows user listings.
type UserFilter struct {
	Status   domain.UserStatus
	IsActive *bool
	Limit    int
	Offset   int
}

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	Count(ctx context.Context, filter UserFilter) (int, error)
	Update(ctx context.Context, user domain.User) error
	SoftDelete(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id string, passwordHash string, changedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
	// UpdateLockout persists the failure counter and lock deadline together so
	// a concurrent reader never observes one without the other.
	UpdateLockout(ctx context.Context, id string, failedAttempts int, lockedUntil *time.Time) error
	// UpdateTwoFactor persists the enabled flag and shared secret in a single
	// statement for the same reason.
	UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret *string) error
	SetVerified(ctx context.Context, id string, verified bool) error
}

// BackupCodeRepository manages single-use 2FA backup codes as owned rows.
type BackupCodeRepository interface {
	// Replace drops any existing codes for the user and stores the new set.
	Replace(ctx context.Context, userID string, codes []string) error
	// Consume atomically deletes the matching code, reporting whether a row
	// was removed. A false result means the code was unknown or already spent.
	Consume(ctx context.Context, userID string, code string) (bool, error)
	DeleteForUser(ctx context.Context, userID string) error
	CountForUser(ctx context.Context, userID string) (int, error)
}
