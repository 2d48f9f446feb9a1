package port

import (
	"context"
	"time"

	"github.com/kryptonation/restomate/internal/core/domain"
)

// TokenRepository manages refresh, password-reset, and email-verification
// token records.
type TokenRepository interface {
	CreateRefresh(ctx context.Context, token domain.RefreshToken) error
	GetRefreshByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	RevokeRefresh(ctx context.Context, id string, at time.Time) error
	// RevokeAllRefreshForUser flips every non-revoked row for the user and
	// returns how many were affected.
	RevokeAllRefreshForUser(ctx context.Context, userID string, at time.Time) (int, error)
	DeleteExpiredRefresh(ctx context.Context, before time.Time) (int, error)

	CreatePasswordReset(ctx context.Context, token domain.PasswordResetToken) error
	GetPasswordResetByHash(ctx context.Context, hash string) (*domain.PasswordResetToken, error)
	// ConsumePasswordReset marks the row used if and only if it is still
	// unused, reporting whether the transition happened.
	ConsumePasswordReset(ctx context.Context, id string, at time.Time) (bool, error)

	CreateVerification(ctx context.Context, token domain.EmailVerificationToken) error
	GetVerificationByHash(ctx context.Context, hash string) (*domain.EmailVerificationToken, error)
	ConsumeVerification(ctx context.Context, id string, at time.Time) (bool, error)
}

// AuditLogRepository appends audit entries. Writes are best-effort from the
// caller's perspective; the auth core never reads them back.
type AuditLogRepository interface {
	Append(ctx context.Context, entry domain.AuditLog) error
}
