package domain

import "time"

// RefreshToken represents a persisted refresh token (stored as a hash).
// Rows are revoked in place and removed later by a cleanup sweep.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (t RefreshToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsRevoked reports whether the token has been explicitly revoked.
func (t RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// Revoke marks the token as revoked. Returns true if the token transitioned
// to the revoked state.
func (t *RefreshToken) Revoke(at time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	ts := at
	t.RevokedAt = &ts
	return true
}

// PasswordResetToken is a single-use password reset artifact.
type PasswordResetToken struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the reset token can still be redeemed.
func (t PasswordResetToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// Consume marks the reset token as used. Returns true when the token
// transitions from unused to used.
func (t *PasswordResetToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	ts := at
	t.UsedAt = &ts
	return true
}

// EmailVerificationToken is a single-use email verification artifact. It is
// keyed by email rather than user id so redemption tolerates account lookups
// without exposing internal identifiers.
type EmailVerificationToken struct {
	ID        string
	Email     string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// IsExpired reports whether the verification token can still be redeemed.
func (t EmailVerificationToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// Consume marks the verification token as used.
func (t *EmailVerificationToken) Consume(at time.Time) bool {
	if t.UsedAt != nil {
		return false
	}
	ts := at
	t.UsedAt = &ts
	return true
}
