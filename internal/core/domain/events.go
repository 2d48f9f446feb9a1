package domain

import "time"

// UserRegisteredEvent is emitted after a user account is created.
type UserRegisteredEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// EmailVerificationRequestedEvent carries the raw verification token for an
// external mailer to deliver.
type EmailVerificationRequestedEvent struct {
	Email      string    `json:"email"`
	Token      string    `json:"token"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PasswordResetRequestedEvent carries the raw reset token for an external
// mailer to deliver.
type PasswordResetRequestedEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Token      string    `json:"token"`
	OccurredAt time.Time `json:"occurred_at"`
}

// PasswordChangedEvent is emitted after a password change or reset completes.
type PasswordChangedEvent struct {
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TwoFactorStatusChangedEvent is emitted when 2FA is enabled or disabled.
type TwoFactorStatusChangedEvent struct {
	UserID     string    `json:"user_id"`
	Enabled    bool      `json:"enabled"`
	OccurredAt time.Time `json:"occurred_at"`
}

// SessionsRevokedEvent is emitted when refresh tokens are revoked in bulk.
type SessionsRevokedEvent struct {
	UserID     string    `json:"user_id"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}
