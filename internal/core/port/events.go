package port

import "context"

// EventPublisher emits domain events to the message broker. Publishing is
// fire-and-forget from the use case's point of view; delivery failures are
// logged by the implementation and never fail the triggering operation.
type EventPublisher interface {
	UserRegistered(ctx context.Context, userID, email string) error
	EmailVerificationRequested(ctx context.Context, email, token string) error
	PasswordResetRequested(ctx context.Context, userID, email, token string) error
	PasswordChanged(ctx context.Context, userID string) error
	TwoFactorStatusChanged(ctx context.Context, userID string, enabled bool) error
	SessionsRevoked(ctx context.Context, userID string, count int) error
}
