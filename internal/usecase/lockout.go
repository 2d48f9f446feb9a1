package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
)

// AccountGuard applies the lockout policy. Counters live in the durable store
// so a restart cannot erase an active lock; the counter is a soft threshold
// and may drift by one under concurrent attempts.
type AccountGuard struct {
	users     port.UserRepository
	threshold int
	duration  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewAccountGuard constructs a guard with the supplied threshold and lock duration.
func NewAccountGuard(users port.UserRepository, threshold int, duration time.Duration, logger *zap.Logger) *AccountGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountGuard{
		users:     users,
		threshold: threshold,
		duration:  duration,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the guard's time source. Intended for tests.
func (g *AccountGuard) WithClock(now func() time.Time) *AccountGuard {
	g.now = now
	return g
}

// IsLocked reports whether the user's lock is still in force. An elapsed lock
// counts as unlocked without an explicit clear.
func (g *AccountGuard) IsLocked(user *domain.User) bool {
	return user.IsLocked(g.now().UTC())
}

// RecordFailure increments the failure counter and engages the lock when the
// counter reaches the threshold. Failures against an already-locked account
// are ignored so flooding cannot extend a lock indefinitely. Returns whether
// this failure engaged the lock.
func (g *AccountGuard) RecordFailure(ctx context.Context, user *domain.User) (bool, error) {
	now := g.now().UTC()
	if user.IsLocked(now) {
		return false, nil
	}

	user.FailedLoginAttempts++

	var locked bool
	if user.FailedLoginAttempts >= g.threshold {
		until := now.Add(g.duration)
		user.LockedUntil = &until
		locked = true
	}

	if err := g.users.UpdateLockout(ctx, user.ID, user.FailedLoginAttempts, user.LockedUntil); err != nil {
		return false, fmt.Errorf("record login failure: %w", err)
	}

	if locked {
		g.logger.Warn("account locked after repeated login failures",
			zap.String("user_id", user.ID),
			zap.Int("failed_attempts", user.FailedLoginAttempts),
			zap.Timep("locked_until", user.LockedUntil),
		)
	}
	return locked, nil
}

// RecordSuccess clears the failure counter and any lock together.
func (g *AccountGuard) RecordSuccess(ctx context.Context, user *domain.User) error {
	if user.FailedLoginAttempts == 0 && user.LockedUntil == nil {
		return nil
	}

	user.FailedLoginAttempts = 0
	user.LockedUntil = nil

	if err := g.users.UpdateLockout(ctx, user.ID, 0, nil); err != nil {
		return fmt.Errorf("clear login failures: %w", err)
	}
	return nil
}
