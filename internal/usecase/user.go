package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

// ErrUserNotFound indicates the user does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserService covers account administration outside the login path.
type UserService struct {
	users  port.UserRepository
	roles  port.RoleRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(users port.UserRepository, roles port.RoleRepository, log *zap.Logger) *UserService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserService{
		users:  users,
		roles:  roles,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *UserService) WithClock(now func() time.Time) *UserService {
	s.now = now
	return s
}

// Get returns the user with credential material stripped.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	sanitized := user.Sanitized()
	return &sanitized, nil
}

// List returns sanitized users matching the filter.
func (s *UserService) List(ctx context.Context, filter port.UserFilter) ([]domain.User, error) {
	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for i := range users {
		users[i] = users[i].Sanitized()
	}
	return users, nil
}

// Count returns the number of users matching the filter.
func (s *UserService) Count(ctx context.Context, filter port.UserFilter) (int, error) {
	return s.users.Count(ctx, filter)
}

// AssignRole attaches a role to the user, or clears it when roleID is nil.
func (s *UserService) AssignRole(ctx context.Context, userID string, roleID *string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if roleID != nil {
		if _, err := s.roles.GetByID(ctx, *roleID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrRoleNotFound
			}
			return fmt.Errorf("lookup role: %w", err)
		}
	}

	user.RoleID = roleID
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// SetStatus transitions the account's status. Deactivating also clears the
// active flag so every status check agrees.
func (s *UserService) SetStatus(ctx context.Context, userID string, status domain.UserStatus) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	user.Status = status
	user.IsActive = status == domain.UserStatusActive
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, *user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	s.logger.Info("user status changed",
		zap.String("user_id", userID),
		zap.String("status", string(status)),
	)
	return nil
}

// Delete soft-deletes the account; the row stays for audit continuity.
func (s *UserService) Delete(ctx context.Context, userID string) error {
	if err := s.users.SoftDelete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("soft delete user: %w", err)
	}
	return nil
}
