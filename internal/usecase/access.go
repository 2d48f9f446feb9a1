package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

// PermissionDeniedError reports a failed authorization check with the pair
// that was requested.
type PermissionDeniedError struct {
	Resource string
	Action   string
}

// Error implements error.
func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s:%s", e.Resource, e.Action)
}

// AccessService resolves whether a user may perform an action on a resource.
type AccessService struct {
	users    port.UserRepository
	roles    port.RoleRepository
	cache    port.Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewAccessService constructs an AccessService instance.
func NewAccessService(users port.UserRepository, roles port.RoleRepository, log *zap.Logger) *AccessService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccessService{users: users, roles: roles, logger: log}
}

// WithDecisionCache caches permission decisions for the supplied TTL. Grants
// and revocations may lag by up to the TTL, so keep it short.
func (s *AccessService) WithDecisionCache(cache port.Cache, ttl time.Duration) *AccessService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// HasPermission reports whether the user holds the (resource, action) pair.
// Superusers pass unconditionally; a user without a role holds nothing.
// Matching is exact: no wildcards, no hierarchy.
func (s *AccessService) HasPermission(ctx context.Context, userID, resource, action string) (bool, error) {
	cacheKey := fmt.Sprintf("perm:%s:%s:%s", userID, resource, action)
	if s.cache != nil && s.cacheTTL > 0 {
		if cached, err := s.cache.Get(ctx, cacheKey); err == nil {
			return cached == "1", nil
		}
	}

	allowed, err := s.resolvePermission(ctx, userID, resource, action)
	if err != nil {
		return false, err
	}

	if s.cache != nil && s.cacheTTL > 0 {
		value := "0"
		if allowed {
			value = "1"
		}
		if err := s.cache.Set(ctx, cacheKey, value, s.cacheTTL); err != nil {
			s.logger.Warn("cache permission decision", zap.Error(err))
		}
	}

	return allowed, nil
}

func (s *AccessService) resolvePermission(ctx context.Context, userID, resource, action string) (bool, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrUserNotFound
		}
		return false, fmt.Errorf("lookup user: %w", err)
	}

	if user.IsSuperuser {
		s.logger.Info("superuser permission bypass",
			zap.String("user_id", user.ID),
			zap.String("resource", resource),
			zap.String("action", action),
		)
		return true, nil
	}

	if user.RoleID == nil {
		return false, nil
	}

	role, err := s.roles.GetByID(ctx, *user.RoleID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("lookup role: %w", err)
	}

	return role.Grants(resource, action), nil
}

// Require returns a PermissionDeniedError unless the user holds the pair.
func (s *AccessService) Require(ctx context.Context, userID, resource, action string) error {
	allowed, err := s.HasPermission(ctx, userID, resource, action)
	if err != nil {
		return err
	}
	if !allowed {
		return &PermissionDeniedError{Resource: resource, Action: action}
	}
	return nil
}
