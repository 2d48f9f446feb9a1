package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

var (
	// ErrRoleNotFound indicates the role does not exist.
	ErrRoleNotFound = errors.New("role not found")
	// ErrRoleExists indicates the role name is already taken.
	ErrRoleExists = errors.New("role already exists")
	// ErrRoleProtected indicates a mutation was attempted on a system role.
	ErrRoleProtected = errors.New("system role cannot be modified")
	// ErrPermissionNotFound indicates the permission does not exist.
	ErrPermissionNotFound = errors.New("permission not found")
)

// RoleService manages roles and their permission sets.
type RoleService struct {
	roles       port.RoleRepository
	permissions port.PermissionRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(roles port.RoleRepository, permissions port.PermissionRepository, log *zap.Logger) *RoleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleService{
		roles:       roles,
		permissions: permissions,
		logger:      log,
		now:         time.Now,
	}
}

// WithClock overrides the service's time source. Intended for tests.
func (s *RoleService) WithClock(now func() time.Time) *RoleService {
	s.now = now
	return s
}

// Create adds a new non-system role.
func (s *RoleService) Create(ctx context.Context, name string, description *string) (*domain.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("role name is required")
	}

	now := s.now().UTC()
	role := domain.Role{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.roles.Create(ctx, role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("create role: %w", err)
	}
	return &role, nil
}

// Get retrieves a role with its permission set.
func (s *RoleService) Get(ctx context.Context, id string) (*domain.Role, error) {
	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}
	return role, nil
}

// GetByName retrieves a role by name with its permission set.
func (s *RoleService) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	role, err := s.roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("lookup role: %w", err)
	}
	return role, nil
}

// List returns roles matching the filter.
func (s *RoleService) List(ctx context.Context, filter port.RoleFilter) ([]domain.Role, error) {
	return s.roles.List(ctx, filter)
}

// Update renames or re-describes a role. System roles reject mutation before
// anything is applied.
func (s *RoleService) Update(ctx context.Context, id string, name *string, description *string, isActive *bool) (*domain.Role, error) {
	role, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if role.IsSystem {
		return nil, ErrRoleProtected
	}

	if name != nil && strings.TrimSpace(*name) != "" {
		role.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		role.Description = description
	}
	if isActive != nil {
		role.IsActive = *isActive
	}
	role.UpdatedAt = s.now().UTC()

	if err := s.roles.Update(ctx, *role); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrRoleExists
		}
		return nil, fmt.Errorf("update role: %w", err)
	}
	return role, nil
}

// Delete removes a non-system role.
func (s *RoleService) Delete(ctx context.Context, id string) error {
	role, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrRoleProtected
	}

	if err := s.roles.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrRoleNotFound
		}
		return fmt.Errorf("delete role: %w", err)
	}
	return nil
}

// AttachPermissions links permissions to a role. Attaching a permission the
// role already holds is a no-op.
func (s *RoleService) AttachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrRoleProtected
	}

	for _, permissionID := range permissionIDs {
		if _, err := s.permissions.GetByID(ctx, permissionID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPermissionNotFound
			}
			return fmt.Errorf("lookup permission: %w", err)
		}
	}

	if err := s.roles.AttachPermissions(ctx, roleID, permissionIDs); err != nil {
		return fmt.Errorf("attach permissions: %w", err)
	}
	return nil
}

// DetachPermissions unlinks permissions from a role. Detaching an absent
// permission is a no-op.
func (s *RoleService) DetachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	role, err := s.Get(ctx, roleID)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrRoleProtected
	}

	if err := s.roles.DetachPermissions(ctx, roleID, permissionIDs); err != nil {
		return fmt.Errorf("detach permissions: %w", err)
	}
	return nil
}

// CreatePermission registers a new (resource, action) capability.
func (s *RoleService) CreatePermission(ctx context.Context, name, resource, action string, description *string) (*domain.Permission, error) {
	name = strings.TrimSpace(name)
	resource = strings.TrimSpace(resource)
	action = strings.TrimSpace(action)
	if name == "" || resource == "" || action == "" {
		return nil, fmt.Errorf("permission name, resource, and action are required")
	}

	permission := domain.Permission{
		ID:          uuid.NewString(),
		Name:        name,
		Resource:    resource,
		Action:      action,
		Description: description,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.permissions.Create(ctx, permission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("permission %q already exists", name)
		}
		return nil, fmt.Errorf("create permission: %w", err)
	}
	return &permission, nil
}

// ListPermissions returns every registered permission.
func (s *RoleService) ListPermissions(ctx context.Context) ([]domain.Permission, error) {
	return s.permissions.List(ctx)
}
