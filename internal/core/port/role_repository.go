package port

import (
	"context"

	"github.com/kryptonation/restomate/internal/core/domain"
)

// RoleFilter narrows role listings.
type RoleFilter struct {
	IsActive *bool
	Limit    int
	Offset   int
}

// RoleRepository handles role storage. Reads hydrate the permission set.
type RoleRepository interface {
	Create(ctx context.Context, role domain.Role) error
	GetByID(ctx context.Context, id string) (*domain.Role, error)
	GetByName(ctx context.Context, name string) (*domain.Role, error)
	List(ctx context.Context, filter RoleFilter) ([]domain.Role, error)
	Update(ctx context.Context, role domain.Role) error
	Delete(ctx context.Context, id string) error
	// AttachPermissions links permissions to a role; already-linked pairs are
	// skipped. DetachPermissions removes links; absent pairs are no-ops.
	AttachPermissions(ctx context.Context, roleID string, permissionIDs []string) error
	DetachPermissions(ctx context.Context, roleID string, permissionIDs []string) error
}

// PermissionRepository manages permission storage.
type PermissionRepository interface {
	Create(ctx context.Context, permission domain.Permission) error
	GetByID(ctx context.Context, id string) (*domain.Permission, error)
	GetByName(ctx context.Context, name string) (*domain.Permission, error)
	List(ctx context.Context) ([]domain.Permission, error)
	ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error)
}
