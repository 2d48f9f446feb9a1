package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kryptonation/restomate/internal/core/domain"
)

func newRoleService(roles ...*domain.Role) (*RoleService, *stubRoleRepo, *stubPermissionRepo) {
	roleRepo := newStubRoleRepo(roles...)
	permRepo := newStubPermissionRepo(
		&domain.Permission{ID: "perm-1", Name: "menus.update", Resource: "menus", Action: "update"},
		&domain.Permission{ID: "perm-2", Name: "orders.read", Resource: "orders", Action: "read"},
	)
	return NewRoleService(roleRepo, permRepo, zap.NewNop()), roleRepo, permRepo
}

func TestRoleCreate(t *testing.T) {
	svc, _, _ := newRoleService()
	ctx := context.Background()

	role, err := svc.Create(ctx, "restaurant_owner", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if role.IsSystem {
		t.Error("created roles must not be system roles")
	}
	if !role.IsActive {
		t.Error("created roles start active")
	}

	if _, err := svc.Create(ctx, "restaurant_owner", nil); !errors.Is(err, ErrRoleExists) {
		t.Fatalf("duplicate name: err = %v, want ErrRoleExists", err)
	}
}

func TestRoleSystemProtection(t *testing.T) {
	system := &domain.Role{ID: "role-admin", Name: "admin", IsActive: true, IsSystem: true}
	svc, _, _ := newRoleService(system)
	ctx := context.Background()

	name := "renamed"
	if _, err := svc.Update(ctx, "role-admin", &name, nil, nil); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("Update: err = %v, want ErrRoleProtected", err)
	}
	if err := svc.Delete(ctx, "role-admin"); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("Delete: err = %v, want ErrRoleProtected", err)
	}
	if err := svc.AttachPermissions(ctx, "role-admin", []string{"perm-1"}); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("AttachPermissions: err = %v, want ErrRoleProtected", err)
	}
	if err := svc.DetachPermissions(ctx, "role-admin", []string{"perm-1"}); !errors.Is(err, ErrRoleProtected) {
		t.Fatalf("DetachPermissions: err = %v, want ErrRoleProtected", err)
	}
}

func TestRoleAttachPermissionsIdempotent(t *testing.T) {
	role := &domain.Role{ID: "role-1", Name: "waiter", IsActive: true}
	svc, _, _ := newRoleService(role)
	ctx := context.Background()

	if err := svc.AttachPermissions(ctx, "role-1", []string{"perm-1", "perm-2"}); err != nil {
		t.Fatalf("AttachPermissions: %v", err)
	}
	// Re-attaching an already linked permission is a no-op.
	if err := svc.AttachPermissions(ctx, "role-1", []string{"perm-1"}); err != nil {
		t.Fatalf("repeat AttachPermissions: %v", err)
	}

	got, err := svc.Get(ctx, "role-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Permissions) != 2 {
		t.Errorf("role holds %d permissions, want 2", len(got.Permissions))
	}
}

func TestRoleAttachUnknownPermission(t *testing.T) {
	role := &domain.Role{ID: "role-1", Name: "waiter", IsActive: true}
	svc, roleRepo, _ := newRoleService(role)
	ctx := context.Background()

	err := svc.AttachPermissions(ctx, "role-1", []string{"perm-1", "perm-missing"})
	if !errors.Is(err, ErrPermissionNotFound) {
		t.Fatalf("err = %v, want ErrPermissionNotFound", err)
	}

	// Validation happens before any link is written.
	stored, _ := roleRepo.GetByID(ctx, "role-1")
	if len(stored.Permissions) != 0 {
		t.Errorf("role holds %d permissions, want 0 after rejected attach", len(stored.Permissions))
	}
}

func TestRoleDetachPermissions(t *testing.T) {
	role := &domain.Role{
		ID:       "role-1",
		Name:     "waiter",
		IsActive: true,
		Permissions: []domain.Permission{
			{ID: "perm-1"},
			{ID: "perm-2"},
		},
	}
	svc, _, _ := newRoleService(role)
	ctx := context.Background()

	if err := svc.DetachPermissions(ctx, "role-1", []string{"perm-1", "perm-absent"}); err != nil {
		t.Fatalf("DetachPermissions: %v", err)
	}

	got, _ := svc.Get(ctx, "role-1")
	if len(got.Permissions) != 1 || got.Permissions[0].ID != "perm-2" {
		t.Errorf("permissions after detach = %+v, want only perm-2", got.Permissions)
	}
}

func TestRoleUpdate(t *testing.T) {
	role := &domain.Role{ID: "role-1", Name: "waiter", IsActive: true}
	svc, _, _ := newRoleService(role)
	ctx := context.Background()

	inactive := false
	updated, err := svc.Update(ctx, "role-1", nil, nil, &inactive)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.IsActive {
		t.Error("role still active after deactivation")
	}
	if updated.Name != "waiter" {
		t.Errorf("name = %q, want unchanged", updated.Name)
	}
}

func TestRoleGetUnknown(t *testing.T) {
	svc, _, _ := newRoleService()

	if _, err := svc.Get(context.Background(), "ghost"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("err = %v, want ErrRoleNotFound", err)
	}
}

func TestCreatePermission(t *testing.T) {
	svc, _, _ := newRoleService()
	ctx := context.Background()

	permission, err := svc.CreatePermission(ctx, "reservations.create", "reservations", "create", nil)
	if err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}
	if permission.Resource != "reservations" || permission.Action != "create" {
		t.Errorf("pair = %s:%s, want reservations:create", permission.Resource, permission.Action)
	}

	if _, err := svc.CreatePermission(ctx, "", "reservations", "create", nil); err == nil {
		t.Fatal("expected an error for a blank name")
	}
}
