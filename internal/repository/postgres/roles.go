package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
	"github.com/kryptonation/restomate/internal/repository"
)

// RoleRepository implements port.RoleRepository using PostgreSQL. Reads
// hydrate the role's permission set.
type RoleRepository struct {
	exec        pgExecutor
	builder     squirrel.StatementBuilderType
	permissions *PermissionRepository
}

var _ port.RoleRepository = (*RoleRepository)(nil)

// NewRoleRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewRoleRepository(exec pgExecutor) *RoleRepository {
	return &RoleRepository{
		exec:        exec,
		builder:     newBuilder(),
		permissions: NewPermissionRepository(exec),
	}
}

var roleColumns = []string{
	"id",
	"name",
	"description",
	"is_active",
	"is_system",
	"created_at",
	"updated_at",
}

func scanRole(row pgx.Row) (*domain.Role, error) {
	var role domain.Role
	if err := row.Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.IsActive,
		&role.IsSystem,
		&role.CreatedAt,
		&role.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan role: %w", err)
	}
	return &role, nil
}

// Create inserts a new role row.
func (r *RoleRepository) Create(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Insert("auth.roles").
		Columns(roleColumns...).
		Values(
			role.ID,
			role.Name,
			role.Description,
			role.IsActive,
			role.IsSystem,
			role.CreatedAt,
			role.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert role sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// GetByID retrieves a role with its permissions.
func (r *RoleRepository) GetByID(ctx context.Context, id string) (*domain.Role, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByName retrieves a role with its permissions.
func (r *RoleRepository) GetByName(ctx context.Context, name string) (*domain.Role, error) {
	return r.getBy(ctx, squirrel.Eq{"name": name})
}

func (r *RoleRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.Role, error) {
	stmt, args, err := r.builder.Select(roleColumns...).
		From("auth.roles").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select role sql: %w", err)
	}

	role, err := scanRole(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		return nil, err
	}

	permissions, err := r.permissions.ListByRole(ctx, role.ID)
	if err != nil {
		return nil, err
	}
	role.Permissions = permissions
	return role, nil
}

// List returns roles matching the filter, without permission hydration.
func (r *RoleRepository) List(ctx context.Context, filter port.RoleFilter) ([]domain.Role, error) {
	query := r.builder.Select(roleColumns...).
		From("auth.roles").
		OrderBy("name ASC")
	if filter.IsActive != nil {
		query = query.Where(squirrel.Eq{"is_active": *filter.IsActive})
	}
	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		query = query.Offset(uint64(filter.Offset))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list roles sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

// Update persists mutable role fields.
func (r *RoleRepository) Update(ctx context.Context, role domain.Role) error {
	stmt, args, err := r.builder.Update("auth.roles").
		Set("name", role.Name).
		Set("description", role.Description).
		Set("is_active", role.IsActive).
		Set("updated_at", role.UpdatedAt).
		Where(squirrel.Eq{"id": role.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("update role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Delete removes the role and its permission links.
func (r *RoleRepository) Delete(ctx context.Context, id string) error {
	linkStmt, linkArgs, err := r.builder.Delete("auth.role_permissions").
		Where(squirrel.Eq{"role_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role permissions sql: %w", err)
	}
	if _, err := r.exec.Exec(ctx, linkStmt, linkArgs...); err != nil {
		return fmt.Errorf("delete role permissions: %w", err)
	}

	stmt, args, err := r.builder.Delete("auth.roles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete role sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AttachPermissions links permissions to the role, skipping pairs that
// already exist.
func (r *RoleRepository) AttachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	insert := r.builder.Insert("auth.role_permissions").
		Columns("role_id", "permission_id")
	for _, permissionID := range permissionIDs {
		insert = insert.Values(roleID, permissionID)
	}

	stmt, args, err := insert.Suffix("ON CONFLICT (role_id, permission_id) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("build attach permissions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("attach permissions: %w", err)
	}
	return nil
}

// DetachPermissions removes permission links; absent pairs are no-ops.
func (r *RoleRepository) DetachPermissions(ctx context.Context, roleID string, permissionIDs []string) error {
	if len(permissionIDs) == 0 {
		return nil
	}

	stmt, args, err := r.builder.Delete("auth.role_permissions").
		Where(squirrel.Eq{"role_id": roleID, "permission_id": permissionIDs}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build detach permissions sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("detach permissions: %w", err)
	}
	return nil
}
