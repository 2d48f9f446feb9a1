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

// PermissionRepository implements port.PermissionRepository using PostgreSQL.
type PermissionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.PermissionRepository = (*PermissionRepository)(nil)

// NewPermissionRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewPermissionRepository(exec pgExecutor) *PermissionRepository {
	return &PermissionRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

var permissionColumns = []string{
	"id",
	"name",
	"resource",
	"action",
	"description",
	"created_at",
}

func scanPermission(row pgx.Row) (*domain.Permission, error) {
	var permission domain.Permission
	if err := row.Scan(
		&permission.ID,
		&permission.Name,
		&permission.Resource,
		&permission.Action,
		&permission.Description,
		&permission.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan permission: %w", err)
	}
	return &permission, nil
}

// Create inserts a new permission row.
func (r *PermissionRepository) Create(ctx context.Context, permission domain.Permission) error {
	stmt, args, err := r.builder.Insert("auth.permissions").
		Columns(permissionColumns...).
		Values(
			permission.ID,
			permission.Name,
			permission.Resource,
			permission.Action,
			permission.Description,
			permission.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert permission sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert permission: %w", err)
	}
	return nil
}

// GetByID retrieves a permission by identifier.
func (r *PermissionRepository) GetByID(ctx context.Context, id string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"id": id})
}

// GetByName retrieves a permission by its unique name.
func (r *PermissionRepository) GetByName(ctx context.Context, name string) (*domain.Permission, error) {
	return r.getBy(ctx, squirrel.Eq{"name": name})
}

func (r *PermissionRepository) getBy(ctx context.Context, cond squirrel.Eq) (*domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns...).
		From("auth.permissions").
		Where(cond).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select permission sql: %w", err)
	}

	return scanPermission(r.exec.QueryRow(ctx, stmt, args...))
}

// List returns every permission ordered by resource then action.
func (r *PermissionRepository) List(ctx context.Context) ([]domain.Permission, error) {
	stmt, args, err := r.builder.Select(permissionColumns...).
		From("auth.permissions").
		OrderBy("resource ASC", "action ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list permissions sql: %w", err)
	}

	return r.queryPermissions(ctx, stmt, args...)
}

// ListByRole returns the permissions linked to a role.
func (r *PermissionRepository) ListByRole(ctx context.Context, roleID string) ([]domain.Permission, error) {
	columns := make([]string, len(permissionColumns))
	for i, col := range permissionColumns {
		columns[i] = "p." + col
	}

	stmt, args, err := r.builder.Select(columns...).
		From("auth.permissions p").
		Join("auth.role_permissions rp ON rp.permission_id = p.id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.resource ASC", "p.action ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list role permissions sql: %w", err)
	}

	return r.queryPermissions(ctx, stmt, args...)
}

func (r *PermissionRepository) queryPermissions(ctx context.Context, stmt string, args ...any) ([]domain.Permission, error) {
	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query permissions: %w", err)
	}
	defer rows.Close()

	var permissions []domain.Permission
	for rows.Next() {
		permission, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		permissions = append(permissions, *permission)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate permissions: %w", err)
	}
	return permissions, nil
}
