package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/kryptonation/restomate/internal/core/port"
)

// BackupCodeRepository stores 2FA backup codes as individual rows so a code
// can be spent with a single DELETE.
type BackupCodeRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.BackupCodeRepository = (*BackupCodeRepository)(nil)

// NewBackupCodeRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewBackupCodeRepository(exec pgExecutor) *BackupCodeRepository {
	return &BackupCodeRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Replace drops the user's existing codes and stores the new set.
func (r *BackupCodeRepository) Replace(ctx context.Context, userID string, codes []string) error {
	if err := r.DeleteForUser(ctx, userID); err != nil {
		return err
	}
	if len(codes) == 0 {
		return nil
	}

	now := time.Now().UTC()
	insert := r.builder.Insert("auth.user_backup_codes").
		Columns("id", "user_id", "code", "created_at")
	for _, code := range codes {
		insert = insert.Values(uuid.NewString(), userID, code, now)
	}

	stmt, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build insert backup codes sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert backup codes: %w", err)
	}
	return nil
}

// Consume deletes the matching code. The DELETE is the consumption check:
// zero rows affected means the code was unknown or already spent, and two
// concurrent redeemers cannot both win.
func (r *BackupCodeRepository) Consume(ctx context.Context, userID string, code string) (bool, error) {
	stmt, args, err := r.builder.Delete("auth.user_backup_codes").
		Where(squirrel.Eq{"user_id": userID, "code": code}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build consume backup code sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("consume backup code: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteForUser removes every code belonging to the user.
func (r *BackupCodeRepository) DeleteForUser(ctx context.Context, userID string) error {
	stmt, args, err := r.builder.Delete("auth.user_backup_codes").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete backup codes sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete backup codes: %w", err)
	}
	return nil
}

// CountForUser returns how many unspent codes the user still holds.
func (r *BackupCodeRepository) CountForUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("auth.user_backup_codes").
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count backup codes sql: %w", err)
	}

	var count int
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count backup codes: %w", err)
	}
	return count, nil
}
