package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"

	"github.com/kryptonation/restomate/internal/core/domain"
	"github.com/kryptonation/restomate/internal/core/port"
)

// AuditLogRepository appends audit entries to an append-only table.
type AuditLogRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

var _ port.AuditLogRepository = (*AuditLogRepository)(nil)

// NewAuditLogRepository constructs a repository backed by any executor that
// satisfies pgExecutor.
func NewAuditLogRepository(exec pgExecutor) *AuditLogRepository {
	return &AuditLogRepository{
		exec:    exec,
		builder: newBuilder(),
	}
}

// Append inserts an audit entry.
func (r *AuditLogRepository) Append(ctx context.Context, entry domain.AuditLog) error {
	stmt, args, err := r.builder.Insert("auth.audit_logs").
		Columns("id", "user_id", "action", "resource", "resource_id", "details", "ip", "user_agent", "created_at").
		Values(
			entry.ID,
			entry.UserID,
			entry.Action,
			entry.Resource,
			entry.ResourceID,
			entry.Details,
			entry.IP,
			entry.UserAgent,
			entry.CreatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit log sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
