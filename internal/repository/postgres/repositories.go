package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories bundles the PostgreSQL-backed repositories sharing one pool.
type Repositories struct {
	Users       *UserRepository
	BackupCodes *BackupCodeRepository
	Roles       *RoleRepository
	Permissions *PermissionRepository
	Tokens      *TokenRepository
	AuditLogs   *AuditLogRepository
}

// NewRepositories wires every repository on top of the supplied pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:       NewUserRepository(pool),
		BackupCodes: NewBackupCodeRepository(pool),
		Roles:       NewRoleRepository(pool),
		Permissions: NewPermissionRepository(pool),
		Tokens:      NewTokenRepository(pool),
		AuditLogs:   NewAuditLogRepository(pool),
	}
}
