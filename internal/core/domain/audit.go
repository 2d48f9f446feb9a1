package domain

import "time"

// AuditLog is an append-only record of a security-relevant action. Entries are
// written as a side effect and never mutated or read by the auth core.
type AuditLog struct {
	ID         string
	UserID     *string
	Action     string
	Resource   string
	ResourceID *string
	Details    *string
	IP         *string
	UserAgent  *string
	CreatedAt  time.Time
}
