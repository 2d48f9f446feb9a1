package domain

import "time"

// Permission defines a named capability. The (Resource, Action) pair is the
// authorization unit; Name is a human-readable label.
type Permission struct {
	ID          string
	Name        string
	Resource    string
	Action      string
	Description *string
	CreatedAt   time.Time
}

// Role groups permissions. System roles are protected from mutation and deletion.
type Role struct {
	ID          string
	Name        string
	Description *string
	IsActive    bool
	IsSystem    bool
	Permissions []Permission
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Grants reports whether the role carries a permission matching resource and
// action exactly. Inactive roles grant nothing.
func (r Role) Grants(resource, action string) bool {
	if !r.IsActive {
		return false
	}
	for _, p := range r.Permissions {
		if p.Resource == resource && p.Action == action {
			return true
		}
	}
	return false
}

// HasPermissionID reports whether the permission is already attached to the role.
func (r Role) HasPermissionID(permissionID string) bool {
	for _, p := range r.Permissions {
		if p.ID == permissionID {
			return true
		}
	}
	return false
}
