package role

import (
	"time"

	"github.com/noah-isme/aegis/internal/permission"
)

// Role represents a tenant-scoped permission grouping.
//
// Permissions is always a complete list once a Role is materialized: an empty
// slice, never nil. The resolver upholds this even under batch loading.
type Role struct {
	ID          int64                   `json:"id"`
	TenantID    int64                   `json:"tenant_id"`
	Code        string                  `json:"code"`
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	IsSystem    bool                    `json:"is_system"`
	IsActive    bool                    `json:"is_active"`
	Permissions []permission.Permission `json:"permissions"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// Resolution is the effective role and permission set for a user in a tenant.
type Resolution struct {
	Roles       []Role                  `json:"roles"`
	Permissions []permission.Permission `json:"permissions"`
}

// Assignment links a user to a role within a tenant. Existence is membership;
// there is no independent identity.
type Assignment struct {
	UserID   int64
	TenantID int64
	RoleID   int64
}
