package role

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/shared"
)

// CatalogPort defines the CRUD data access the role service needs.
type CatalogPort interface {
	Create(ctx context.Context, role Role) (Role, error)
	Update(ctx context.Context, role Role) (Role, error)
	Delete(ctx context.Context, tenantID, roleID int64) error
	GetByID(ctx context.Context, tenantID, roleID int64) (Role, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]Role, error)
	SetPermissions(ctx context.Context, tenantID, roleID int64, permissionIDs []int64) error
}

// Service handles role management business logic.
type Service struct {
	repo CatalogPort
}

// NewService builds Service instance.
func NewService(repo CatalogPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields needed to create a role.
type CreateInput struct {
	TenantID    int64
	Code        string
	Name        string
	Description string
	IsSystem    bool
}

// Create validates and inserts a new role.
func (s *Service) Create(ctx context.Context, in CreateInput) (Role, error) {
	if in.TenantID <= 0 {
		return Role{}, fmt.Errorf("tenant id must be positive: %w", shared.ErrValidation)
	}
	code := strings.TrimSpace(in.Code)
	if code == "" {
		return Role{}, fmt.Errorf("role code required: %w", shared.ErrValidation)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = code
	}
	return s.repo.Create(ctx, Role{
		TenantID:    in.TenantID,
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsSystem:    in.IsSystem,
		IsActive:    true,
		Permissions: []permission.Permission{},
	})
}

// UpdateInput carries the mutable role fields.
type UpdateInput struct {
	Name        string
	Description string
	IsActive    bool
}

// Update rewrites a role's descriptive fields and active flag.
func (s *Service) Update(ctx context.Context, tenantID, roleID int64, in UpdateInput) (Role, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Role{}, fmt.Errorf("role name required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, Role{
		ID:          roleID,
		TenantID:    tenantID,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		IsActive:    in.IsActive,
	})
}

// Delete removes a non-system role.
func (s *Service) Delete(ctx context.Context, tenantID, roleID int64) error {
	return s.repo.Delete(ctx, tenantID, roleID)
}

// Get fetches a role with its permissions.
func (s *Service) Get(ctx context.Context, tenantID, roleID int64) (Role, error) {
	return s.repo.GetByID(ctx, tenantID, roleID)
}

// List returns all roles in a tenant.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Role, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// SetPermissions replaces the permission set attached to a role. Cached user
// snapshots holding this role age out by TTL; per-user invalidation only
// happens on assignment mutations.
func (s *Service) SetPermissions(ctx context.Context, tenantID, roleID int64, permissionIDs []int64) error {
	return s.repo.SetPermissions(ctx, tenantID, roleID, permissionIDs)
}
