package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/aegis/internal/shared"
)

// RepositoryPort defines data access methods for the permission catalog.
type RepositoryPort interface {
	Create(ctx context.Context, p Permission) (Permission, error)
	Update(ctx context.Context, p Permission) (Permission, error)
	Deactivate(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (Permission, error)
	GetByCode(ctx context.Context, code string) (Permission, error)
	List(ctx context.Context, filter ListFilter) ([]Permission, shared.Pagination, error)
}

// Service handles permission catalog business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput carries the fields needed to register a permission.
type CreateInput struct {
	Code        string
	Name        string
	Description string
	Module      string
}

// Create validates and registers a new permission. The code must have the
// "resource:action" shape; the resource and action columns are derived from it.
func (s *Service) Create(ctx context.Context, in CreateInput) (Permission, error) {
	code := strings.TrimSpace(in.Code)
	resource, action, ok := ParseCode(code)
	if !ok {
		return Permission{}, fmt.Errorf("permission code %q must be \"resource:action\": %w", code, shared.ErrValidation)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = code
	}
	return s.repo.Create(ctx, Permission{
		Code:        code,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Resource:    resource,
		Action:      action,
		Module:      strings.TrimSpace(in.Module),
		IsActive:    true,
	})
}

// UpdateInput carries the mutable permission fields.
type UpdateInput struct {
	Name        string
	Description string
	Module      string
	IsActive    bool
}

// Update rewrites a permission's descriptive fields and active flag.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (Permission, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Permission{}, fmt.Errorf("permission name required: %w", shared.ErrValidation)
	}
	return s.repo.Update(ctx, Permission{
		ID:          id,
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Module:      strings.TrimSpace(in.Module),
		IsActive:    in.IsActive,
	})
}

// Deactivate marks a permission inactive.
func (s *Service) Deactivate(ctx context.Context, id int64) error {
	return s.repo.Deactivate(ctx, id)
}

// Delete removes a permission.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Get fetches a permission by ID.
func (s *Service) Get(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByCode fetches a permission by code.
func (s *Service) GetByCode(ctx context.Context, code string) (Permission, error) {
	return s.repo.GetByCode(ctx, code)
}

// List returns permissions matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Permission, shared.Pagination, error) {
	return s.repo.List(ctx, filter)
}
