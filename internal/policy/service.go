package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/noah-isme/aegis/internal/shared"
)

// AdminRepositoryPort defines the CRUD data access the policy service needs.
type AdminRepositoryPort interface {
	Create(ctx context.Context, p Policy) (Policy, error)
	Update(ctx context.Context, p Policy) (Policy, error)
	Delete(ctx context.Context, tenantID, policyID int64) error
	GetByID(ctx context.Context, tenantID, policyID int64) (Policy, error)
	ListByTenant(ctx context.Context, tenantID int64) ([]Policy, error)
}

// Service handles policy administration.
//
// Mutations invalidate the tenant policy cache best-effort. Callers must not
// assume immediate cache consistency; the store's TTL bounds staleness and a
// failed invalidation is only logged.
type Service struct {
	repo   AdminRepositoryPort
	cache  Cache
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo AdminRepositoryPort, cache Cache, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Input carries the writable fields of a policy.
type Input struct {
	Name        string
	Description string
	Effect      Effect
	Subjects    []string
	Resources   []string
	Actions     []string
	Conditions  map[string]any
	Priority    int
	IsActive    bool
}

func validateInput(in Input) error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("policy name required: %w", shared.ErrValidation)
	}
	if !in.Effect.Valid() {
		return fmt.Errorf("policy effect must be %q or %q: %w", EffectAllow, EffectDeny, shared.ErrValidation)
	}
	if len(in.Subjects) == 0 || len(in.Resources) == 0 || len(in.Actions) == 0 {
		return fmt.Errorf("policy subjects, resources and actions must be non-empty: %w", shared.ErrValidation)
	}
	return nil
}

// Create validates and inserts a new policy.
func (s *Service) Create(ctx context.Context, tenantID int64, in Input) (Policy, error) {
	if tenantID <= 0 {
		return Policy{}, fmt.Errorf("tenant id must be positive: %w", shared.ErrValidation)
	}
	if err := validateInput(in); err != nil {
		return Policy{}, err
	}
	created, err := s.repo.Create(ctx, Policy{
		TenantID:    tenantID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Effect:      in.Effect,
		Subjects:    in.Subjects,
		Resources:   in.Resources,
		Actions:     in.Actions,
		Conditions:  in.Conditions,
		Priority:    in.Priority,
		IsActive:    in.IsActive,
	})
	if err != nil {
		return Policy{}, err
	}
	s.invalidate(ctx, tenantID)
	return created, nil
}

// Update rewrites a policy.
func (s *Service) Update(ctx context.Context, tenantID, policyID int64, in Input) (Policy, error) {
	if err := validateInput(in); err != nil {
		return Policy{}, err
	}
	updated, err := s.repo.Update(ctx, Policy{
		ID:          policyID,
		TenantID:    tenantID,
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		Effect:      in.Effect,
		Subjects:    in.Subjects,
		Resources:   in.Resources,
		Actions:     in.Actions,
		Conditions:  in.Conditions,
		Priority:    in.Priority,
		IsActive:    in.IsActive,
	})
	if err != nil {
		return Policy{}, err
	}
	s.invalidate(ctx, tenantID)
	return updated, nil
}

// Delete removes a policy.
func (s *Service) Delete(ctx context.Context, tenantID, policyID int64) error {
	if err := s.repo.Delete(ctx, tenantID, policyID); err != nil {
		return err
	}
	s.invalidate(ctx, tenantID)
	return nil
}

// Get fetches a policy.
func (s *Service) Get(ctx context.Context, tenantID, policyID int64) (Policy, error) {
	return s.repo.GetByID(ctx, tenantID, policyID)
}

// List returns every policy in the tenant in evaluation order.
func (s *Service) List(ctx context.Context, tenantID int64) ([]Policy, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

func (s *Service) invalidate(ctx context.Context, tenantID int64) {
	if err := s.cache.InvalidateTenantPolicies(ctx, tenantID); err != nil {
		s.logger.Warn("policy cache invalidation failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
	}
}
