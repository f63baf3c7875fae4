package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// RepositoryPort defines data access for decision logs.
type RepositoryPort interface {
	Insert(ctx context.Context, log DecisionLog) error
	ListByTenant(ctx context.Context, tenantID int64, limit int) ([]DecisionLog, error)
}

// Service persists the decision audit trail.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Record stores a decision log entry, assigning id and timestamp when unset.
func (s *Service) Record(ctx context.Context, log DecisionLog) error {
	if log.TenantID <= 0 || log.UserID <= 0 {
		return errors.New("audit: decision log requires tenant and user")
	}
	if log.ID == uuid.Nil {
		log.ID = uuid.New()
	}
	if log.OccurredAt.IsZero() {
		log.OccurredAt = time.Now().UTC()
	}
	return s.repo.Insert(ctx, log)
}

// List returns the newest decisions for a tenant.
func (s *Service) List(ctx context.Context, tenantID int64, limit int) ([]DecisionLog, error) {
	return s.repo.ListByTenant(ctx, tenantID, limit)
}
