package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence for decision logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Insert persists a decision log entry.
func (r *Repository) Insert(ctx context.Context, log DecisionLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO decision_logs (id, tenant_id, user_id, resource, action, allowed, source, denied_reason, matched_permission, matched_policy_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		log.ID, log.TenantID, log.UserID, log.Resource, log.Action, log.Allowed, log.Source,
		log.DeniedReason, log.MatchedPermission, log.MatchedPolicyID, log.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert decision log: %w", err)
	}
	return nil
}

// ListByTenant returns the newest decisions for a tenant.
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64, limit int) ([]DecisionLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, user_id, resource, action, allowed, source, denied_reason, matched_permission, matched_policy_id, occurred_at
		FROM decision_logs
		WHERE tenant_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2`,
		tenantID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: list decision logs: %w", err)
	}
	defer rows.Close()

	var logs []DecisionLog
	for rows.Next() {
		var log DecisionLog
		if err := rows.Scan(&log.ID, &log.TenantID, &log.UserID, &log.Resource, &log.Action, &log.Allowed, &log.Source, &log.DeniedReason, &log.MatchedPermission, &log.MatchedPolicyID, &log.OccurredAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}
