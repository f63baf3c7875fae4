package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/aegis/internal/policy"
)

// PolicyWarmupJob re-primes tenant policy caches so the first check after a
// cold start or mutation burst does not pay the load.
type PolicyWarmupJob struct {
	Store  *policy.Store
	Cache  policy.Cache
	Pool   *pgxpool.Pool
	Logger *slog.Logger
}

// NewPolicyWarmupJob wires dependencies for the warmup handler.
func NewPolicyWarmupJob(store *policy.Store, cache policy.Cache, pool *pgxpool.Pool, logger *slog.Logger) *PolicyWarmupJob {
	return &PolicyWarmupJob{Store: store, Cache: cache, Pool: pool, Logger: logger}
}

// Handle processes TaskPolicyWarmup tasks.
func (j *PolicyWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("policy warmup: handler not configured")
	}
	var payload PolicyWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tenantIDs, err := j.tenants(ctx, payload.TenantID)
	if err != nil {
		j.Logger.Error("load warmup tenants", slog.Any("error", err))
		return err
	}

	for _, tenantID := range tenantIDs {
		// Drop the stale entry first so ActivePolicies reloads from Postgres.
		if err := j.Cache.InvalidateTenantPolicies(ctx, tenantID); err != nil {
			j.Logger.Warn("warmup invalidation failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		}
		if _, err := j.Store.ActivePolicies(ctx, tenantID); err != nil {
			j.Logger.Error("warmup load failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			return err
		}
	}
	j.Logger.Info("policy warmup complete", slog.Int("tenants", len(tenantIDs)))
	return nil
}

func (j *PolicyWarmupJob) tenants(ctx context.Context, tenantID int64) ([]int64, error) {
	if tenantID > 0 {
		return []int64{tenantID}, nil
	}
	rows, err := j.Pool.Query(ctx, `SELECT DISTINCT tenant_id FROM policies WHERE is_active = TRUE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
