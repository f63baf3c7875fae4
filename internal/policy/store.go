package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/aegis/internal/shared"
)

// Cache stores the active policy list per tenant.
//
// Best-effort contract: every Get or Set failure is treated as a miss by the
// store, never surfaced to callers.
type Cache interface {
	GetTenantPolicies(ctx context.Context, tenantID int64) ([]Policy, bool, error)
	SetTenantPolicies(ctx context.Context, tenantID int64, policies []Policy) error
	InvalidateTenantPolicies(ctx context.Context, tenantID int64) error
}

// RedisCache implements Cache on Redis with JSON payloads.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache instantiates the cache helper.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func tenantPoliciesKey(tenantID int64) string {
	return fmt.Sprintf("authz:policies:%d", tenantID)
}

// GetTenantPolicies loads the cached policy list. The second return value
// reports a hit.
func (c *RedisCache) GetTenantPolicies(ctx context.Context, tenantID int64) ([]Policy, bool, error) {
	payload, err := c.client.Get(ctx, tenantPoliciesKey(tenantID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("policy cache: get: %w", err)
	}
	var policies []Policy
	if err := json.Unmarshal(payload, &policies); err != nil {
		return nil, false, fmt.Errorf("policy cache: decode: %w", err)
	}
	return policies, true, nil
}

// SetTenantPolicies stores the policy list with the configured TTL.
func (c *RedisCache) SetTenantPolicies(ctx context.Context, tenantID int64, policies []Policy) error {
	payload, err := json.Marshal(policies)
	if err != nil {
		return fmt.Errorf("policy cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, tenantPoliciesKey(tenantID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("policy cache: set: %w", err)
	}
	return nil
}

// InvalidateTenantPolicies drops the cached policy list for the tenant.
func (c *RedisCache) InvalidateTenantPolicies(ctx context.Context, tenantID int64) error {
	if err := c.client.Del(ctx, tenantPoliciesKey(tenantID)).Err(); err != nil {
		return fmt.Errorf("policy cache: invalidate: %w", err)
	}
	return nil
}

// RepositoryPort defines the data access the store needs.
type RepositoryPort interface {
	ListActiveByTenant(ctx context.Context, tenantID int64) ([]Policy, error)
}

// Store serves active policy lists for evaluation, read-through cached.
type Store struct {
	repo   RepositoryPort
	cache  Cache
	logger *slog.Logger
}

// NewStore constructs a Store.
func NewStore(repo RepositoryPort, cache Cache, logger *slog.Logger) *Store {
	return &Store{repo: repo, cache: cache, logger: logger}
}

// ActivePolicies returns the tenant's active policies in evaluation order
// (priority descending, id ascending on ties). The cache never changes
// outcomes: failures fall through to the repository, writes are best-effort.
func (s *Store) ActivePolicies(ctx context.Context, tenantID int64) ([]Policy, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("tenant id must be positive: %w", shared.ErrValidation)
	}

	if policies, ok, err := s.cache.GetTenantPolicies(ctx, tenantID); err != nil {
		s.logger.Warn("policy cache read failed, falling through", slog.Any("error", err))
	} else if ok {
		return policies, nil
	}

	policies, err := s.repo.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetTenantPolicies(ctx, tenantID, policies); err != nil {
		s.logger.Warn("policy cache write failed", slog.Any("error", err))
	}

	return policies, nil
}
