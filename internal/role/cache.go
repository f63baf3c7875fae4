package role

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache stores resolved role snapshots keyed by (tenant, user).
//
// The cache is read-through and best-effort: the resolver treats every Get or
// Set failure as a miss and falls through to the repository. Invalidate is the
// one exception; role-assignment mutations must not acknowledge success while
// a stale snapshot could still grant access.
type Cache interface {
	GetUserRoles(ctx context.Context, tenantID, userID int64) ([]Role, bool, error)
	SetUserRoles(ctx context.Context, tenantID, userID int64, roles []Role) error
	InvalidateUserRoles(ctx context.Context, tenantID, userID int64) error
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

func userRolesKey(tenantID, userID int64) string {
	return fmt.Sprintf("authz:roles:%d:%d", tenantID, userID)
}

// GetUserRoles loads the cached snapshot. The second return value reports a hit.
func (c *RedisCache) GetUserRoles(ctx context.Context, tenantID, userID int64) ([]Role, bool, error) {
	payload, err := c.client.Get(ctx, userRolesKey(tenantID, userID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("role cache: get: %w", err)
	}
	var roles []Role
	if err := json.Unmarshal(payload, &roles); err != nil {
		return nil, false, fmt.Errorf("role cache: decode: %w", err)
	}
	return roles, true, nil
}

// SetUserRoles stores the snapshot with the configured TTL.
func (c *RedisCache) SetUserRoles(ctx context.Context, tenantID, userID int64, roles []Role) error {
	payload, err := json.Marshal(roles)
	if err != nil {
		return fmt.Errorf("role cache: encode: %w", err)
	}
	if err := c.client.Set(ctx, userRolesKey(tenantID, userID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("role cache: set: %w", err)
	}
	return nil
}

// InvalidateUserRoles drops the cached snapshot for the user in the tenant.
func (c *RedisCache) InvalidateUserRoles(ctx context.Context, tenantID, userID int64) error {
	if err := c.client.Del(ctx, userRolesKey(tenantID, userID)).Err(); err != nil {
		return fmt.Errorf("role cache: invalidate: %w", err)
	}
	return nil
}
