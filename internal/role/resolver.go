package role

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/shared"
)

// RepositoryPort defines the data access the resolver needs.
type RepositoryPort interface {
	ListActiveForUser(ctx context.Context, tenantID, userID int64) ([]Role, error)
	LoadPermissionsForRoles(ctx context.Context, roleIDs []int64) (map[int64][]permission.Permission, error)
	AssignRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error
	RemoveRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error
	ClearRoles(ctx context.Context, tenantID, userID int64) error
}

// Resolver computes the effective role and permission set for a user.
//
// The repository is the source of truth. The cache only shortcuts the lookup:
// any Get or Set failure is logged and treated as a miss, so outcomes never
// depend on cache health.
type Resolver struct {
	repo   RepositoryPort
	cache  Cache
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo RepositoryPort, cache Cache, logger *slog.Logger) *Resolver {
	return &Resolver{repo: repo, cache: cache, logger: logger}
}

func validateIDs(tenantID, userID int64) error {
	if tenantID <= 0 {
		return fmt.Errorf("tenant id must be positive: %w", shared.ErrValidation)
	}
	if userID <= 0 {
		return fmt.Errorf("user id must be positive: %w", shared.ErrValidation)
	}
	return nil
}

// Resolve returns the user's active roles and merged permission set.
//
// Role permissions are batch-loaded with one query regardless of role count.
// Roles without permissions keep an empty (non-nil) permission list.
func (r *Resolver) Resolve(ctx context.Context, tenantID, userID int64) (Resolution, error) {
	if err := validateIDs(tenantID, userID); err != nil {
		return Resolution{}, err
	}

	if roles, ok, err := r.cache.GetUserRoles(ctx, tenantID, userID); err != nil {
		r.logger.Warn("role cache read failed, falling through", slog.Any("error", err))
	} else if ok {
		return Resolution{Roles: roles, Permissions: mergePermissions(roles)}, nil
	}

	roles, err := r.repo.ListActiveForUser(ctx, tenantID, userID)
	if err != nil {
		return Resolution{}, err
	}

	roleIDs := make([]int64, len(roles))
	for i, role := range roles {
		roleIDs[i] = role.ID
	}
	grouped, err := r.repo.LoadPermissionsForRoles(ctx, roleIDs)
	if err != nil {
		return Resolution{}, err
	}
	for i := range roles {
		perms := grouped[roles[i].ID]
		if perms == nil {
			perms = []permission.Permission{}
		}
		roles[i].Permissions = perms
	}

	if err := r.cache.SetUserRoles(ctx, tenantID, userID, roles); err != nil {
		r.logger.Warn("role cache write failed", slog.Any("error", err))
	}

	return Resolution{Roles: roles, Permissions: mergePermissions(roles)}, nil
}

// HasPermission reports whether any of the user's active roles grants the
// permission code. When the exact code misses and parses as
// "resource:action", the "resource:*" wildcard is tried; the returned code is
// the one that actually matched.
func (r *Resolver) HasPermission(ctx context.Context, tenantID, userID int64, code string) (string, bool, error) {
	res, err := r.Resolve(ctx, tenantID, userID)
	if err != nil {
		return "", false, err
	}
	if holdsCode(res.Roles, code) {
		return code, true, nil
	}
	wildcard, ok := permission.WildcardCode(code)
	if !ok || wildcard == code {
		return "", false, nil
	}
	if holdsCode(res.Roles, wildcard) {
		return wildcard, true, nil
	}
	return "", false, nil
}

// AssignRoles adds role memberships and invalidates the cached snapshot
// before acknowledging. A failed invalidation fails the call: a stale
// snapshot that still grants access is a security defect, not a slow path.
func (r *Resolver) AssignRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error {
	if err := validateIDs(tenantID, userID); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return fmt.Errorf("at least one role id required: %w", shared.ErrValidation)
	}
	if err := r.repo.AssignRoles(ctx, tenantID, userID, roleIDs); err != nil {
		return err
	}
	return r.cache.InvalidateUserRoles(ctx, tenantID, userID)
}

// RemoveRoles drops role memberships, invalidating before acknowledging.
func (r *Resolver) RemoveRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error {
	if err := validateIDs(tenantID, userID); err != nil {
		return err
	}
	if len(roleIDs) == 0 {
		return fmt.Errorf("at least one role id required: %w", shared.ErrValidation)
	}
	if err := r.repo.RemoveRoles(ctx, tenantID, userID, roleIDs); err != nil {
		return err
	}
	return r.cache.InvalidateUserRoles(ctx, tenantID, userID)
}

// ClearRoles drops every membership, invalidating before acknowledging.
func (r *Resolver) ClearRoles(ctx context.Context, tenantID, userID int64) error {
	if err := validateIDs(tenantID, userID); err != nil {
		return err
	}
	if err := r.repo.ClearRoles(ctx, tenantID, userID); err != nil {
		return err
	}
	return r.cache.InvalidateUserRoles(ctx, tenantID, userID)
}

func holdsCode(roles []Role, code string) bool {
	for _, role := range roles {
		if !role.IsActive {
			continue
		}
		for _, p := range role.Permissions {
			if p.IsActive && p.Code == code {
				return true
			}
		}
	}
	return false
}

// mergePermissions flattens role permission lists into one set deduplicated
// by full structural equality of the record. Two rows that differ only in
// created_at intentionally do not collapse; timestamps are part of identity
// here, matching the persisted rows.
func mergePermissions(roles []Role) []permission.Permission {
	seen := make(map[permission.Permission]struct{})
	merged := make([]permission.Permission, 0)
	for _, role := range roles {
		for _, p := range role.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			merged = append(merged, p)
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Resource != merged[j].Resource {
			return merged[i].Resource < merged[j].Resource
		}
		if merged[i].Action != merged[j].Action {
			return merged[i].Action < merged[j].Action
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
