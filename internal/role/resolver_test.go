package role

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/shared"
)

type memoryRepo struct {
	roles       map[int64][]Role // keyed by userID, single-tenant fixtures
	permissions map[int64][]permission.Permission

	listCalls int
	loadCalls int
	lastIDs   []int64

	assignErr error
}

func (m *memoryRepo) ListActiveForUser(_ context.Context, _, userID int64) ([]Role, error) {
	m.listCalls++
	roles := make([]Role, len(m.roles[userID]))
	copy(roles, m.roles[userID])
	return roles, nil
}

func (m *memoryRepo) LoadPermissionsForRoles(_ context.Context, roleIDs []int64) (map[int64][]permission.Permission, error) {
	m.loadCalls++
	m.lastIDs = roleIDs
	out := make(map[int64][]permission.Permission, len(roleIDs))
	for _, id := range roleIDs {
		out[id] = m.permissions[id]
	}
	return out, nil
}

func (m *memoryRepo) AssignRoles(_ context.Context, _, userID int64, roleIDs []int64) error {
	if m.assignErr != nil {
		return m.assignErr
	}
	for _, id := range roleIDs {
		m.roles[userID] = append(m.roles[userID], Role{ID: id, IsActive: true})
	}
	return nil
}

func (m *memoryRepo) RemoveRoles(_ context.Context, _, _ int64, _ []int64) error { return nil }

func (m *memoryRepo) ClearRoles(_ context.Context, _, userID int64) error {
	delete(m.roles, userID)
	return nil
}

type memoryCache struct {
	snapshots map[string][]Role

	getErr        error
	setErr        error
	invalidateErr error
	invalidations int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{snapshots: make(map[string][]Role)}
}

func (c *memoryCache) GetUserRoles(_ context.Context, tenantID, userID int64) ([]Role, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	roles, ok := c.snapshots[userRolesKey(tenantID, userID)]
	return roles, ok, nil
}

func (c *memoryCache) SetUserRoles(_ context.Context, tenantID, userID int64, roles []Role) error {
	if c.setErr != nil {
		return c.setErr
	}
	c.snapshots[userRolesKey(tenantID, userID)] = roles
	return nil
}

func (c *memoryCache) InvalidateUserRoles(_ context.Context, tenantID, userID int64) error {
	if c.invalidateErr != nil {
		return c.invalidateErr
	}
	c.invalidations++
	delete(c.snapshots, userRolesKey(tenantID, userID))
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func perm(id int64, resource, action string) permission.Permission {
	return permission.Permission{
		ID:       id,
		Code:     resource + ":" + action,
		Name:     resource + " " + action,
		Resource: resource,
		Action:   action,
		IsActive: true,
	}
}

func TestResolveBatchesPermissionLoad(t *testing.T) {
	repo := &memoryRepo{
		roles: map[int64][]Role{
			7: {
				{ID: 1, Code: "admin", IsActive: true},
				{ID: 2, Code: "viewer", IsActive: true},
				{ID: 3, Code: "auditor", IsActive: true},
			},
		},
		permissions: map[int64][]permission.Permission{
			1: {perm(100, "orders", "read"), perm(101, "orders", "write")},
			2: {perm(100, "orders", "read")},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	res, err := resolver.Resolve(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, res.Roles, 3)
	require.Equal(t, 1, repo.loadCalls, "permission load must be a single batched query")
	require.Equal(t, []int64{1, 2, 3}, repo.lastIDs)

	// Role 3 has no permissions: empty, not nil.
	require.NotNil(t, res.Roles[2].Permissions)
	require.Empty(t, res.Roles[2].Permissions)
}

func TestResolveMergesAndSortsPermissions(t *testing.T) {
	repo := &memoryRepo{
		roles: map[int64][]Role{
			7: {
				{ID: 1, Code: "admin", IsActive: true},
				{ID: 2, Code: "viewer", IsActive: true},
			},
		},
		permissions: map[int64][]permission.Permission{
			1: {perm(102, "orders", "write"), perm(100, "invoices", "read")},
			2: {perm(100, "invoices", "read"), perm(101, "orders", "read")},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	res, err := resolver.Resolve(context.Background(), 1, 7)
	require.NoError(t, err)

	codes := make([]string, len(res.Permissions))
	for i, p := range res.Permissions {
		codes[i] = p.Code
	}
	require.Equal(t, []string{"invoices:read", "orders:read", "orders:write"}, codes)
}

func TestResolveDedupByFullRecord(t *testing.T) {
	base := perm(100, "orders", "read")
	variant := base
	variant.CreatedAt = base.CreatedAt.Add(time.Hour)

	repo := &memoryRepo{
		roles: map[int64][]Role{
			7: {
				{ID: 1, IsActive: true},
				{ID: 2, IsActive: true},
			},
		},
		permissions: map[int64][]permission.Permission{
			1: {base},
			2: {variant},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	res, err := resolver.Resolve(context.Background(), 1, 7)
	require.NoError(t, err)
	// Records differing only in created_at are distinct on purpose.
	require.Len(t, res.Permissions, 2)
}

func TestResolveUsesCachedSnapshot(t *testing.T) {
	repo := &memoryRepo{roles: map[int64][]Role{}, permissions: map[int64][]permission.Permission{}}
	cache := newMemoryCache()
	cache.snapshots[userRolesKey(1, 7)] = []Role{
		{ID: 1, Code: "admin", IsActive: true, Permissions: []permission.Permission{perm(100, "orders", "read")}},
	}
	resolver := NewResolver(repo, cache, testLogger())

	res, err := resolver.Resolve(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, res.Roles, 1)
	require.Equal(t, 0, repo.listCalls, "cache hit must not touch the repository")
}

func TestResolveSurvivesCacheFailures(t *testing.T) {
	repo := &memoryRepo{
		roles:       map[int64][]Role{7: {{ID: 1, Code: "admin", IsActive: true}}},
		permissions: map[int64][]permission.Permission{1: {perm(100, "orders", "read")}},
	}
	cache := newMemoryCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis still down")
	resolver := NewResolver(repo, cache, testLogger())

	res, err := resolver.Resolve(context.Background(), 1, 7)
	require.NoError(t, err)
	require.Len(t, res.Roles, 1)
	require.Equal(t, "orders:read", res.Permissions[0].Code)
}

func TestResolveValidatesIDs(t *testing.T) {
	resolver := NewResolver(&memoryRepo{}, newMemoryCache(), testLogger())

	_, err := resolver.Resolve(context.Background(), 0, 7)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = resolver.Resolve(context.Background(), 1, -1)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestHasPermissionWildcardFallback(t *testing.T) {
	repo := &memoryRepo{
		roles: map[int64][]Role{7: {{ID: 1, IsActive: true}}},
		permissions: map[int64][]permission.Permission{
			1: {perm(100, "orders", "*")},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	matched, ok, err := resolver.HasPermission(context.Background(), 1, 7, "orders:delete")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "orders:*", matched)
}

func TestHasPermissionExactBeatsWildcard(t *testing.T) {
	repo := &memoryRepo{
		roles: map[int64][]Role{7: {{ID: 1, IsActive: true}}},
		permissions: map[int64][]permission.Permission{
			1: {perm(100, "orders", "read"), perm(101, "orders", "*")},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	matched, ok, err := resolver.HasPermission(context.Background(), 1, 7, "orders:read")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "orders:read", matched)
}

func TestHasPermissionMalformedCodeNoWildcard(t *testing.T) {
	repo := &memoryRepo{
		roles:       map[int64][]Role{7: {{ID: 1, IsActive: true}}},
		permissions: map[int64][]permission.Permission{1: {perm(100, "orders", "*")}},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	for _, code := range []string{"orders", "orders:read:extra", ":read", "orders:"} {
		_, ok, err := resolver.HasPermission(context.Background(), 1, 7, code)
		require.NoError(t, err, code)
		require.False(t, ok, code)
	}
}

func TestHasPermissionIgnoresInactive(t *testing.T) {
	inactivePerm := perm(100, "orders", "read")
	inactivePerm.IsActive = false

	repo := &memoryRepo{
		roles: map[int64][]Role{7: {
			{ID: 1, IsActive: true},
			{ID: 2, IsActive: false},
		}},
		permissions: map[int64][]permission.Permission{
			1: {inactivePerm},
			2: {perm(101, "invoices", "read")},
		},
	}
	resolver := NewResolver(repo, newMemoryCache(), testLogger())

	_, ok, err := resolver.HasPermission(context.Background(), 1, 7, "orders:read")
	require.NoError(t, err)
	require.False(t, ok, "inactive permission must not grant")

	_, ok, err = resolver.HasPermission(context.Background(), 1, 7, "invoices:read")
	require.NoError(t, err)
	require.False(t, ok, "inactive role must not grant")
}

func TestAssignRolesInvalidatesBeforeAcknowledging(t *testing.T) {
	repo := &memoryRepo{roles: map[int64][]Role{}, permissions: map[int64][]permission.Permission{}}
	cache := newMemoryCache()
	cache.snapshots[userRolesKey(1, 7)] = []Role{{ID: 99, IsActive: true}}
	resolver := NewResolver(repo, cache, testLogger())

	require.NoError(t, resolver.AssignRoles(context.Background(), 1, 7, []int64{1}))
	require.Equal(t, 1, cache.invalidations)
	_, ok := cache.snapshots[userRolesKey(1, 7)]
	require.False(t, ok, "snapshot must be gone after assignment")
}

func TestAssignRolesFailedInvalidationFailsCall(t *testing.T) {
	repo := &memoryRepo{roles: map[int64][]Role{}, permissions: map[int64][]permission.Permission{}}
	cache := newMemoryCache()
	cache.invalidateErr = errors.New("redis down")
	resolver := NewResolver(repo, cache, testLogger())

	err := resolver.AssignRoles(context.Background(), 1, 7, []int64{1})
	require.ErrorContains(t, err, "redis down")
}

func TestAssignRolesRepoErrorSkipsInvalidation(t *testing.T) {
	repo := &memoryRepo{
		roles:       map[int64][]Role{},
		permissions: map[int64][]permission.Permission{},
		assignErr:   shared.ErrNotFound,
	}
	cache := newMemoryCache()
	resolver := NewResolver(repo, cache, testLogger())

	err := resolver.AssignRoles(context.Background(), 1, 7, []int64{42})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Equal(t, 0, cache.invalidations)
}

func TestMutationsRequireRoleIDs(t *testing.T) {
	resolver := NewResolver(&memoryRepo{}, newMemoryCache(), testLogger())

	require.ErrorIs(t, resolver.AssignRoles(context.Background(), 1, 7, nil), shared.ErrValidation)
	require.ErrorIs(t, resolver.RemoveRoles(context.Background(), 1, 7, nil), shared.ErrValidation)
}
