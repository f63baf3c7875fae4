package role

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/aegis/internal/shared"
)

type memoryCatalog struct {
	nextID int64
	roles  map[int64]Role
	perms  map[int64][]int64
}

func newMemoryCatalog() *memoryCatalog {
	return &memoryCatalog{roles: make(map[int64]Role), perms: make(map[int64][]int64)}
}

func (m *memoryCatalog) Create(_ context.Context, role Role) (Role, error) {
	for _, existing := range m.roles {
		if existing.TenantID == role.TenantID && existing.Code == role.Code {
			return Role{}, shared.ErrAlreadyExists
		}
	}
	m.nextID++
	role.ID = m.nextID
	m.roles[role.ID] = role
	return role, nil
}

func (m *memoryCatalog) Update(_ context.Context, role Role) (Role, error) {
	existing, ok := m.roles[role.ID]
	if !ok || existing.TenantID != role.TenantID {
		return Role{}, shared.ErrNotFound
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *memoryCatalog) Delete(_ context.Context, tenantID, roleID int64) error {
	existing, ok := m.roles[roleID]
	if !ok || existing.TenantID != tenantID {
		return shared.ErrNotFound
	}
	delete(m.roles, roleID)
	return nil
}

func (m *memoryCatalog) GetByID(_ context.Context, tenantID, roleID int64) (Role, error) {
	existing, ok := m.roles[roleID]
	if !ok || existing.TenantID != tenantID {
		return Role{}, shared.ErrNotFound
	}
	return existing, nil
}

func (m *memoryCatalog) ListByTenant(_ context.Context, tenantID int64) ([]Role, error) {
	var out []Role
	for _, role := range m.roles {
		if role.TenantID == tenantID {
			out = append(out, role)
		}
	}
	return out, nil
}

func (m *memoryCatalog) SetPermissions(_ context.Context, tenantID, roleID int64, permissionIDs []int64) error {
	if _, ok := m.roles[roleID]; !ok {
		return shared.ErrNotFound
	}
	m.perms[roleID] = permissionIDs
	return nil
}

func TestCreateRole(t *testing.T) {
	svc := NewService(newMemoryCatalog())

	created, err := svc.Create(context.Background(), CreateInput{TenantID: 1, Code: " billing-admin "})
	require.NoError(t, err)
	require.Equal(t, "billing-admin", created.Code)
	require.Equal(t, "billing-admin", created.Name, "name defaults to code")
	require.True(t, created.IsActive)
	require.NotNil(t, created.Permissions)
}

func TestCreateRoleValidation(t *testing.T) {
	svc := NewService(newMemoryCatalog())
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{TenantID: 0, Code: "x"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(ctx, CreateInput{TenantID: 1, Code: "  "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRolesAreTenantScoped(t *testing.T) {
	repo := newMemoryCatalog()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "admin"})
	require.NoError(t, err)

	// Same code in another tenant is fine.
	_, err = svc.Create(ctx, CreateInput{TenantID: 2, Code: "admin"})
	require.NoError(t, err)

	// Cross-tenant access misses.
	_, err = svc.Get(ctx, 2, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.ErrorIs(t, svc.Delete(ctx, 2, created.ID), shared.ErrNotFound)
}

func TestSetPermissions(t *testing.T) {
	repo := newMemoryCatalog()
	svc := NewService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{TenantID: 1, Code: "admin"})
	require.NoError(t, err)

	require.NoError(t, svc.SetPermissions(ctx, 1, created.ID, []int64{10, 11}))
	require.Equal(t, []int64{10, 11}, repo.perms[created.ID])
}
