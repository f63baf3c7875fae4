package role

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/aegis/internal/permission"
	"github.com/noah-isme/aegis/internal/platform/db"
	"github.com/noah-isme/aegis/internal/shared"
)

// Repository provides PostgreSQL backed persistence for roles and assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const roleColumns = `id, tenant_id, code, name, description, is_system, is_active, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var r Role
	err := row.Scan(&r.ID, &r.TenantID, &r.Code, &r.Name, &r.Description, &r.IsSystem, &r.IsActive, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

// ListActiveForUser returns the user's active roles in the tenant, system
// roles first, then alphabetical. Permissions are not loaded here.
func (r *Repository) ListActiveForUser(ctx context.Context, tenantID, userID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.tenant_id, r.code, r.name, r.description, r.is_system, r.is_active, r.created_at, r.updated_at
		FROM roles r
		JOIN user_roles ur ON ur.role_id = r.id
		WHERE ur.user_id = $1 AND ur.tenant_id = $2 AND r.is_active = TRUE
		ORDER BY r.is_system DESC, r.name ASC`,
		userID, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("role: list active for user: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// LoadPermissionsForRoles fetches active permissions for all given roles in a
// single query. Every requested role id gets a map entry; roles without
// permissions map to an empty slice.
func (r *Repository) LoadPermissionsForRoles(ctx context.Context, roleIDs []int64) (map[int64][]permission.Permission, error) {
	grouped := make(map[int64][]permission.Permission, len(roleIDs))
	for _, id := range roleIDs {
		grouped[id] = []permission.Permission{}
	}
	if len(roleIDs) == 0 {
		return grouped, nil
	}

	rows, err := r.pool.Query(ctx, `
		SELECT rp.role_id, p.id, p.code, p.name, p.description, p.resource, p.action, p.module, p.is_active, p.created_at
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1) AND p.is_active = TRUE
		ORDER BY p.resource, p.action`,
		roleIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("role: load permissions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var roleID int64
		var p permission.Permission
		if err := rows.Scan(&roleID, &p.ID, &p.Code, &p.Name, &p.Description, &p.Resource, &p.Action, &p.Module, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, err
		}
		grouped[roleID] = append(grouped[roleID], p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return grouped, nil
}

// Create inserts a new role. The code must be unique within the tenant.
func (r *Repository) Create(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO roles (tenant_id, code, name, description, is_system, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+roleColumns,
		role.TenantID, role.Code, role.Name, role.Description, role.IsSystem, role.IsActive,
	)
	created, err := scanRole(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, fmt.Errorf("role %q in tenant %d: %w", role.Code, role.TenantID, shared.ErrAlreadyExists)
		}
		return Role{}, fmt.Errorf("role: create: %w", err)
	}
	created.Permissions = []permission.Permission{}
	return created, nil
}

// Update rewrites the mutable fields of a role.
func (r *Repository) Update(ctx context.Context, role Role) (Role, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE roles
		SET name = $3, description = $4, is_active = $5, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+roleColumns,
		role.ID, role.TenantID, role.Name, role.Description, role.IsActive,
	)
	updated, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("role: update: %w", err)
	}
	updated.Permissions = []permission.Permission{}
	return updated, nil
}

// Delete removes a non-system role and its assignments.
func (r *Repository) Delete(ctx context.Context, tenantID, roleID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND tenant_id = $2 AND is_system = FALSE`, roleID, tenantID)
	if err != nil {
		return fmt.Errorf("role: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByID fetches a role in a tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, roleID int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1 AND tenant_id = $2`, roleID, tenantID)
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, fmt.Errorf("role: get by id: %w", err)
	}
	perms, err := r.LoadPermissionsForRoles(ctx, []int64{role.ID})
	if err != nil {
		return Role{}, err
	}
	role.Permissions = perms[role.ID]
	return role, nil
}

// ListByTenant returns all roles in the tenant, system roles first.
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles WHERE tenant_id = $1 ORDER BY is_system DESC, name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("role: list by tenant: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		role.Permissions = []permission.Permission{}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

// SetPermissions replaces the permission set attached to a role. The delete
// and reinsert run in one transaction so a concurrent resolve never observes
// a half-written grant set.
func (r *Repository) SetPermissions(ctx context.Context, tenantID, roleID int64, permissionIDs []int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM roles WHERE id = $1 AND tenant_id = $2)`, roleID, tenantID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return shared.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) == 0 {
			return nil
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO role_permissions (role_id, permission_id)
			SELECT $1, unnest($2::BIGINT[])
			ON CONFLICT DO NOTHING`,
			roleID, permissionIDs,
		)
		return err
	})
}

// AssignRoles adds role memberships for the user with a single multi-row
// insert. Existing memberships are kept.
func (r *Repository) AssignRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_roles (user_id, tenant_id, role_id)
		SELECT $1, $2, unnest($3::BIGINT[])
		ON CONFLICT DO NOTHING`,
		userID, tenantID, roleIDs,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("unknown role id: %w", shared.ErrNotFound)
		}
		return fmt.Errorf("role: assign: %w", err)
	}
	return nil
}

// RemoveRoles drops the given role memberships for the user.
func (r *Repository) RemoveRoles(ctx context.Context, tenantID, userID int64, roleIDs []int64) error {
	_, err := r.pool.Exec(ctx, `
		DELETE FROM user_roles
		WHERE user_id = $1 AND tenant_id = $2 AND role_id = ANY($3)`,
		userID, tenantID, roleIDs,
	)
	if err != nil {
		return fmt.Errorf("role: remove: %w", err)
	}
	return nil
}

// ClearRoles drops every role membership for the user in the tenant.
func (r *Repository) ClearRoles(ctx context.Context, tenantID, userID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1 AND tenant_id = $2`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("role: clear: %w", err)
	}
	return nil
}
