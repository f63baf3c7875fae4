package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/aegis/internal/shared"
)

// Repository provides PostgreSQL backed persistence for policies.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const policyColumns = `id, tenant_id, name, description, effect, subjects, resources, actions, conditions, priority, is_active, created_at, updated_at`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	var conditions []byte
	err := row.Scan(&p.ID, &p.TenantID, &p.Name, &p.Description, &p.Effect, &p.Subjects, &p.Resources, &p.Actions, &conditions, &p.Priority, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Policy{}, err
	}
	if len(conditions) > 0 {
		if err := json.Unmarshal(conditions, &p.Conditions); err != nil {
			return Policy{}, fmt.Errorf("policy %d: decode conditions: %w", p.ID, err)
		}
	}
	return p, nil
}

func encodeConditions(conditions map[string]any) (any, error) {
	if conditions == nil {
		return nil, nil
	}
	payload, err := json.Marshal(conditions)
	if err != nil {
		return nil, fmt.Errorf("policy: encode conditions: %w", err)
	}
	return payload, nil
}

// ListActiveByTenant returns the tenant's active policies ordered for
// evaluation: priority descending, then id ascending. Ascending id is the
// deterministic tie-break among equal priorities (creation order).
func (r *Repository) ListActiveByTenant(ctx context.Context, tenantID int64) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+policyColumns+`
		FROM policies
		WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY priority DESC, id ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("policy: list active: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policies, nil
}

// Create inserts a new policy. The name must be unique within the tenant.
func (r *Repository) Create(ctx context.Context, p Policy) (Policy, error) {
	conditions, err := encodeConditions(p.Conditions)
	if err != nil {
		return Policy{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO policies (tenant_id, name, description, effect, subjects, resources, actions, conditions, priority, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+policyColumns,
		p.TenantID, p.Name, p.Description, p.Effect, p.Subjects, p.Resources, p.Actions, conditions, p.Priority, p.IsActive,
	)
	created, err := scanPolicy(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Policy{}, fmt.Errorf("policy %q in tenant %d: %w", p.Name, p.TenantID, shared.ErrAlreadyExists)
		}
		return Policy{}, fmt.Errorf("policy: create: %w", err)
	}
	return created, nil
}

// Update rewrites a policy.
func (r *Repository) Update(ctx context.Context, p Policy) (Policy, error) {
	conditions, err := encodeConditions(p.Conditions)
	if err != nil {
		return Policy{}, err
	}
	row := r.pool.QueryRow(ctx, `
		UPDATE policies
		SET name = $3, description = $4, effect = $5, subjects = $6, resources = $7, actions = $8,
		    conditions = $9, priority = $10, is_active = $11, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING `+policyColumns,
		p.ID, p.TenantID, p.Name, p.Description, p.Effect, p.Subjects, p.Resources, p.Actions, conditions, p.Priority, p.IsActive,
	)
	updated, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Policy{}, fmt.Errorf("policy %q in tenant %d: %w", p.Name, p.TenantID, shared.ErrAlreadyExists)
		}
		return Policy{}, fmt.Errorf("policy: update: %w", err)
	}
	return updated, nil
}

// Delete removes a policy.
func (r *Repository) Delete(ctx context.Context, tenantID, policyID int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM policies WHERE id = $1 AND tenant_id = $2`, policyID, tenantID)
	if err != nil {
		return fmt.Errorf("policy: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByID fetches a policy in a tenant.
func (r *Repository) GetByID(ctx context.Context, tenantID, policyID int64) (Policy, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+policyColumns+` FROM policies WHERE id = $1 AND tenant_id = $2`, policyID, tenantID)
	p, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Policy{}, shared.ErrNotFound
		}
		return Policy{}, fmt.Errorf("policy: get by id: %w", err)
	}
	return p, nil
}

// ListByTenant returns every policy in the tenant, active or not, in
// evaluation order.
func (r *Repository) ListByTenant(ctx context.Context, tenantID int64) ([]Policy, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+policyColumns+`
		FROM policies
		WHERE tenant_id = $1
		ORDER BY priority DESC, id ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("policy: list: %w", err)
	}
	defer rows.Close()

	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return policies, nil
}
