package permission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/aegis/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the permission catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const permissionColumns = `id, code, name, description, resource, action, module, is_active, created_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.Resource, &p.Action, &p.Module, &p.IsActive, &p.CreatedAt)
	return p, err
}

// Create inserts a new permission. Returns shared.ErrAlreadyExists when the
// code is already registered.
func (r *Repository) Create(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (code, name, description, resource, action, module, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+permissionColumns,
		p.Code, p.Name, p.Description, p.Resource, p.Action, p.Module, p.IsActive,
	)
	created, err := scanPermission(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Permission{}, fmt.Errorf("permission %q: %w", p.Code, shared.ErrAlreadyExists)
		}
		return Permission{}, fmt.Errorf("permission: create: %w", err)
	}
	return created, nil
}

// Update rewrites the mutable fields of a permission.
func (r *Repository) Update(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE permissions
		SET name = $2, description = $3, module = $4, is_active = $5
		WHERE id = $1
		RETURNING `+permissionColumns,
		p.ID, p.Name, p.Description, p.Module, p.IsActive,
	)
	updated, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, fmt.Errorf("permission: update: %w", err)
	}
	return updated, nil
}

// Deactivate marks a permission inactive without removing it.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("permission: deactivate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Delete removes a permission by ID.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("permission: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// GetByID fetches a permission by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, fmt.Errorf("permission: get by id: %w", err)
	}
	return p, nil
}

// GetByCode fetches a permission by its unique code.
func (r *Repository) GetByCode(ctx context.Context, code string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE code = $1`, code)
	p, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, shared.ErrNotFound
		}
		return Permission{}, fmt.Errorf("permission: get by code: %w", err)
	}
	return p, nil
}

// List returns permissions matching the filter with pagination metadata.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Permission, shared.Pagination, error) {
	where := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.Module != "" {
		args = append(args, filter.Module)
		where = append(where, fmt.Sprintf("module = $%d", len(args)))
	}
	if filter.Resource != "" {
		args = append(args, filter.Resource)
		where = append(where, fmt.Sprintf("resource = $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM permissions`+clause, args...).Scan(&total); err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("permission: count: %w", err)
	}
	page := shared.NewPagination(filter.Page, filter.PerPage, total)

	args = append(args, page.PerPage, page.Offset())
	query := fmt.Sprintf(`SELECT %s FROM permissions%s ORDER BY resource, action LIMIT $%d OFFSET $%d`,
		permissionColumns, clause, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, shared.Pagination{}, fmt.Errorf("permission: list: %w", err)
	}
	defer rows.Close()

	perms := make([]Permission, 0, page.PerPage)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, shared.Pagination{}, err
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.Pagination{}, err
	}
	return perms, page, nil
}
