package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/aegis/internal/shared"
)

// Repository defines persistence operations for API clients.
type Repository interface {
	FindByKeyID(ctx context.Context, keyID string) (*Client, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByKeyID fetches a client by its public key identifier.
func (r *PGRepository) FindByKeyID(ctx context.Context, keyID string) (*Client, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, key_id, secret_hash, is_active, created_at
		FROM api_clients
		WHERE key_id = $1`,
		keyID,
	)
	var c Client
	if err := row.Scan(&c.ID, &c.Name, &c.KeyID, &c.SecretHash, &c.IsActive, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

var _ Repository = (*PGRepository)(nil)
