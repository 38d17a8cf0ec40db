package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averku/orderdesk/internal/domain/auth"
)

const getAPIKeyByHashSQL = `SELECT id, key_hash, name, scopes
	FROM api_keys WHERE key_hash = $1 AND active`

var _ auth.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository provides API key lookups backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByHash looks up an active API key by its HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByHash(ctx context.Context, hash string) (*auth.APIKeyInfo, error) {
	var info auth.APIKeyInfo
	err := r.pool.QueryRow(ctx, getAPIKeyByHashSQL, hash).
		Scan(&info.ID, &info.KeyHash, &info.Name, &info.Scopes)
	if err != nil {
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	return &info, nil
}

// InsertKey stores a new active API key hash. Used by provisioning tools.
func (r *APIKeyRepository) InsertKey(ctx context.Context, id, hash, name string, scopes []string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO api_keys (id, key_hash, name, scopes) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key_hash) DO NOTHING`,
		id, hash, name, scopes,
	)
	if err != nil {
		return fmt.Errorf("inserting api key %q: %w", name, err)
	}
	return nil
}
