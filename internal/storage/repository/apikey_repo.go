package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ramonehamilton/deckvault/internal/storage/models"
)

// APIKeyRepository handles database operations for API keys.
type APIKeyRepository interface {
	// Create inserts a key and sets key.ID.
	Create(ctx context.Context, key *models.APIKey) error

	ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error)
	ListAll(ctx context.Context) ([]*models.APIKey, error)

	// GetByHash returns nil when no key matches.
	GetByHash(ctx context.Context, hash string) (*models.APIKey, error)

	// Delete removes a key owned by userID and reports whether it existed.
	Delete(ctx context.Context, userID, id int64) (bool, error)

	// TouchLastUsed records a successful authentication.
	TouchLastUsed(ctx context.Context, id int64, at time.Time) error
}

type apiKeyRepository struct {
	db DBTX
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(db DBTX) APIKeyRepository {
	return &apiKeyRepository{db: db}
}

const apiKeyColumns = `id, user_id, name, key_prefix, key_hash, created_at, last_used_at`

func scanAPIKey(row rowScanner) (*models.APIKey, error) {
	k := &models.APIKey{}
	var lastUsed sql.NullTime
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &k.CreatedAt, &lastUsed); err != nil {
		return nil, err
	}
	if lastUsed.Valid {
		k.LastUsedAt = &lastUsed.Time
	}
	return k, nil
}

// Create inserts a new API key.
func (r *apiKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO api_keys (user_id, name, key_prefix, key_hash, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, key.UserID, key.Name, key.KeyPrefix, key.KeyHash, key.CreatedAt, key.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get api key id: %w", err)
	}
	key.ID = id
	return nil
}

func (r *apiKeyRepository) list(ctx context.Context, where string, args ...interface{}) ([]*models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys `+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	keys := []*models.APIKey{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating api keys: %w", err)
	}
	return keys, nil
}

// ListByUser returns a user's keys.
func (r *apiKeyRepository) ListByUser(ctx context.Context, userID int64) ([]*models.APIKey, error) {
	return r.list(ctx, `WHERE user_id = ?`, userID)
}

// ListAll returns every key.
func (r *apiKeyRepository) ListAll(ctx context.Context) ([]*models.APIKey, error) {
	return r.list(ctx, "")
}

// GetByHash looks a key up by the hash of its secret.
func (r *apiKeyRepository) GetByHash(ctx context.Context, hash string) (*models.APIKey, error) {
	k, err := scanAPIKey(r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = ?`, hash))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// Delete removes a key scoped to its owner.
func (r *apiKeyRepository) Delete(ctx context.Context, userID, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM api_keys WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete api key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// TouchLastUsed updates last_used_at.
func (r *apiKeyRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = ? WHERE id = ?`, at, id); err != nil {
		return fmt.Errorf("failed to touch api key: %w", err)
	}
	return nil
}
