package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

// BunAPIKeyRepository implements APIKeyRepository using Bun ORM
type BunAPIKeyRepository struct {
	db *bun.DB
}

// NewBunAPIKeyRepository creates a new Bun-based API key repository
func NewBunAPIKeyRepository(db *bun.DB) APIKeyRepository {
	return &BunAPIKeyRepository{db: db}
}

func (r *BunAPIKeyRepository) Create(ctx context.Context, key *models.APIKey) error {
	_, err := r.db.NewInsert().
		Model(key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (r *BunAPIKeyRepository) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	apiKey := new(models.APIKey)
	err := r.db.NewSelect().
		Model(apiKey).
		Where("api_key = ?", key).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return apiKey, nil
}

func (r *BunAPIKeyRepository) GetByUsername(ctx context.Context, username string) (*models.APIKey, error) {
	apiKey := new(models.APIKey)
	err := r.db.NewSelect().
		Model(apiKey).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key for %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get api key by username: %w", err)
	}
	return apiKey, nil
}

func (r *BunAPIKeyRepository) Replace(ctx context.Context, key *models.APIKey) error {
	res, err := r.db.NewUpdate().
		Model(key).
		Column("api_key", "created_at", "expires_at", "last_used_at").
		Where("username = ?", key.Username).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replace api key: %w", err)
	}
	return requireAffected(res, "api key for "+key.Username)
}

func (r *BunAPIKeyRepository) Update(ctx context.Context, key *models.APIKey) error {
	res, err := r.db.NewUpdate().
		Model(key).
		Column("created_at", "expires_at", "last_used_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update api key: %w", err)
	}
	return requireAffected(res, "api key")
}

// Delete removes a key. Deleting an unknown key is not an error.
func (r *BunAPIKeyRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.NewDelete().
		Model((*models.APIKey)(nil)).
		Where("api_key = ?", key).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete api key: %w", err)
	}
	return nil
}

func (r *BunAPIKeyRepository) DeleteByUsername(ctx context.Context, username string) error {
	_, err := r.db.NewDelete().
		Model((*models.APIKey)(nil)).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete api key by username: %w", err)
	}
	return nil
}

func (r *BunAPIKeyRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.APIKey)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count api keys: %w", err)
	}
	return n, nil
}

// requireAffected maps a zero-row update to ErrNotFound.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
