package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/venicegeo/pz-idam/internal/db/models"
)

// BunUserProfileRepository implements UserProfileRepository using Bun ORM
type BunUserProfileRepository struct {
	db *bun.DB
}

// NewBunUserProfileRepository creates a new Bun-based user profile repository
func NewBunUserProfileRepository(db *bun.DB) UserProfileRepository {
	return &BunUserProfileRepository{db: db}
}

func (r *BunUserProfileRepository) Create(ctx context.Context, profile *models.UserProfile) error {
	_, err := r.db.NewInsert().
		Model(profile).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("create user profile: %w", err)
	}
	return nil
}

// Update rewrites the mutable attributes. created_on is never touched.
func (r *BunUserProfileRepository) Update(ctx context.Context, profile *models.UserProfile) error {
	res, err := r.db.NewUpdate().
		Model(profile).
		Column("distinguished_name", "country", "admin_code", "duty_code", "last_updated_on").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return requireAffected(res, "user profile "+profile.Username)
}

func (r *BunUserProfileRepository) Replace(ctx context.Context, profile *models.UserProfile) error {
	res, err := r.db.NewUpdate().
		Model(profile).
		ExcludeColumn("username").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("replace user profile: %w", err)
	}
	return requireAffected(res, "user profile "+profile.Username)
}

func (r *BunUserProfileRepository) GetByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	profile := new(models.UserProfile)
	err := r.db.NewSelect().
		Model(profile).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user profile %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	return profile, nil
}

func (r *BunUserProfileRepository) GetByIdentity(ctx context.Context, username, distinguishedName string) (*models.UserProfile, error) {
	profile := new(models.UserProfile)
	err := r.db.NewSelect().
		Model(profile).
		Where("username = ?", username).
		Where("distinguished_name = ?", distinguishedName).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user profile %s: %w", username, ErrNotFound)
		}
		return nil, fmt.Errorf("get user profile by identity: %w", err)
	}
	return profile, nil
}

func (r *BunUserProfileRepository) List(ctx context.Context) ([]models.UserProfile, error) {
	var profiles []models.UserProfile
	err := r.db.NewSelect().
		Model(&profiles).
		Order("username ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	return profiles, nil
}

func (r *BunUserProfileRepository) Delete(ctx context.Context, username string) error {
	_, err := r.db.NewDelete().
		Model((*models.UserProfile)(nil)).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete user profile: %w", err)
	}
	return nil
}

func (r *BunUserProfileRepository) Count(ctx context.Context) (int, error) {
	n, err := r.db.NewSelect().
		Model((*models.UserProfile)(nil)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count user profiles: %w", err)
	}
	return n, nil
}
