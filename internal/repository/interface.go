package repository

import (
	"context"
	"errors"
	"time"

	"github.com/venicegeo/pz-idam/internal/db/models"
)

// ErrNotFound is returned (wrapped) when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// APIKeyRepository exposes persistence operations for API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)
	GetByUsername(ctx context.Context, username string) (*models.APIKey, error)
	// Replace swaps the key value and timestamps of the row owned by
	// key.Username in place.
	Replace(ctx context.Context, key *models.APIKey) error
	// Update rewrites the timestamps of an existing key.
	Update(ctx context.Context, key *models.APIKey) error
	Delete(ctx context.Context, key string) error
	DeleteByUsername(ctx context.Context, username string) error
	Count(ctx context.Context) (int, error)
}

// UserProfileRepository exposes persistence operations for user profiles.
type UserProfileRepository interface {
	Create(ctx context.Context, profile *models.UserProfile) error
	Update(ctx context.Context, profile *models.UserProfile) error
	// Replace overwrites every column of the username's row, created_on included.
	Replace(ctx context.Context, profile *models.UserProfile) error
	GetByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	GetByIdentity(ctx context.Context, username, distinguishedName string) (*models.UserProfile, error)
	List(ctx context.Context) ([]models.UserProfile, error)
	Delete(ctx context.Context, username string) error
	Count(ctx context.Context) (int, error)
}

// ThrottleRepository exposes persistence operations for per-user invocation
// counters. windowStart identifies the current window; rows stamped with any
// other window are stale.
type ThrottleRepository interface {
	Get(ctx context.Context, username string, component models.ThrottleComponent) (*models.ThrottleRecord, error)
	Increment(ctx context.Context, username string, component models.ThrottleComponent, windowStart time.Time) error
	ResetAll(ctx context.Context, windowStart time.Time) error
	CountExceeding(ctx context.Context, component models.ThrottleComponent, windowStart time.Time, ceiling int) (int, error)
}
