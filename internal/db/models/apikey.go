package models

import (
	"time"

	"github.com/uptrace/bun"
)

// APIKey is the single active bearer credential held by a user.
// Rows written before expiry tracking existed carry zero timestamps.
type APIKey struct {
	bun.BaseModel `bun:"table:api_keys,alias:ak"`

	Key        string    `bun:"api_key,pk"`
	Username   string    `bun:"username,notnull,unique"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	ExpiresAt  time.Time `bun:"expires_at,notnull"`
	LastUsedAt time.Time `bun:"last_used_at,notnull"`
}

// IsLegacy reports whether the record predates expiry tracking.
func (k *APIKey) IsLegacy() bool {
	return k.CreatedAt.IsZero() || k.ExpiresAt.IsZero() || k.LastUsedAt.IsZero()
}
