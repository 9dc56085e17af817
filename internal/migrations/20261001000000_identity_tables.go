package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/venicegeo/pz-idam/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000000, down_20261001000000)
}

// up_20261001000000 creates the api_keys and user_profiles tables
func up_20261001000000(ctx context.Context, db *bun.DB) error {
	// One key per user
	err := createTable(ctx, db, (*models.APIKey)(nil), "api_keys",
		tableIndex{name: "idx_api_keys_username", columns: []string{"username"}, unique: true},
	)
	if err != nil {
		return err
	}

	return createTable(ctx, db, (*models.UserProfile)(nil), "user_profiles",
		tableIndex{name: "idx_user_profiles_dn", columns: []string{"distinguished_name"}},
	)
}

// down_20261001000000 drops the api_keys and user_profiles tables
func down_20261001000000(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "user_profiles", "api_keys")
}
