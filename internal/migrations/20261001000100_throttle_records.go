package migrations

import (
	"context"

	"github.com/uptrace/bun"

	"github.com/venicegeo/pz-idam/internal/db/models"
)

func init() {
	Migrations.MustRegister(up_20261001000100, down_20261001000100)
}

// up_20261001000100 creates the throttle_records table
func up_20261001000100(ctx context.Context, db *bun.DB) error {
	// Reset and stats queries scan by window
	return createTable(ctx, db, (*models.ThrottleRecord)(nil), "throttle_records",
		tableIndex{name: "idx_throttle_records_window", columns: []string{"window_start"}},
	)
}

// down_20261001000100 drops the throttle_records table
func down_20261001000100(ctx context.Context, db *bun.DB) error {
	return dropTables(ctx, db, "throttle_records")
}
