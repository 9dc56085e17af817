// Package dbtest opens throwaway migrated databases for repository and
// service tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/venicegeo/pz-idam/internal/db/bunx"
	"github.com/venicegeo/pz-idam/internal/migrations"
)

// New returns an in-memory SQLite database with every migration applied.
// The database is closed when the test finishes.
func New(t testing.TB) *bun.DB {
	t.Helper()

	ctx := context.Background()
	db, err := bunx.NewDB(ctx, ":memory:", bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)

	return db
}
