package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects every schema step; files register themselves in init.
var Migrations = migrate.NewMigrations()
