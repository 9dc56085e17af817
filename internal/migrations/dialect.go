package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/venicegeo/pz-idam/internal/logging"
)

// IsSQLite checks if the database is SQLite
func IsSQLite(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.SQLite
}

// IsPostgreSQL checks if the database is PostgreSQL
func IsPostgreSQL(db *bun.DB) bool {
	return db.Dialect().Name() == dialect.PG
}

type tableIndex struct {
	name    string
	columns []string
	unique  bool
}

// createTable creates the table for model and its indexes, skipping any
// that already exist.
func createTable(ctx context.Context, db *bun.DB, model any, table string, indexes ...tableIndex) error {
	logging.Infof("[up] creating %s table", table)

	if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("failed to create %s table: %w", table, err)
	}

	for _, idx := range indexes {
		q := db.NewCreateIndex().
			Model(model).
			Index(idx.name).
			Column(idx.columns...).
			IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to create index %s on %s: %w", idx.name, table, err)
		}
	}
	return nil
}

// dropTables drops each table in order. PostgreSQL drops cascade to
// dependent indexes and constraints; SQLite has no CASCADE clause.
func dropTables(ctx context.Context, db *bun.DB, tables ...string) error {
	for _, table := range tables {
		logging.Infof("[down] dropping %s table", table)
		q := db.NewDropTable().Table(table).IfExists()
		if IsPostgreSQL(db) {
			q = q.Cascade()
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("failed to drop %s table: %w", table, err)
		}
	}
	return nil
}
