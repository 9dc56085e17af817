package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/venicegeo/pz-idam/internal/db/bunx"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/migrations"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing the key, profile and throttle tables.`,
}

var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize migration tables",
	RunE: migratorCommand(false, func(ctx context.Context, m *migrate.Migrator) error {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrator: %w", err)
		}
		logging.Infof("Migration tables initialized")
		return nil
	}),
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Creates the migration tables if needed and applies all pending migrations under the migration lock.`,
	RunE: migratorCommand(true, func(ctx context.Context, m *migrate.Migrator) error {
		group, err := m.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		if group.IsZero() {
			logging.Infof("No new migrations to apply")
		} else {
			logging.Infof("Applied migration group %d (%d migrations)", group.ID, len(group.Migrations))
		}
		return nil
	}),
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show migration status",
	RunE: migratorCommand(false, func(ctx context.Context, m *migrate.Migrator) error {
		ms, err := m.MigrationsWithStatus(ctx)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		for _, mig := range ms {
			status := "pending"
			if mig.GroupID > 0 {
				status = fmt.Sprintf("applied (group %d)", mig.GroupID)
			}
			fmt.Printf("%s\t%s\n", mig.Name, status)
		}
		return nil
	}),
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback",
	Short: "Rollback last migration group",
	RunE: migratorCommand(true, func(ctx context.Context, m *migrate.Migrator) error {
		group, err := m.Rollback(ctx)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		if group.IsZero() {
			logging.Infof("No migrations to rollback")
		} else {
			logging.Infof("Rolled back migration group %d", group.ID)
		}
		return nil
	}),
}

var dbUnlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Force release migration lock",
	Long:  `Releases the migration lock left behind by a crashed migrate or rollback.`,
	RunE: migratorCommand(false, func(ctx context.Context, m *migrate.Migrator) error {
		if err := m.Unlock(ctx); err != nil {
			return fmt.Errorf("failed to release migration lock: %w", err)
		}
		logging.Infof("Migration lock released")
		return nil
	}),
}

// migratorCommand opens the database and runs fn against a migrator. When
// locked is set the migration tables are created first and fn runs under
// the migration lock.
func migratorCommand(locked bool, fn func(context.Context, *migrate.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := bunx.NewDB(ctx, cfg.DatabaseURL, bunx.Options{MaxOpenConns: cfg.MaxDBConnections})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		m := migrate.NewMigrator(db, migrations.Migrations)
		if !locked {
			return fn(ctx, m)
		}

		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("failed to initialize migrator: %w", err)
		}
		if err := m.Lock(ctx); err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		defer func() {
			if err := m.Unlock(ctx); err != nil {
				logging.Warnf("failed to release migration lock: %v", err)
			}
		}()
		return fn(ctx, m)
	}
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbInitCmd, dbMigrateCmd, dbStatusCmd, dbRollbackCmd, dbUnlockCmd)
}
