package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	"CrudAPI/internal/config"
	"CrudAPI/internal/logger"
)

var (
	migrateSteps int

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back SQL migrations",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(func(m *migrate.Migrate) error {
				if migrateSteps > 0 {
					return m.Steps(migrateSteps)
				}
				return m.Up()
			})
		},
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations (one step unless --steps is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := migrateSteps
			if steps <= 0 {
				steps = 1
			}
			return runMigrations(func(m *migrate.Migrate) error {
				return m.Steps(-steps)
			})
		},
	}
)

func init() {
	migrateCmd.PersistentFlags().IntVar(&migrateSteps, "steps", 0, "number of migrations to apply or roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
}

func runMigrations(fn func(*migrate.Migrate) error) error {
	cfg := config.LoadConfig()
	abs, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("abs migrations: %w", err)
	}
	m, err := migrate.New("file://"+filepath.ToSlash(abs), cfg.PostgresDSN)
	if err != nil {
		return fmt.Errorf("migrate.New: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	if err := fn(m); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return err
	}
	logger.Info("migrations_applied", map[string]any{"version": version, "dirty": dirty})
	fmt.Printf("schema version %d (dirty=%v)\n", version, dirty)
	return nil
}
