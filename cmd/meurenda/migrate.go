package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"meurenda/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
		Long: `Apply, roll back or inspect the SQLite schema migrations. The server
applies pending migrations on startup; this command is for operators.`,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(path); err != nil {
				return err
			}
			logger.Info("Database migrations completed", "db_path", path)
			return printVersion(cmd, path)
		},
	})

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			if err := storage.RollbackMigrations(path, steps); err != nil {
				return err
			}
			logger.Warn("Rolled back migrations", "db_path", path, "steps", steps)
			return printVersion(cmd, path)
		},
	}
	down.Flags().Int("steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the applied schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := sqlitePath()
			if err != nil {
				return err
			}
			return printVersion(cmd, path)
		},
	})
	return cmd
}

func sqlitePath() (string, error) {
	if cfg.DataBackend != "sqlite" {
		return "", errors.New("migrations only apply to the sqlite backend (set DATA_BACKEND=sqlite)")
	}
	return cfg.SQLiteDBPath, nil
}

func printVersion(cmd *cobra.Command, path string) error {
	v, dirty, err := storage.MigrationVersion(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", v, dirty)
	return nil
}
