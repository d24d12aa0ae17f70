package server

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zhirschtritt/deals/internal/config"
	"github.com/zhirschtritt/deals/internal/logger"
	"github.com/zhirschtritt/deals/internal/migrations"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(func(m *migrations.Migrator) error {
			if err := m.Up(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back all migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(func(m *migrations.Migrator) error {
			if err := m.Down(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Migrations rolled back successfully")
			return nil
		})
	},
}

var migrateStepsCmd = &cobra.Command{
	Use:     "steps",
	Short:   "Apply (positive) or roll back (negative) a number of migrations",
	Example: "  deals migrate steps --n=-1",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateSteps == 0 {
			return errors.New("--n must be non-zero")
		}
		return runMigrate(func(m *migrations.Migrator) error {
			if err := m.Steps(migrateSteps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations completed successfully (%d steps)\n", migrateSteps)
			return nil
		})
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(func(m *migrations.Migrator) error {
			version, dirty, err := m.Version()
			if err != nil {
				return fmt.Errorf("failed to get migration version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Current migration version: %d, dirty: %t\n", version, dirty)
			return nil
		})
	},
}

func init() {
	migrateStepsCmd.Flags().IntVar(&migrateSteps, "n", 0, "Number of migrations, negative to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStepsCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(action func(*migrations.Migrator) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	migrator, err := migrations.NewMigrator(cfg.DBConnString, log)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			log.Error("could not close migrator", "error", err)
		}
	}()

	return action(migrator)
}
