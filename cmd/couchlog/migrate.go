package main

import (
	"fmt"

	"github.com/couchlog/couchlog/internal/config"
	"github.com/couchlog/couchlog/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate the database schema",
		Long:  "Creates or updates all Couchlog tables and seeds the badge catalogue.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "couchlog.yaml", "path to Couchlog config file")
	return cmd
}

func runMigrate(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if err := db.SeedBadges(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Seeded %d badges\n", len(db.DefaultBadges()))
	return nil
}
