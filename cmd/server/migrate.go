package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"example.com/wordle-versus/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	sub := func(use, short string, fn func(dbURL string, log *slog.Logger) error) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, log, err := loadConfig()
				if err != nil {
					return err
				}
				return fn(cfg.Postgres.URL, log)
			},
		}
	}

	cmd.AddCommand(
		sub("up", "Apply all pending migrations", migrate.Up),
		sub("down", "Roll back the latest migration", migrate.Down),
		sub("status", "Show applied and pending migrations", migrate.Status),
	)
	return cmd
}
