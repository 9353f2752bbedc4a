package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"example.com/wordle-versus/internal/app"
)

func newServeCmd() *cobra.Command {
	var inMemory bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, log, app.Options{InMemory: inMemory})
			if err != nil {
				log.Error("startup failed", "err", err)
				return err
			}
			return a.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&inMemory, "in-memory", false, "keep all state in process (no Postgres or Redis)")
	return cmd
}
