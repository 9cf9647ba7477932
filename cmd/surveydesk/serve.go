package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/paulexconde/surveydesk/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if err := a.Close(); err != nil {
				log.Warn("Failed to close database", "error", err)
			}
		}()

		return a.Run(ctx)
	},
}
