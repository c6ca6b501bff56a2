package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newServeCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve saved states over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.open()
			if err != nil {
				return err
			}
			defer app.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if initFirst, _ := cmd.Flags().GetBool("init"); initFirst {
				if err := app.InitDB(ctx); err != nil {
					return err
				}
			}
			return app.Serve(ctx)
		},
	}
	cmd.Flags().Int("port", 0, "Port for the HTTP server (default 8080)")
	cmd.Flags().Bool("init", false, "Create missing tables before serving")
	return cmd
}
