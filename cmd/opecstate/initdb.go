package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newInitDBCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "initdb",
		Short: "Create the database tables",
		Long: `Create a table for every registered entity that does not have one yet.
Existing tables and their rows are left untouched, so running initdb again
is safe.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.open()
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.InitDB(cmd.Context()); err != nil {
				return err
			}
			tables, err := app.GetDatabase().Tables(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s: %s\n", c.cfg.Target, strings.Join(tables, ", "))
			return nil
		},
	}
}
