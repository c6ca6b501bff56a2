package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

func newTablesCommand(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the tables in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.open()
			if err != nil {
				return err
			}
			defer app.Close()

			db := app.GetDatabase()
			tables, err := db.Tables(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			registered := make(map[string]bool)
			for _, m := range db.Registry().Models() {
				registered[m.Table] = true
				status := "missing"
				if slices.Contains(tables, m.Table) {
					status = "present"
				}
				_, _ = fmt.Fprintf(out, "%-20s %s\n", m.Table, status)
			}
			for _, table := range tables {
				if !registered[table] {
					_, _ = fmt.Fprintf(out, "%-20s %s\n", table, "unregistered")
				}
			}
			return nil
		},
	}
}
