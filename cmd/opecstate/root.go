package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tomyedwab/opecstate/applib"
)

// cli holds what PersistentPreRunE loads for the subcommands.
type cli struct {
	cfgFile string
	cfg     *applib.Config
	logger  *slog.Logger
}

func NewRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:   "opecstate",
		Short: "Saved-state store for the OPEC visualisation portal",
		Long: `opecstate owns the SQLite database that holds saved portal states and
users. Run "opecstate initdb" once at deployment to create the tables, then
"opecstate serve" to answer the front end.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}
			cfg, err := applib.LoadConfig(c.cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := applib.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			c.cfg = cfg
			c.logger = logger
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default: ./opecstate.yaml)")
	rootCmd.PersistentFlags().String("target", "", "Connection target, e.g. sqlite:////var/lib/opecstate/states.db")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json|text)")

	rootCmd.AddCommand(newInitDBCommand(c))
	rootCmd.AddCommand(newTablesCommand(c))
	rootCmd.AddCommand(newServeCommand(c))
	return rootCmd
}

// open builds the application from the loaded config.
func (c *cli) open() (*applib.Application, error) {
	return applib.Init(c.cfg, c.logger)
}
