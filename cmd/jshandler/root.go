package main

import (
	"log/slog"

	"github.com/cryguy/jshandler/internal/config"
	"github.com/cryguy/jshandler/internal/logging"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:   "jshandler",
		Short: "Serve JavaScript files as HTTP request handlers",
		Long: `jshandler maps URL path prefixes to JavaScript files. Each worker compiles
every script once into its own engine instance and runs it for each request;
the script's last expression becomes the response body.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (yaml, toml or json)")

	load := func() (*config.Config, error) { return config.Load(configPath) }
	root.AddCommand(
		newServeCmd(load),
		newCheckCmd(load),
		newConfigCmd(load),
		newVersionCmd(),
	)
	return root
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.Log.Level),
		Format: logging.ParseFormat(cfg.Log.Format),
		Output: cmd.ErrOrStderr(),
	})
}
