package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/cryguy/jshandler"
	"github.com/cryguy/jshandler/internal/config"
	"github.com/cryguy/jshandler/internal/host"
	"github.com/spf13/cobra"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	var listen string
	var workers int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = listen
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			if len(cfg.Routes) == 0 {
				return fmt.Errorf("no routes configured")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, cfg)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address, overrides the config file")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "number of workers, overrides the config file")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger := newLogger(cmd, cfg)
	h, err := jshandler.NewHandler(cfg.EngineConfig(), logger)
	if err != nil {
		return err
	}

	regs := make([]*jshandler.Registration, 0, len(cfg.Routes))
	for _, r := range cfg.Routes {
		regs = append(regs, jshandler.Register(r.Path, r.Script))
	}

	srv := host.New(host.Options{
		Workers:            cfg.Workers,
		MaxConnections:     cfg.MaxConnections,
		H2C:                cfg.H2C,
		ShutdownTimeout:    cfg.ShutdownTimeout,
		Compression:        cfg.Compression.Enabled,
		CompressionMinSize: cfg.Compression.MinSize,
	}, h, regs, logger)
	return srv.ListenAndServe(ctx, cfg.Listen)
}
