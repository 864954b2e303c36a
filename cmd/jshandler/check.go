package main

import (
	"errors"
	"fmt"

	"github.com/cryguy/jshandler"
	"github.com/cryguy/jshandler/internal/config"
	"github.com/spf13/cobra"
)

func newCheckCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "check [script...]",
		Short: "Compile scripts and report load or syntax errors",
		Long: `check compiles each script once, the way a worker does at startup, and
reports scripts that cannot be read or compiled. Without arguments it checks
every script in the configured routes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			paths := args
			if len(paths) == 0 {
				for _, r := range cfg.Routes {
					paths = append(paths, r.Script)
				}
			}
			if len(paths) == 0 {
				return fmt.Errorf("nothing to check")
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, p := range paths {
				err := jshandler.Check(cfg.EngineConfig(), p)
				var cfgErr *jshandler.ConfigError
				var compileErr *jshandler.CompileError
				switch {
				case err == nil:
					fmt.Fprintf(out, "ok     %s\n", p)
					continue
				case errors.As(err, &cfgErr):
					fmt.Fprintf(out, "config %s: %v\n", p, cfgErr.Err)
				case errors.As(err, &compileErr):
					fmt.Fprintf(out, "error  %s: %v\n", p, compileErr.Err)
				default:
					return err
				}
				failed++
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d scripts failed", failed, len(paths))
			}
			return nil
		},
	}
}
