package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cryguy/jshandler"
	"github.com/spf13/cobra"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "jshandler %s (commit %s, built %s)\n", Version, Commit, BuildDate)
			fmt.Fprintf(out, "go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "engines: %s\n", strings.Join(jshandler.Backends(), ", "))
		},
	}
}
