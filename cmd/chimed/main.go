// chimed is the on-device control daemon. It serves the tool invocation
// protocol over stdio and runs the alarm scheduler.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// version is stamped at build time with -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var configPath string

	root := &cobra.Command{
		Use:           "chimed",
		Short:         "Voice assistant device control daemon",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the control protocol on stdio and run the alarm scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	serve.Flags().StringVar(&configPath, "config", "", "path to config file")

	root.AddCommand(serve)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "chimed:", err)
		os.Exit(1)
	}
}
