package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/stack-updater/internal/service/updater"
)

// checkCmd resolves versions and reports, without touching the deployment.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Report whether a newer release is published, without updating",
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		options := &updater.Options{
			ConfigPath: configPath,
			Root:       rootPath,
		}

		return updater.Check(ctx, options)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(checkCmd)
}
