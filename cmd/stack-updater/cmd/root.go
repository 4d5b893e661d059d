package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/stack-updater/internal/config"
	"github.com/oshokin/stack-updater/internal/logger"
	"github.com/oshokin/stack-updater/internal/service/updater"
	"github.com/oshokin/stack-updater/internal/version"
)

var (
	// configPath to the configuration YAML file.
	configPath string

	// rootPath is the deployment root to update; defaults to the working directory.
	rootPath string

	// logLevel adjusts logging verbosity.
	logLevel string

	// rootCmd represents the base command that runs the full update pipeline.
	rootCmd = &cobra.Command{
		Use:   "stack-updater",
		Short: "Update the deployed application stack to the latest published release",
		Long: "Resolve the locally deployed version against the release service, " +
			"download and stage the latest release, swap it into the deployment root " +
			"while preserving migration history, then migrate and restart containers.",
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if level, ok := logger.ParseLogLevel(logLevel); ok {
				logger.SetLevel(level)
			}
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			options := &updater.Options{
				ConfigPath: configPath,
				Root:       rootPath,
			}

			return updater.Run(ctx, options)
		},
	}
)

// Execute runs the stack-updater CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (defaults to "+config.DefaultConfigFilename+" in the deployment root)")
	rootCmd.PersistentFlags().StringVarP(&rootPath, "root", "r", "", "deployment root (defaults to the working directory)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "logging level (debug, info, warn, error)")
}
