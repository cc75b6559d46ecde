package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"yield-monitor-go/internal/config"
	"yield-monitor-go/internal/logging"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "yield-monitor",
	Short:         "Morpho vault yield tracking with daily push and email summaries",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		foundEnv := config.LoadDotEnv()

		var err error
		if cfg, err = config.FromEnv(); err != nil {
			return err
		}
		if logger, err = logging.New(cfg.LogLevel, cfg.LogDevelopment); err != nil {
			return err
		}
		if !foundEnv {
			logger.Info("no .env file found, using environment")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
