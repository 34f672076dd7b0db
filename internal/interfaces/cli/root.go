// Package cli implements the supportbot commands.
package cli

import (
	"fmt"
	"os"

	"project_supportbot/internal/config"
	"project_supportbot/internal/observability"

	"github.com/spf13/cobra"
)

var (
	envFile  string
	logLevel string
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "supportbot",
	Short:         "Rule-based customer support chat",
	Long:          "A single-conversation support assistant with a web API, a Telegram renderer and a terminal REPL.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading SUPPORTBOT_* variables")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override: debug, info, warn or error")
}

// Execute runs the root command and reports errors on stderr
func Execute() error {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig reads the environment and points the logger at stderr
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	observability.Configure(os.Stderr, cfg.LogLevel)
	return cfg, nil
}
