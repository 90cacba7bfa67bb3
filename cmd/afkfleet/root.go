package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/EgorLis/afkfleet/internal/config"
	"github.com/EgorLis/afkfleet/internal/logger"
)

// version проставляется через -ldflags "-X main.version=..."
var version = "dev"

type rootFlags struct {
	configPath string
	envFile    string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "afkfleet",
		Short:         "Fleet of Discord bots that idle in voice channels",
		Long:          "afkfleet logs in every configured bot, keeps them sitting in voice channels with a silent audio loop and serves slash commands to move them around.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", config.DefaultConfigFile, "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, ".env file (optional)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override log level (debug|info|warn|error)")

	run := newRunCmd(flags)
	// без подкоманды запускаем флот
	rootCmd.RunE = run.RunE

	rootCmd.AddCommand(
		run,
		newRegisterCmd(flags),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}

// load читает конфиг и собирает логгер с учётом флагов.
func (f *rootFlags) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath, f.envFile)
	if err != nil {
		return nil, nil, err
	}
	if f.logLevel != "" {
		cfg.Logging.Level = f.logLevel
	}
	return cfg, logger.New(cfg.Logging), nil
}
