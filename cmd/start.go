package cmd

import (
	"os"

	"github.com/evgsol/telegram-tryon-bot/internal/bot"
	"github.com/evgsol/telegram-tryon-bot/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStartCmd(verbose bool, version string, buildTime string) *cobra.Command {
	return &cobra.Command{
		Use:          "start <config.toml>",
		Short:        "telegram-tryon-bot start",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(verbose, args[0], version, buildTime)
		},
	}
}

func run(verbose bool, configFile string, version string, buildTime string) error {
	// Bootstrap logger for the config loading phase only; the real logger is
	// built inside StartBot from the loaded log config.
	tempLogger, _ := zap.NewProduction()
	defer tempLogger.Sync()

	tempLogger.Info("Loading config file", zap.String("path", configFile))
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		tempLogger.Error("Config file does not exist", zap.String("path", configFile))
		return err
	}

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		tempLogger.Error("Failed to load config", zap.Error(err))
		return err
	}

	if err := config.ValidateConfig(cfg); err != nil {
		tempLogger.Error("Config validation failed", zap.Error(err))
		return err
	}

	return bot.StartBot(cfg, version, buildTime)
}
