package cmd

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/universal-brc20/indexer/internal/config"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

var rootCmd = &cobra.Command{
	Use:  "universal-brc20",
	Long: `Universal BRC-20 indexer: indexes OP_RETURN token operations on Bitcoin`,
}

func init() {
	var configFile string

	// Add global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")
	flags.String("network", "mainnet", "network to connect to, E.g. `mainnet` or `testnet`")

	// Bind flags to configuration
	config.BindPFlag("network", flags.Lookup("network"))

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		config := config.Parse(configFile)

		if err := logger.Init(config.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", config.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	rootCmd.AddCommand(
		NewRunCommand(),
		NewVersionCommand(),
		NewMigrateCommand(),
	)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute root command", slogx.Error(err))
	}
}
