// Package app provides the command line interface for the data API builder.
package app

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/weiplanet/data-api-builder/config"
	"github.com/weiplanet/data-api-builder/logger"
)

var rootCmd = &cobra.Command{
	Use:               "dab",
	DisableAutoGenTag: true,
	Short:             "Data API builder server",
	Long: `Data API builder generates REST and GraphQL APIs from a declarative
runtime configuration, with per-role authorization enforced on every
exposed entity operation.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

// NewRootCmd creates the root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().String("config", "", "Path to the runtime configuration file (overrides DAB_CONFIG)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportSchemaCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)

	return rootCmd
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(_ *cobra.Command, _ []string) {
		cfg, err := config.Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		fmt.Printf("%s %s\n", cfg.App.Name, cfg.App.Version)
	},
}

// loadConfig reads the environment configuration and applies the --config
// override for the runtime configuration path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.RuntimeConfigPath = path
	}
	return cfg, nil
}

// initLogging configures the shared logger from the environment config.
func initLogging(cfg *config.Config) error {
	return logger.InitLogger(logger.LogConfig{
		Level:       cfg.Logging.Level,
		Environment: cfg.App.Environment,
		LogDir:      cfg.Logging.LogDir,
		MaxSize:     cfg.Logging.MaxSize,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAge:      cfg.Logging.MaxAge,
		Compress:    cfg.Logging.Compress,
	})
}
