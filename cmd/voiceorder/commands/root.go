// Package commands implements the voiceorder subcommands.
package commands

import (
	"github.com/spf13/cobra"

	"voice-ordering-service/internal/catalog"
	"voice-ordering-service/internal/config"
)

var menuFile string

var rootCmd = &cobra.Command{
	Use:   "voiceorder",
	Short: "Voice ordering service",
	Long: `Voice ordering service.

Turns spoken food orders ("two chocolate corn") into cart additions:
capture sessions against a speech recognizer, transcript-to-menu
resolution, spoken confirmations and an ordering session state machine.

Configuration is read from the environment, for example:
  STT_PROVIDER=google MENU_FILE=menu.yaml KAFKA_ENABLED=true voiceorder serve`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&menuFile, "menu", "", "menu YAML file (overrides MENU_FILE)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(streamWavCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the environment and applies persistent flags.
func loadConfig() *config.Config {
	cfg := config.Load()
	if menuFile != "" {
		cfg.Catalog.Path = menuFile
	}
	return cfg
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.Path == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(cfg.Catalog.Path)
}
