package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"zapfinder/internal/config"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "zapfinder",
	Short: "zapfinder - offer discovery and WhatsApp delivery engine",
	Long: `zapfinder discovers product offers on Shopee and Mercado Livre and
delivers them to a WhatsApp group through a real browser session.

Typical usage:
  zapfinder run                 # one campaign run, right now
  zapfinder schedule            # daemon firing at the configured times
  zapfinder history             # recent delivery attempts`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		if lvl := levelFromConfig(); lvl != nil && !verbose {
			zcfg.Level = zap.NewAtomicLevelAt(*lvl)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// levelFromConfig peeks at logging.level without failing startup; a config
// error surfaces later with proper reporting when the command loads it.
func levelFromConfig() *zapcore.Level {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil
	}
	var lvl zapcore.Level
	if err := lvl.Set(cfg.Logging.Level); err != nil {
		return nil
	}
	return &lvl
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".zapfinder/config.yaml"
	}
	return home + "/.zapfinder/config.yaml"
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "path to the config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
