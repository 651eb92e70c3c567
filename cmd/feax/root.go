package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"go-fea-pipeline/internal/config"
	"go-fea-pipeline/internal/platform/logger"
)

var (
	configPath string
	logMode    string
)

var rootCmd = &cobra.Command{
	Use:   "feax",
	Short: "Extract field time series from FEA result archives",
	Long: `feax pulls field outputs (stress, strain, displacement, temperature...)
out of FEA result archives, reduces them over named regions with a
configurable weighting and writes one time series per step, region and
field.

Commands:
  extract        - Run the configured extraction over one or more archives
  watch          - Re-run the extraction whenever the config file changes
  inspect        - List the instances, sets, steps and fields of an archive
  sample-config  - Print an example configuration
  serve          - Start the HTTP API`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (YAML or JSON, default $FEAX_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "development or production (overrides log.mode)")
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Load(config.PathFromEnv())
	}
	return config.Load(configPath)
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	mode := logMode
	if mode == "" && cfg != nil {
		mode = cfg.Log.Mode
	}
	return logger.New(mode)
}

// signalContext is cancelled on Ctrl-C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
