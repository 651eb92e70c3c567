package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"go-fea-pipeline/internal/config"
	"go-fea-pipeline/internal/errs"
)

var watchRecord bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run the extraction whenever the config file changes",
	Long: `Run the configured extraction once, then again every time the config
file is saved. A change arriving while a run is in progress cancels that
run and starts over with the new config. Invalid edits are logged and
ignored until the file is fixed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return errors.New("watch needs --config")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signalContext()
		defer stop()

		changes := make(chan *config.Config, 1)
		_, err = config.Watch(configPath, func(next *config.Config, err error) {
			if err != nil {
				log.Warn("config change ignored", "error", err, "config_error", errs.IsConfigError(err))
				return
			}
			// keep only the newest pending config
			select {
			case <-changes:
			default:
			}
			changes <- next
		})
		if err != nil {
			return err
		}
		log.Info("watching config", "path", configPath)

		for {
			runCtx, cancel := context.WithCancel(ctx)
			done := make(chan struct{})
			go func(cfg *config.Config) {
				defer close(done)
				summary, err := runExtraction(runCtx, cfg, log, watchRecord)
				if err != nil && !errors.Is(err, context.Canceled) {
					log.Error("extraction failed", "error", err)
					return
				}
				printSummary(cmd.OutOrStdout(), summary)
			}(cfg)

			select {
			case <-ctx.Done():
				cancel()
				<-done
				return nil
			case cfg = <-changes:
				log.Info("config changed, restarting extraction")
				cancel()
				<-done
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchRecord, "record", false, "record each run in the run store (store.path)")
	rootCmd.AddCommand(watchCmd)
}
