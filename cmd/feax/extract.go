package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"go-fea-pipeline/internal/config"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/pipeline"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/internal/store"
)

var extractOpts struct {
	sampleCount int
	formats     []string
	outDir      string
	prefix      string
	workers     int
	record      bool
}

var extractCmd = &cobra.Command{
	Use:   "extract [archive...]",
	Short: "Run the configured extraction",
	Long: `Extract every field request of the config from each archive.

Archives given on the command line replace the archives section of the
config; they may be glob patterns. Each archive is processed on its own
and produces its own output files; a failing archive does not stop the
others. The exit status is non-zero when no archive succeeded.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		applyExtractFlags(cmd, cfg, args)

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer log.Sync()

		ctx, stop := signalContext()
		defer stop()

		summary, err := runExtraction(ctx, cfg, log, extractOpts.record)
		printSummary(cmd.OutOrStdout(), summary)
		if err != nil {
			return err
		}
		if summary.Failed() {
			return errors.New("no archive was extracted")
		}
		return nil
	},
}

func init() {
	f := extractCmd.Flags()
	f.IntVarP(&extractOpts.sampleCount, "samples", "n", 0, "frames per step (0 keeps every frame)")
	f.StringSliceVarP(&extractOpts.formats, "format", "f", nil, "export formats: json, records, csv, npz")
	f.StringVarP(&extractOpts.outDir, "out", "o", "", "output directory (default: next to each archive)")
	f.StringVar(&extractOpts.prefix, "prefix", "", "output file prefix")
	f.IntVarP(&extractOpts.workers, "workers", "w", 0, "archives processed in parallel")
	f.BoolVar(&extractOpts.record, "record", false, "record the run in the run store (store.path)")
	rootCmd.AddCommand(extractCmd)
}

func applyExtractFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	if len(args) > 0 {
		cfg.Archives = model.ArchiveSource{Paths: args}
	}
	flags := cmd.Flags()
	if flags.Changed("samples") {
		cfg.Frames.SampleCount = extractOpts.sampleCount
	}
	if flags.Changed("format") {
		cfg.Export.Formats = extractOpts.formats
	}
	if flags.Changed("out") {
		cfg.Export.Directory = extractOpts.outDir
	}
	if flags.Changed("prefix") {
		cfg.Export.Prefix = extractOpts.prefix
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = extractOpts.workers
	}
}

// runExtraction executes one batch, optionally recording it in the run store
func runExtraction(ctx context.Context, cfg *config.Config, log *logger.Logger, record bool) (model.RunSummary, error) {
	deps := pipeline.BatchDeps{RunID: uuid.NewString(), Logger: log}

	var db *store.DB
	if record {
		var err error
		if db, err = store.Open(cfg.Store.Path); err != nil {
			return model.RunSummary{}, fmt.Errorf("open run store: %w", err)
		}
		defer db.Close()
		if err := db.SaveRun(deps.RunID, cfg.RunSpec); err != nil {
			return model.RunSummary{}, fmt.Errorf("save run: %w", err)
		}
		if err := db.UpdateRunStatus(deps.RunID, store.StatusRunning); err != nil {
			return model.RunSummary{}, err
		}
		deps.Recorder = db
	}

	summary, err := pipeline.RunBatch(ctx, cfg.RunSpec, deps)
	if db != nil {
		status := summary.Status
		if err != nil {
			_ = db.SaveRunError(deps.RunID, "", model.Failure{Kind: "run", Message: err.Error()})
			if len(summary.Archives) == 0 {
				status = store.StatusFailed
			}
		}
		if uerr := db.UpdateRunStatus(deps.RunID, status); uerr != nil {
			log.Error("failed to update run status", "error", uerr)
		}
	}
	return summary, err
}

func printSummary(out io.Writer, summary model.RunSummary) {
	if len(summary.Archives) == 0 {
		return
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ARCHIVE\tSTATUS\tSERIES\tRECORDS\tWARNINGS\tFAILURES\tOUTPUTS")
	for _, a := range summary.Archives {
		written := 0
		for _, o := range a.Outputs {
			if o.Success {
				written++
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%d\n", a.Archive, a.Status, a.Series, a.Records, a.Warnings, a.Failures, written)
	}
	tw.Flush()
	fmt.Fprintf(out, "run %s %s in %v\n", summary.RunID, summary.Status, summary.EndTime.Sub(summary.StartTime).Round(time.Millisecond))
	for _, a := range summary.Archives {
		if a.Error != "" {
			fmt.Fprintf(out, "%s: %s\n", a.Archive, a.Error)
		}
	}
}
