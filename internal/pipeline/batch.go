package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/pkg/utils"
)

// Recorder persists the outcome of a run as archives finish. *store.DB
// implements it.
type Recorder interface {
	SaveRunError(runID, archive string, f model.Failure) error
	SaveOutput(runID, archive string, out model.ExportResult) error
	SaveSeries(runID, archive string, s *model.FieldSeries) error
}

// BatchDeps carries the collaborators of RunBatch. Everything but RunID
// is optional.
type BatchDeps struct {
	RunID    string
	Logger   *logger.Logger
	Metrics  *Metrics
	Recorder Recorder
}

// DefaultWorkers is used when the run config does not set a worker count
const DefaultWorkers = 4

// ValidateRunSpec checks a run config before any archive is touched and
// returns its request plans
func ValidateRunSpec(spec model.RunSpec) ([]RequestPlan, error) {
	plans, err := PlanRequests(spec.FieldRequests)
	var problems []error
	if err != nil {
		problems = append(problems, err)
	}
	if spec.Frames.SampleCount < 0 {
		problems = append(problems, errors.New("frames.sample_count must not be negative"))
	}
	if spec.Run.Workers < 0 {
		problems = append(problems, errors.New("run.workers must not be negative"))
	}
	if err := ValidateFormats(spec.Export.Formats); err != nil {
		problems = append(problems, err)
	}
	if err := ValidateRetry(spec.Run.Retry); err != nil {
		problems = append(problems, err)
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return plans, nil
}

// RunBatch extracts every archive of spec independently, each in its own
// goroutine with its own handle. A failing archive does not stop the
// others; only an invalid config or a cancelled context ends the run early.
func RunBatch(ctx context.Context, spec model.RunSpec, deps BatchDeps) (model.RunSummary, error) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("run_id", deps.RunID)
	tracker := NewTracker(deps.RunID, deps.Metrics)

	plans, err := ValidateRunSpec(spec)
	if err != nil {
		return tracker.Finish(), err
	}
	prefix := spec.Export.Prefix
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	archives, err := DiscoverArchives(spec.Archives, prefix+"_")
	if err != nil {
		return tracker.Finish(), err
	}

	if timeout := utils.ParseDuration(spec.Run.Timeout, 0); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	workers := spec.Run.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	log.Info("run started", "archives", len(archives), "requests", len(plans), "workers", workers)

	exporter := NewExportManager(spec.Export)
	opts := Options{
		Retry:   RetryPolicyFrom(spec.Run.Retry),
		Tracker: tracker,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range archives {
		path := path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			opts := opts
			opts.Logger = log.With("archive", path)
			sum := runArchive(gctx, path, plans, spec.Frames.SampleCount, exporter, opts, deps)
			tracker.RecordArchive(sum)
			// Only cancellation propagates; archive failures are in the summary.
			if err := gctx.Err(); err != nil {
				return err
			}
			return nil
		})
	}
	err = g.Wait()

	summary := tracker.Finish()
	log.Info("run finished", "status", summary.Status, "archives", len(summary.Archives))
	return summary, err
}

func runArchive(ctx context.Context, path string, plans []RequestPlan, sampleCount int, exporter *ExportManager, opts Options, deps BatchDeps) model.ArchiveSummary {
	log := opts.Logger
	start := time.Now()
	sum := model.ArchiveSummary{Archive: path}

	res, err := ExtractArchive(ctx, path, plans, sampleCount, opts)
	opts.Tracker.RecordResult(res)
	if err != nil {
		log.Error("archive failed", "error", err)
		sum.Status = "failed"
		sum.Error = err.Error()
		sum.Duration = time.Since(start)
		record(log, deps, func(r Recorder) error {
			return r.SaveRunError(deps.RunID, path, model.Failure{Archive: path, Kind: "archive", Message: err.Error()})
		})
		if res != nil {
			sum.Warnings, sum.Failures = len(res.Warnings), len(res.Failures)
		}
		return sum
	}

	series := res.Series()
	sum.Series = len(series)
	sum.Records = res.RecordCount()
	sum.Warnings = len(res.Warnings)
	sum.Failures = len(res.Failures)

	endExport := opts.Tracker.StartStage(StageExport)
	sum.Outputs = exporter.Export(res)
	var exportErr error
	succeeded := 0
	for _, out := range sum.Outputs {
		if out.Success {
			succeeded++
			log.Info("export written", "format", out.Type, "path", out.Path, "records", out.RecordCount)
		} else {
			exportErr = fmt.Errorf("%s export: %s", out.Type, out.Error)
			log.Error("export failed", "format", out.Type, "error", out.Error)
		}
	}
	endExport(succeeded, exportErr)

	record(log, deps, func(r Recorder) error {
		var errs []error
		for _, f := range res.Failures {
			errs = append(errs, r.SaveRunError(deps.RunID, path, f))
		}
		for _, w := range res.Warnings {
			errs = append(errs, r.SaveRunError(deps.RunID, path, model.Failure(w)))
		}
		for _, out := range sum.Outputs {
			errs = append(errs, r.SaveOutput(deps.RunID, path, out))
		}
		for _, s := range series {
			errs = append(errs, r.SaveSeries(deps.RunID, path, s))
		}
		return errors.Join(errs...)
	})

	switch {
	case succeeded == 0:
		sum.Status = "failed"
		if exportErr != nil {
			sum.Error = exportErr.Error()
		}
	case exportErr != nil || sum.Warnings > 0 || sum.Failures > 0:
		sum.Status = "partial"
	default:
		sum.Status = "completed"
	}
	sum.Duration = time.Since(start)
	log.Info("archive finished", "status", sum.Status, "series", sum.Series, "warnings", sum.Warnings, "failures", sum.Failures, "duration", sum.Duration)
	return sum
}

func record(log *logger.Logger, deps BatchDeps, fn func(Recorder) error) {
	if deps.Recorder == nil {
		return
	}
	if err := fn(deps.Recorder); err != nil {
		log.Error("failed to record run outcome", "error", err)
	}
}
