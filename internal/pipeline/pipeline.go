package pipeline

import (
	"context"
	"fmt"
	"time"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/platform/logger"
)

// Options carries the collaborators of an extraction. Zero values are usable.
type Options struct {
	Retry   archive.RetryPolicy
	Logger  *logger.Logger
	Tracker *Tracker
}

func (o Options) log() *logger.Logger {
	if o.Logger == nil {
		return logger.Nop()
	}
	return o.Logger
}

// ExtractArchive opens one archive, resolves the planned requests against
// it and extracts them. The archive handle is closed on every return path.
func ExtractArchive(ctx context.Context, path string, plans []RequestPlan, sampleCount int, opts Options) (res *model.Result, err error) {
	log := opts.log().With("archive", path)

	endOpen := opts.Tracker.StartStage(StageOpen)
	store, err := archive.OpenWithRetry(ctx, path, opts.Retry, func(err error, wait time.Duration) {
		log.Info("archive locked, retrying", "wait", wait, "error", err)
	})
	endOpen(1, err)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	endResolve := opts.Tracker.StartStage(StageResolve)
	requests, failures := ResolveRequests(store, plans)
	endResolve(len(requests), nil)
	for _, f := range failures {
		log.Error("request skipped", "region", f.Region, "kind", f.Kind, "error", f.Message)
	}

	opts.Logger = log
	res, err = Extract(ctx, store, requests, sampleCount, opts)
	if res != nil {
		res.Failures = append(failures, res.Failures...)
	}
	return res, err
}

// Extract runs every request on every step of an open store. Unavailable
// fields become warnings and other per-field errors become failures; only
// cancellation stops the extraction early. Requests that would share a
// region key are told apart by component and strategy.
func Extract(ctx context.Context, store archive.Store, requests []FieldRequest, sampleCount int, opts Options) (*model.Result, error) {
	log := opts.log()
	res := model.NewResult(store.Path())
	x := NewExtractor(store)

	report := func(step, region, field string, err error, recoverable bool) {
		entry := model.Warning{
			Archive: store.Path(),
			Step:    step,
			Region:  region,
			Field:   field,
			Kind:    errs.Kind(err),
			Message: err.Error(),
		}
		if recoverable {
			log.Warn("field skipped", "step", step, "region", region, "field", field, "error", err)
			res.Warnings = append(res.Warnings, entry)
			return
		}
		log.Error("field failed", "step", step, "region", region, "field", field, "error", err)
		res.Failures = append(res.Failures, model.Failure(entry))
	}

	requests, dropped := disambiguate(requests)
	for _, w := range dropped {
		log.Warn("request skipped", "region", w.Region, "field", w.Field, "error", w.Message)
		w.Archive = store.Path()
		res.Warnings = append(res.Warnings, w)
	}

	for _, step := range store.Steps() {
		frames := SampleFrames(step.Frames, sampleCount)
		if len(frames) == 0 {
			res.Warnings = append(res.Warnings, model.Warning{
				Archive: store.Path(),
				Step:    step.Name,
				Kind:    "empty_step",
				Message: "step has no frames",
			})
			continue
		}
		log.Debug("step sampled", "step", step.Name, "frames", len(step.Frames), "sampled", len(frames))

		for _, req := range requests {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			aux, err := auxiliaries(ctx, x, step.Name, frames, req)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return res, ctxErr
				}
				for _, field := range req.Fields {
					report(step.Name, req.Subset.Key, field, fmt.Errorf("%s weighting inputs: %w", req.Strategy.Name(), err), false)
				}
				continue
			}

			for _, field := range req.Fields {
				series, err := extractSeries(ctx, x, step.Name, frames, field, req, aux, opts.Tracker)
				if err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return res, ctxErr
					}
					report(step.Name, req.Subset.Key, field, err, errs.IsRecoverable(err))
					continue
				}
				res.Add(series)
			}
		}
	}
	return res, nil
}

func auxiliaries(ctx context.Context, x *Extractor, step string, frames []model.Frame, req FieldRequest) ([]Auxiliary, error) {
	aux := make([]Auxiliary, len(frames))
	if req.Strategy.needsVolumes() {
		volumes, err := x.Volumes(ctx, step, frames, req.Subset)
		if err != nil {
			return nil, err
		}
		for i := range aux {
			aux[i].Volumes = volumes[i]
		}
	}
	if req.Strategy.needsCoordinates() {
		coords, err := x.Coordinates(ctx, step, frames, req.Subset)
		if err != nil {
			return nil, err
		}
		for i := range aux {
			aux[i].Coords = coords[i]
		}
	}
	return aux, nil
}

func extractSeries(ctx context.Context, x *Extractor, step string, frames []model.Frame, field string, req FieldRequest, aux []Auxiliary, tracker *Tracker) (*model.FieldSeries, error) {
	endExtract := tracker.StartStage(StageExtract)
	raw, err := x.Extract(ctx, step, frames, field, req.Subset)
	endExtract(len(raw), err)
	if err != nil {
		return nil, err
	}

	endAggregate := tracker.StartStage(StageAggregate)
	results := make([]model.AggregationResult, len(raw))
	for i, fr := range raw {
		results[i], err = Aggregate(fr, req.Strategy, aux[i])
		if err != nil {
			endAggregate(i, err)
			return nil, errs.WithContext(step, req.Subset.Key, field, err)
		}
	}
	endAggregate(len(raw), nil)

	return AssembleSeries(step, req.Subset, field, req.Strategy, frames, results), nil
}
