package pipeline

import (
	"context"
	"fmt"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// VolumeField is the integration point volume output used for weighting
const VolumeField = "IVOL"

// Extractor pulls raw field arrays from one open store
type Extractor struct {
	store archive.Store
}

// NewExtractor binds an extractor to an open store. The store stays owned
// by the caller.
func NewExtractor(store archive.Store) *Extractor {
	return &Extractor{store: store}
}

// Extract returns one raw frame per requested frame, rows in subset order.
// Component labels come from the first frame; a scalar field is labelled
// with its own name. Tensor fields gain a <FIELD>MAXPRINC column.
func (x *Extractor) Extract(ctx context.Context, step string, frames []model.Frame, field string, subset model.MeshSubset) ([]model.RawFieldFrame, error) {
	if len(frames) == 0 {
		return nil, nil
	}
	wrap := func(err error) error { return errs.WithContext(step, subset.Key, field, err) }

	components, err := x.store.FieldComponents(step, frames[0].Index, field)
	if err != nil {
		return nil, wrap(err)
	}
	if len(components) == 0 {
		components = []string{field}
	}

	derive := IsTensorField(field) && len(components) > 1
	labels := components
	if derive {
		labels = append(append([]string(nil), components...), field+MaxPrincipalSuffix)
	}
	provider, hasProvider := x.store.(archive.PrincipalProvider)

	out := make([]model.RawFieldFrame, 0, len(frames))
	for _, fr := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := x.store.FieldValues(step, fr.Index, field, subset)
		if err != nil {
			return nil, wrap(err)
		}
		for i, row := range rows {
			if len(row) != len(components) {
				return nil, wrap(fmt.Errorf("frame %d row %d has %d values, expected %d components",
					fr.Index, i, len(row), len(components)))
			}
		}

		if derive {
			var principal []float64
			if hasProvider {
				principal, err = provider.MaxPrincipal(step, fr.Index, field, subset)
			} else {
				principal, err = MaxPrincipal(field, components, rows)
			}
			if err != nil {
				return nil, wrap(err)
			}
			if len(principal) != len(rows) {
				return nil, wrap(fmt.Errorf("frame %d: %d principal values for %d rows", fr.Index, len(principal), len(rows)))
			}
			rows = appendColumn(rows, principal)
		}

		out = append(out, model.RawFieldFrame{
			Field:      field,
			Frame:      fr.Index,
			Time:       fr.Time,
			Components: labels,
			Values:     rows,
		})
	}
	return out, nil
}

// Volumes extracts the integration point volumes of a subset as one weight
// vector per frame
func (x *Extractor) Volumes(ctx context.Context, step string, frames []model.Frame, subset model.MeshSubset) ([][]float64, error) {
	raw, err := x.Extract(ctx, step, frames, VolumeField, subset)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(raw))
	for i, fr := range raw {
		w := make([]float64, len(fr.Values))
		for j, row := range fr.Values {
			w[j] = row[0]
		}
		out[i] = w
	}
	return out, nil
}

// Coordinates returns per-frame node positions for path strategies. The
// deformed COORD output is used when the archive wrote it, otherwise the
// undeformed mesh coordinates are repeated for every frame.
func (x *Extractor) Coordinates(ctx context.Context, step string, frames []model.Frame, subset model.MeshSubset) ([][][]float64, error) {
	raw, err := x.Extract(ctx, step, frames, "COORD", subset)
	if err == nil {
		out := make([][][]float64, len(raw))
		for i, fr := range raw {
			out[i] = fr.Values
		}
		return out, nil
	}
	if !errs.IsRecoverable(err) {
		return nil, err
	}

	coords, err := x.store.NodeCoordinates(subset)
	if err != nil {
		return nil, errs.WithContext(step, subset.Key, "COORD", err)
	}
	out := make([][][]float64, len(frames))
	for i := range frames {
		out[i] = coords
	}
	return out, nil
}
