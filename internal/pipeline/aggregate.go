package pipeline

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// Strategy is a frame reduction. The set of strategies is closed: Arithmetic,
// VolumeWeighted, Axisymmetric and Passthrough.
type Strategy interface {
	Name() string
	reduce(raw model.RawFieldFrame, aux Auxiliary) (model.AggregationResult, error)
	accepts(kind model.EntityKind) error
	needsVolumes() bool
	needsCoordinates() bool
}

// Auxiliary holds the per-frame inputs of weighted strategies
type Auxiliary struct {
	Volumes []float64
	Coords  [][]float64
}

// Arithmetic is the unweighted mean and population standard deviation
type Arithmetic struct{}

// VolumeWeighted weights each row by its integration point volume
type VolumeWeighted struct{}

// Axisymmetric integrates one component over the ring area swept by an
// ordered node path. Axis is the coordinate index used as radius. Each
// segment is weighted by |Δr|, so a path that doubles back adds area
// instead of cancelling it.
type Axisymmetric struct {
	Axis      int
	Component string
}

// Passthrough keeps every row unreduced
type Passthrough struct{}

func (Arithmetic) Name() string     { return "arithmetic" }
func (VolumeWeighted) Name() string { return "volume" }
func (Axisymmetric) Name() string   { return "axisymmetric" }
func (Passthrough) Name() string    { return "none" }

func (Arithmetic) needsVolumes() bool     { return false }
func (VolumeWeighted) needsVolumes() bool { return true }
func (Axisymmetric) needsVolumes() bool   { return false }
func (Passthrough) needsVolumes() bool    { return false }

func (Arithmetic) needsCoordinates() bool     { return false }
func (VolumeWeighted) needsCoordinates() bool { return false }
func (Axisymmetric) needsCoordinates() bool   { return true }
func (Passthrough) needsCoordinates() bool    { return false }

func (Arithmetic) accepts(model.EntityKind) error  { return nil }
func (Passthrough) accepts(model.EntityKind) error { return nil }

func (VolumeWeighted) accepts(kind model.EntityKind) error {
	if kind != model.Element {
		return fmt.Errorf("%w: volume weighting needs an element region, got %s", errs.ErrInvalidStrategy, kind)
	}
	return nil
}

func (Axisymmetric) accepts(kind model.EntityKind) error {
	if kind != model.Node {
		return fmt.Errorf("%w: axisymmetric weighting needs a node path, got %s", errs.ErrInvalidStrategy, kind)
	}
	return nil
}

// ParseStrategy maps a config strategy onto its variant
func ParseStrategy(spec model.StrategySpec) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "", "arithmetic", "mean":
		return Arithmetic{}, nil
	case "volume", "volume-weighted", "ivol":
		return VolumeWeighted{}, nil
	case "axisymmetric", "area-weighted", "area":
		if spec.Axis < 0 || spec.Axis > 2 {
			return nil, fmt.Errorf("%w: axis %d out of range [0,2]", errs.ErrInvalidStrategy, spec.Axis)
		}
		return Axisymmetric{Axis: spec.Axis, Component: spec.Component}, nil
	case "none", "raw", "passthrough":
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errs.ErrInvalidStrategy, spec.Type)
	}
}

// Aggregate reduces one raw frame. It depends on nothing but its arguments.
func Aggregate(raw model.RawFieldFrame, s Strategy, aux Auxiliary) (model.AggregationResult, error) {
	if len(raw.Values) == 0 {
		return model.AggregationResult{}, fmt.Errorf("frame %d of %s has no values", raw.Frame, raw.Field)
	}
	return s.reduce(raw, aux)
}

func column(rows [][]float64, c int) []float64 {
	col := make([]float64, len(rows))
	for i, row := range rows {
		col[i] = row[c]
	}
	return col
}

func (Arithmetic) reduce(raw model.RawFieldFrame, _ Auxiliary) (model.AggregationResult, error) {
	n := len(raw.Components)
	mean, spread := make([]float64, n), make([]float64, n)
	for c := 0; c < n; c++ {
		mean[c], spread[c] = stat.PopMeanStdDev(column(raw.Values, c), nil)
	}
	return model.AggregationResult{
		Components: raw.Components,
		Mean:       [][]float64{mean},
		Spread:     [][]float64{spread},
	}, nil
}

// reduce computes sum(v*w)/sum(w) per component. The spread is the
// population standard deviation of v*w, not normalized by sum(w).
func (VolumeWeighted) reduce(raw model.RawFieldFrame, aux Auxiliary) (model.AggregationResult, error) {
	if len(aux.Volumes) != len(raw.Values) {
		return model.AggregationResult{}, &errs.VolumeMismatchError{
			Frame:      raw.Frame,
			FieldRows:  len(raw.Values),
			VolumeRows: len(aux.Volumes),
		}
	}
	if floats(aux.Volumes).sum() == 0 {
		return model.AggregationResult{}, fmt.Errorf("frame %d: integration point volumes sum to zero", raw.Frame)
	}

	n := len(raw.Components)
	mean, spread := make([]float64, n), make([]float64, n)
	for c := 0; c < n; c++ {
		col := column(raw.Values, c)
		mean[c] = stat.Mean(col, aux.Volumes)

		weighted := make([]float64, len(col))
		for i, v := range col {
			weighted[i] = v * aux.Volumes[i]
		}
		spread[c] = stat.PopStdDev(weighted, nil)
	}
	return model.AggregationResult{
		Components: raw.Components,
		Mean:       [][]float64{mean},
		Spread:     [][]float64{spread},
	}, nil
}

func (a Axisymmetric) reduce(raw model.RawFieldFrame, aux Auxiliary) (model.AggregationResult, error) {
	rows := len(raw.Values)
	if rows < 2 {
		return model.AggregationResult{}, fmt.Errorf("frame %d: axisymmetric path needs at least 2 nodes, got %d", raw.Frame, rows)
	}
	if len(aux.Coords) != rows {
		return model.AggregationResult{}, fmt.Errorf("frame %d: %d coordinates for %d path values", raw.Frame, len(aux.Coords), rows)
	}

	c := 0
	if a.Component != "" {
		c = -1
		for i, label := range raw.Components {
			if strings.EqualFold(label, a.Component) {
				c = i
				break
			}
		}
		if c < 0 {
			return model.AggregationResult{}, fmt.Errorf("%w: component %s not in %v", errs.ErrInvalidStrategy, a.Component, raw.Components)
		}
	}

	weights := make([]float64, rows-1)
	mids := make([]float64, rows-1)
	for i := 0; i < rows-1; i++ {
		p0, p1 := aux.Coords[i], aux.Coords[i+1]
		if a.Axis >= len(p0) || a.Axis >= len(p1) {
			return model.AggregationResult{}, fmt.Errorf("frame %d: axis %d beyond %d coordinates", raw.Frame, a.Axis, len(p0))
		}
		r0, r1 := p0[a.Axis], p1[a.Axis]
		weights[i] = 2 * math.Pi * (r0 + r1) / 2 * math.Abs(r1-r0)
		mids[i] = (raw.Values[i][c] + raw.Values[i+1][c]) / 2
	}
	if floats(weights).sum() == 0 {
		return model.AggregationResult{}, fmt.Errorf("frame %d: path sweeps no area", raw.Frame)
	}

	mean, spread := stat.PopMeanStdDev(mids, weights)
	return model.AggregationResult{
		Components: []string{raw.Components[c]},
		Mean:       [][]float64{{mean}},
		Spread:     [][]float64{{spread}},
	}, nil
}

func (Passthrough) reduce(raw model.RawFieldFrame, _ Auxiliary) (model.AggregationResult, error) {
	mean := make([][]float64, len(raw.Values))
	spread := make([][]float64, len(raw.Values))
	for i, row := range raw.Values {
		mean[i] = append([]float64(nil), row...)
		spread[i] = make([]float64, len(row))
	}
	return model.AggregationResult{Components: raw.Components, Mean: mean, Spread: spread}, nil
}

type floats []float64

func (f floats) sum() float64 {
	var s float64
	for _, v := range f {
		s += v
	}
	return s
}

// Reaggregate reduces a passthrough series again under another strategy.
// aux is indexed like the series records and may be nil for Arithmetic.
func Reaggregate(series *model.FieldSeries, s Strategy, aux []Auxiliary) (*model.FieldSeries, error) {
	if series.Strategy != (Passthrough{}).Name() {
		return nil, fmt.Errorf("series %s/%s/%s was reduced with %s, raw rows are gone",
			series.Step, series.Region, series.Field, series.Strategy)
	}
	if err := s.accepts(series.Kind); err != nil {
		return nil, err
	}

	results := make([]model.AggregationResult, len(series.Records))
	frames := make([]model.Frame, len(series.Records))
	for i, rec := range series.Records {
		var a Auxiliary
		if i < len(aux) {
			a = aux[i]
		}
		raw := model.RawFieldFrame{
			Field:      series.Field,
			Frame:      rec.Frame,
			Time:       rec.Time,
			Components: series.Components,
			Values:     rec.Mean,
		}
		res, err := Aggregate(raw, s, a)
		if err != nil {
			return nil, errs.WithContext(series.Step, series.Region, series.Field, err)
		}
		results[i] = res
		frames[i] = model.Frame{Index: rec.Frame, Time: rec.Time}
	}

	out := AssembleSeries(series.Step, model.MeshSubset{Key: series.Region, Kind: series.Kind}, series.Field, s, frames, results)
	return out, nil
}
