package pipeline

import "go-fea-pipeline/internal/model"

// AssembleSeries zips per-frame results with their frame times. Component
// labels are taken from the first result and stored once on the series.
func AssembleSeries(step string, subset model.MeshSubset, field string, s Strategy, frames []model.Frame, results []model.AggregationResult) *model.FieldSeries {
	series := &model.FieldSeries{
		Step:     step,
		Region:   subset.Key,
		Kind:     subset.Kind,
		Field:    field,
		Strategy: s.Name(),
		Records:  make([]model.TimeSeriesRecord, 0, len(results)),
	}
	if len(results) > 0 {
		series.Components = results[0].Components
	}
	for i, res := range results {
		series.Records = append(series.Records, model.TimeSeriesRecord{
			Frame:  frames[i].Index,
			Time:   frames[i].Time,
			Mean:   res.Mean,
			Spread: res.Spread,
		})
	}
	return series
}
