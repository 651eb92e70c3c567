package model

import "sort"

// RawFieldFrame is the raw per-entity array of one field on one subset for
// one frame. Values has one row per value location (node, element or
// integration point) and one column per component.
type RawFieldFrame struct {
	Field      string      `json:"field"`
	Frame      int         `json:"frame"`
	Time       float64     `json:"time"`
	Components []string    `json:"components"`
	Values     [][]float64 `json:"values"`
}

// Rows is the entity count of the frame
func (r RawFieldFrame) Rows() int { return len(r.Values) }

// AggregationResult is a frame reduced under one strategy. Reducing
// strategies produce a single row; passthrough keeps one row per entity.
type AggregationResult struct {
	Components []string    `json:"components"`
	Mean       [][]float64 `json:"mean"`
	Spread     [][]float64 `json:"spread"`
}

// TimeSeriesRecord is one frame of a field series
type TimeSeriesRecord struct {
	Frame  int         `json:"frame"`
	Time   float64     `json:"time"`
	Mean   [][]float64 `json:"mean"`
	Spread [][]float64 `json:"spread"`
}

// FieldSeries is the ordered record list of one (step, region, field).
// Component labels are stored here once, not per record.
type FieldSeries struct {
	Step       string             `json:"step"`
	Region     string             `json:"region"`
	Kind       EntityKind         `json:"kind"`
	Field      string             `json:"field"`
	Strategy   string             `json:"strategy"`
	Components []string           `json:"components"`
	Records    []TimeSeriesRecord `json:"records"`
}

// Rows flattens the series into {TIME, component -> value} maps, one per
// frame, using the first row of each record.
func (s *FieldSeries) Rows() []map[string]float64 {
	out := make([]map[string]float64, 0, len(s.Records))
	for _, rec := range s.Records {
		row := map[string]float64{"TIME": rec.Time}
		if len(rec.Mean) > 0 {
			for i, c := range s.Components {
				if i < len(rec.Mean[0]) {
					row[c] = rec.Mean[0][i]
				}
			}
		}
		out = append(out, row)
	}
	return out
}

// Warning is a recoverable problem surfaced in the final report
type Warning struct {
	Archive string `json:"archive,omitempty"`
	Step    string `json:"step,omitempty"`
	Region  string `json:"region,omitempty"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Failure is a request or field that could not be extracted
type Failure Warning

// Result is everything extracted from one archive:
// step -> region key -> field -> series.
type Result struct {
	Archive   string                                       `json:"archive"`
	StepOrder []string                                     `json:"step_order"`
	Steps     map[string]map[string]map[string]*FieldSeries `json:"steps"`
	Warnings  []Warning                                    `json:"warnings,omitempty"`
	Failures  []Failure                                    `json:"failures,omitempty"`
}

// NewResult returns an empty result for an archive
func NewResult(archive string) *Result {
	return &Result{
		Archive: archive,
		Steps:   make(map[string]map[string]map[string]*FieldSeries),
	}
}

// Add files a series under its step, region and field
func (r *Result) Add(s *FieldSeries) {
	regions, ok := r.Steps[s.Step]
	if !ok {
		regions = make(map[string]map[string]*FieldSeries)
		r.Steps[s.Step] = regions
		r.StepOrder = append(r.StepOrder, s.Step)
	}
	fields, ok := regions[s.Region]
	if !ok {
		fields = make(map[string]*FieldSeries)
		regions[s.Region] = fields
	}
	fields[s.Field] = s
}

// Get looks up one series
func (r *Result) Get(step, region, field string) (*FieldSeries, bool) {
	s, ok := r.Steps[step][region][field]
	return s, ok
}

// Series returns all series ordered by step order, region and field name
func (r *Result) Series() []*FieldSeries {
	var out []*FieldSeries
	for _, step := range r.StepOrder {
		regions := r.Steps[step]
		regionKeys := make([]string, 0, len(regions))
		for k := range regions {
			regionKeys = append(regionKeys, k)
		}
		sort.Strings(regionKeys)
		for _, rk := range regionKeys {
			fields := regions[rk]
			names := make([]string, 0, len(fields))
			for f := range fields {
				names = append(names, f)
			}
			sort.Strings(names)
			for _, f := range names {
				out = append(out, fields[f])
			}
		}
	}
	return out
}

// RecordCount is the total number of frame records across all series
func (r *Result) RecordCount() int {
	n := 0
	for _, s := range r.Series() {
		n += len(s.Records)
	}
	return n
}
