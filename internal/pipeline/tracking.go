package pipeline

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"go-fea-pipeline/internal/model"
)

// Stage names reported by the tracker
const (
	StageOpen      = "open"
	StageResolve   = "resolve"
	StageExtract   = "extract"
	StageAggregate = "aggregate"
	StageExport    = "export"
)

// Metrics holds the prometheus collectors of the pipeline
type Metrics struct {
	ArchivesTotal *prometheus.CounterVec
	SeriesTotal   prometheus.Counter
	FramesTotal   prometheus.Counter
	WarningsTotal *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors
func NewMetrics() *Metrics {
	return &Metrics{
		ArchivesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feax",
				Subsystem: "archives",
				Name:      "processed_total",
				Help:      "Archives processed, by final status",
			},
			[]string{"status"},
		),
		SeriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "feax",
				Subsystem: "series",
				Name:      "extracted_total",
				Help:      "Field series extracted",
			},
		),
		FramesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "feax",
				Subsystem: "frames",
				Name:      "aggregated_total",
				Help:      "Frames reduced across all series",
			},
		),
		WarningsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feax",
				Subsystem: "report",
				Name:      "warnings_total",
				Help:      "Recoverable problems, by kind",
			},
			[]string{"kind"},
		),
		FailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "feax",
				Subsystem: "report",
				Name:      "failures_total",
				Help:      "Failed requests and fields, by kind",
			},
			[]string{"kind"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "feax",
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Duration of pipeline stages per archive",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
}

// Register adds all collectors to reg
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.ArchivesTotal, m.SeriesTotal, m.FramesTotal, m.WarningsTotal, m.FailuresTotal, m.StageDuration,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Tracker collects stage timings and outcomes of one run. It is safe for
// concurrent use by the archives of a batch.
type Tracker struct {
	mu      sync.Mutex
	summary model.RunSummary
	metrics *Metrics
}

// NewTracker starts tracking a run. metrics may be nil.
func NewTracker(runID string, metrics *Metrics) *Tracker {
	return &Tracker{
		metrics: metrics,
		summary: model.RunSummary{
			RunID:     runID,
			StartTime: time.Now(),
			Status:    "running",
			Stages:    make(map[string]model.StageMetrics),
		},
	}
}

// StartStage times a stage; the returned func ends it
func (t *Tracker) StartStage(stage string) func(items int, err error) {
	start := time.Now()
	return func(items int, err error) {
		end := time.Now()
		if t == nil {
			return
		}
		t.mu.Lock()
		sm := t.summary.Stages[stage]
		if sm.StartTime.IsZero() || start.Before(sm.StartTime) {
			sm.StartTime = start
		}
		if end.After(sm.EndTime) {
			sm.EndTime = end
		}
		sm.Stage = stage
		sm.Duration += end.Sub(start)
		sm.Items += int64(items)
		if err != nil {
			sm.Errors++
		}
		t.summary.Stages[stage] = sm
		t.mu.Unlock()

		if t.metrics != nil {
			t.metrics.StageDuration.WithLabelValues(stage).Observe(end.Sub(start).Seconds())
		}
	}
}

// RecordResult counts the series, warnings and failures of one archive
func (t *Tracker) RecordResult(res *model.Result) {
	if t == nil || t.metrics == nil || res == nil {
		return
	}
	for _, s := range res.Series() {
		t.metrics.SeriesTotal.Inc()
		t.metrics.FramesTotal.Add(float64(len(s.Records)))
	}
	for _, w := range res.Warnings {
		t.metrics.WarningsTotal.WithLabelValues(w.Kind).Inc()
	}
	for _, f := range res.Failures {
		t.metrics.FailuresTotal.WithLabelValues(f.Kind).Inc()
	}
}

// RecordArchive files the summary of a finished archive
func (t *Tracker) RecordArchive(sum model.ArchiveSummary) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.summary.Archives = append(t.summary.Archives, sum)
	t.mu.Unlock()
	if t.metrics != nil {
		t.metrics.ArchivesTotal.WithLabelValues(sum.Status).Inc()
	}
}

// Finish closes the run and returns its summary
func (t *Tracker) Finish() model.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.summary.EndTime = time.Now()
	t.summary.Status = runStatus(t.summary.Archives)
	return t.snapshot()
}

// Summary returns a copy of the current state
func (t *Tracker) Summary() model.RunSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *Tracker) snapshot() model.RunSummary {
	out := t.summary
	out.Archives = append([]model.ArchiveSummary(nil), t.summary.Archives...)
	out.Stages = make(map[string]model.StageMetrics, len(t.summary.Stages))
	for k, v := range t.summary.Stages {
		out.Stages[k] = v
	}
	return out
}

func runStatus(archives []model.ArchiveSummary) string {
	if len(archives) == 0 {
		return "failed"
	}
	failed, partial := 0, 0
	for _, a := range archives {
		switch a.Status {
		case "failed":
			failed++
		case "partial":
			partial++
		}
	}
	switch {
	case failed == len(archives):
		return "failed"
	case failed > 0 || partial > 0:
		return "partial"
	default:
		return "completed"
	}
}
