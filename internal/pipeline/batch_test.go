package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/archive/archivetest"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

type memRecorder struct {
	mu      sync.Mutex
	errors  map[string][]model.Failure
	outputs map[string][]model.ExportResult
	series  map[string][]*model.FieldSeries
}

func newMemRecorder() *memRecorder {
	return &memRecorder{
		errors:  make(map[string][]model.Failure),
		outputs: make(map[string][]model.ExportResult),
		series:  make(map[string][]*model.FieldSeries),
	}
}

func (r *memRecorder) SaveRunError(_, archive string, f model.Failure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors[archive] = append(r.errors[archive], f)
	return nil
}

func (r *memRecorder) SaveOutput(_, archive string, out model.ExportResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[archive] = append(r.outputs[archive], out)
	return nil
}

func (r *memRecorder) SaveSeries(_, archive string, s *model.FieldSeries) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series[archive] = append(r.series[archive], s)
	return nil
}

func batchSpec(root string) model.RunSpec {
	return model.RunSpec{
		Archives: model.ArchiveSource{Root: root},
		Frames:   model.FrameSampling{SampleCount: 3},
		FieldRequests: []model.FieldRequestSpec{{
			Component: archivetest.Instance,
			Subsets: []model.SubsetSpec{{
				MeshType: "element",
				MeshIDs:  []interface{}{"ALL"},
				Fields:   []string{"S", "PEEQ"},
				Strategy: model.StrategySpec{Type: "volume"},
			}},
		}},
		Export: model.ExportSpec{Formats: []string{"json", "csv"}},
		Run:    model.ConcurrencyConfig{Workers: 2},
	}
}

func TestRunBatchIsolatesArchiveFailures(t *testing.T) {
	root := t.TempDir()
	good := archivetest.Write(t, root, "plate.json", archivetest.Plate())
	clean := archivetest.Write(t, root, "clean.json.gz", archivetest.Plate())
	broken := filepath.Join(root, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))

	spec := batchSpec(root)
	rec := newMemRecorder()
	metrics := NewMetrics()
	sum, err := RunBatch(context.Background(), spec, BatchDeps{RunID: "run-1", Metrics: metrics, Recorder: rec})
	require.NoError(t, err)

	assert.Equal(t, "run-1", sum.RunID)
	assert.Equal(t, "partial", sum.Status)
	assert.False(t, sum.Failed())
	require.Len(t, sum.Archives, 3)

	byPath := make(map[string]model.ArchiveSummary)
	for _, a := range sum.Archives {
		byPath[a.Archive] = a
	}
	assert.Equal(t, "failed", byPath[broken].Status)
	assert.NotEmpty(t, byPath[broken].Error)
	for _, path := range []string{good, clean} {
		a := byPath[path]
		assert.Equal(t, "partial", a.Status, "PEEQ is missing")
		assert.Equal(t, 2, a.Series)
		assert.Equal(t, 2, a.Warnings)
		require.Len(t, a.Outputs, 2)
		assert.True(t, a.Outputs[0].Success)
		assert.Len(t, rec.series[path], 2)
		assert.Len(t, rec.outputs[path], 2)
		assert.Len(t, rec.errors[path], 2)
	}
	require.Len(t, rec.errors[broken], 1)
	assert.Equal(t, "archive", rec.errors[broken][0].Kind)

	assert.FileExists(t, filepath.Join(root, "feax_plate.json"))
	assert.FileExists(t, filepath.Join(root, "feax_clean.csv"))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ArchivesTotal.WithLabelValues("failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ArchivesTotal.WithLabelValues("partial")))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.SeriesTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(metrics.WarningsTotal.WithLabelValues("field_unavailable")))

	// earlier exports under the prefix are not picked up as archives
	sum, err = RunBatch(context.Background(), spec, BatchDeps{RunID: "run-2"})
	require.NoError(t, err)
	paths := make([]string, 0, len(sum.Archives))
	for _, a := range sum.Archives {
		paths = append(paths, a.Archive)
	}
	sort.Strings(paths)
	assert.Equal(t, []string{broken, clean, good}, paths)
}

func TestRunBatchCompleted(t *testing.T) {
	root := t.TempDir()
	archivetest.Write(t, root, "plate.json", archivetest.Plate())
	spec := batchSpec(root)
	spec.FieldRequests[0].Subsets[0].Fields = []string{"S"}
	spec.Export.Directory = filepath.Join(root, "out")
	spec.Export.Prefix = "nightly"

	sum, err := RunBatch(context.Background(), spec, BatchDeps{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "completed", sum.Status)
	require.Len(t, sum.Archives, 1)
	assert.Equal(t, 4+3, sum.Archives[0].Records, "sampled frames of both steps")
	assert.FileExists(t, filepath.Join(root, "out", "nightly_plate.json"))

	for _, stage := range []string{StageOpen, StageResolve, StageExtract, StageAggregate, StageExport} {
		assert.Contains(t, sum.Stages, stage)
	}
}

func TestRunBatchAllArchivesFailed(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken.json"), []byte("not json"), 0644))

	sum, err := RunBatch(context.Background(), batchSpec(root), BatchDeps{RunID: "run-1"})
	require.NoError(t, err)
	assert.Equal(t, "failed", sum.Status)
	assert.True(t, sum.Failed())
}

func TestRunBatchRejectsInvalidSpec(t *testing.T) {
	spec := batchSpec(t.TempDir())
	spec.FieldRequests[0].Subsets[0].MeshType = "face"

	sum, err := RunBatch(context.Background(), spec, BatchDeps{RunID: "run-1"})
	assert.ErrorIs(t, err, errs.ErrInvalidMeshType)
	assert.Equal(t, "failed", sum.Status)
	assert.Empty(t, sum.Archives)
}

func TestRunBatchCancelled(t *testing.T) {
	root := t.TempDir()
	archivetest.Write(t, root, "plate.json", archivetest.Plate())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunBatch(ctx, batchSpec(root), BatchDeps{RunID: "run-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
