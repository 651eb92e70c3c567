package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/archive/archivetest"
	"go-fea-pipeline/internal/config"
	"go-fea-pipeline/internal/model"
	"go-fea-pipeline/internal/platform/logger"
	"go-fea-pipeline/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func plateConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Archives = model.ArchiveSource{Paths: []string{archivetest.Write(t, dir, "plate.json", archivetest.Plate())}}
	cfg.Frames.SampleCount = 3
	cfg.FieldRequests = []model.FieldRequestSpec{{
		Component: archivetest.Instance,
		Subsets: []model.SubsetSpec{{
			MeshType: "element",
			MeshIDs:  []interface{}{"ALL"},
			Fields:   []string{"S"},
			Strategy: model.StrategySpec{Type: "volume"},
		}},
	}}
	cfg.Export.Directory = filepath.Join(dir, "out")
	cfg.Store.Path = filepath.Join(dir, "runs.db")
	return cfg
}

func TestSampleConfigCommand(t *testing.T) {
	out, err := execute(t, "sample-config")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "feax.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.Sample().FieldRequests[0].Component, cfg.FieldRequests[0].Component)
}

func TestInspectCommand(t *testing.T) {
	path := archivetest.Write(t, t.TempDir(), "plate.json", archivetest.Plate())

	out, err := execute(t, "inspect", "--output", "json", path)
	require.NoError(t, err)

	var sum archive.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sum))
	assert.Equal(t, path, sum.Path)
	require.Len(t, sum.Instances, 3)
	assert.Equal(t, archive.AssemblyName, sum.Instances[0].Name)
	assert.Equal(t, []string{"ALL", "TOP"}, sum.Instances[1].ElementSets)
	require.Len(t, sum.Steps, 2)
	assert.Equal(t, 10, sum.Steps[0].Frames)
	assert.Contains(t, sum.Steps[0].Fields, "IVOL")
}

func TestPrintArchiveSummary(t *testing.T) {
	store := archivetest.Store(t, archivetest.Plate())
	var out bytes.Buffer
	printArchiveSummary(&out, archive.Describe(store))

	text := out.String()
	assert.Contains(t, text, "COMPONENT")
	assert.Contains(t, text, "PATH,TIP")
	assert.Contains(t, text, "Step-2")
}

func TestExtractCommand(t *testing.T) {
	dir := t.TempDir()
	cfg := plateConfig(t, dir)
	path := filepath.Join(dir, "feax.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, config.Encode(f, cfg))
	require.NoError(t, f.Close())

	out, err := execute(t, "extract", "-c", path, "--log-mode", "production", "-f", "json,npz", "--prefix", "cli")
	require.NoError(t, err)
	assert.Contains(t, out, "ARCHIVE")
	assert.Contains(t, out, "completed")
	assert.FileExists(t, filepath.Join(dir, "out", "cli_plate.json"))
	assert.FileExists(t, filepath.Join(dir, "out", "cli_plate.npz"))
}

func TestRunExtractionRecordsRun(t *testing.T) {
	cfg := plateConfig(t, t.TempDir())

	summary, err := runExtraction(context.Background(), cfg, logger.Nop(), true)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, summary.Status)

	db, err := store.Open(cfg.Store.Path)
	require.NoError(t, err)
	defer db.Close()

	run, err := db.GetRun(summary.RunID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusCompleted, run.Status)

	series, err := db.GetRunSeries(summary.RunID)
	require.NoError(t, err)
	assert.Len(t, series, 2)
}

func TestApplyExtractFlagsArchivesFromArgs(t *testing.T) {
	cfg := &config.Config{}
	cfg.Archives = model.ArchiveSource{Root: "results"}
	applyExtractFlags(extractCmd, cfg, []string{"a.json", "b/*.json.gz"})
	assert.Equal(t, model.ArchiveSource{Paths: []string{"a.json", "b/*.json.gz"}}, cfg.Archives)
}

func TestPrintSummaryListsErrors(t *testing.T) {
	var out bytes.Buffer
	printSummary(&out, model.RunSummary{
		RunID:  "r1",
		Status: "partial",
		Archives: []model.ArchiveSummary{
			{Archive: "a.json", Status: "completed", Series: 2, Outputs: []model.ExportResult{{Success: true}}},
			{Archive: "b.json", Status: "failed", Error: "decode archive b.json: unexpected EOF"},
		},
	})
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	assert.Contains(t, lines[3], "run r1 partial")
	assert.Equal(t, "b.json: decode archive b.json: unexpected EOF", lines[4])

	out.Reset()
	printSummary(&out, model.RunSummary{})
	assert.Empty(t, out.String())
}

func TestLoadConfigFallsBackToEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "feax.yaml")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, config.Encode(f, plateConfig(t, dir)))
	require.NoError(t, f.Close())

	saved := configPath
	t.Cleanup(func() { configPath = saved })
	configPath = ""
	t.Setenv("FEAX_CONFIG", path)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Frames.SampleCount)
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.Store.Path)
}
