package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	assert.Equal(t, 2*time.Second, ParseDuration("2s", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("", time.Minute))
	assert.Equal(t, time.Minute, ParseDuration("soon", time.Minute))
}

func TestOutputManager_OutputPath(t *testing.T) {
	dir := t.TempDir()

	next := NewOutputManager("")
	p, err := next.OutputPath(filepath.Join(dir, "job.fea.json.gz"), "extracted", ".json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "extracted_job.json"), p)

	out := filepath.Join(dir, "out", "nested")
	om := NewOutputManager(out)
	p, err = om.OutputPath("/data/plate.json", "", ".npz")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "plate.npz"), p)
	assert.DirExists(t, out)
}
