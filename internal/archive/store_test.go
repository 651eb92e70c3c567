package archive_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/archive/archivetest"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

func TestOpen_PlainAndGzip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"plate.json", "plate.json.gz"} {
		path := archivetest.Write(t, dir, name, archivetest.Plate())

		s, err := archive.Open(path)
		require.NoError(t, err, name)
		assert.Equal(t, path, s.Path())
		assert.Equal(t, []string{archivetest.Instance, "PART-2-1"}, s.InstanceNames())

		steps := s.Steps()
		require.Len(t, steps, 2)
		assert.Len(t, steps[0].Frames, 10)
		assert.InDelta(t, 0.9, steps[0].Frames[9].Time, 1e-12)
		require.NoError(t, s.Close())
	}
}

func TestOpen_LockedArchive(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.Write(t, dir, "job.fea.json", archivetest.Plate())
	require.NoError(t, os.WriteFile(filepath.Join(dir, "job.lck"), nil, 0o644))

	_, err := archive.Open(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrArchiveLocked))
}

func TestOpenWithRetry_WaitsForLockRelease(t *testing.T) {
	dir := t.TempDir()
	path := archivetest.Write(t, dir, "job.json", archivetest.Plate())
	lock := archive.LockPath(path)
	require.NoError(t, os.WriteFile(lock, nil, 0o644))

	go func() {
		time.Sleep(60 * time.Millisecond)
		_ = os.Remove(lock)
	}()

	var waits int
	s, err := archive.OpenWithRetry(context.Background(), path, archive.RetryPolicy{
		MaxAttempts:     50,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
	}, func(err error, _ time.Duration) {
		waits++
		assert.True(t, errors.Is(err, errs.ErrArchiveLocked))
	})
	require.NoError(t, err)
	defer s.Close()
	assert.Greater(t, waits, 0)
}

func TestOpenWithRetry_PermanentErrorIsNotRetried(t *testing.T) {
	var waits int
	_, err := archive.OpenWithRetry(context.Background(), filepath.Join(t.TempDir(), "missing.json"),
		archive.RetryPolicy{MaxAttempts: 5, InitialInterval: time.Millisecond},
		func(error, time.Duration) { waits++ })

	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Zero(t, waits)
}

func TestLockPath(t *testing.T) {
	assert.Equal(t, filepath.Join("runs", "job.lck"), archive.LockPath(filepath.Join("runs", "job.odb.json.gz")))
}

func TestInstance_Matching(t *testing.T) {
	s := archivetest.Store(t, archivetest.Plate())

	c, err := s.Instance("part-1-1")
	require.NoError(t, err)
	assert.Equal(t, archivetest.Instance, c.Name())

	c, err = s.Instance("2-1")
	require.NoError(t, err)
	assert.Equal(t, "PART-2-1", c.Name())

	c, err = s.Instance("Assembly")
	require.NoError(t, err)
	assert.Equal(t, archive.AssemblyName, c.Name())

	for _, name := range []string{"PART", "BRACKET-1"} {
		_, err = s.Instance(name)
		var uie *errs.UnknownInstanceError
		require.True(t, errors.As(err, &uie), name)
		assert.Equal(t, []string{archivetest.Instance, "PART-2-1"}, uie.Valid)
	}
}

func TestComponent_SetsAndEntities(t *testing.T) {
	s := archivetest.Store(t, archivetest.Plate())
	c, err := s.Instance(archivetest.Instance)
	require.NoError(t, err)

	refs, ok := c.Set(model.Element, "top")
	require.True(t, ok)
	assert.Equal(t, []model.EntityRef{{Instance: archivetest.Instance, Label: 1}, {Instance: archivetest.Instance, Label: 2}}, refs)

	_, ok = c.Set(model.Node, "TOP")
	assert.False(t, ok)

	ref, ok := c.Entity(model.Node, 3)
	require.True(t, ok)
	assert.Equal(t, model.EntityRef{Instance: archivetest.Instance, Label: 3}, ref)
	_, ok = c.Entity(model.Element, 9)
	assert.False(t, ok)

	assert.Equal(t, []string{"ALL", "TOP"}, c.SetNames(model.Element))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, c.Labels(model.Node))

	asmRefs, ok := s.Assembly().Set(model.Element, "ASM_TOP")
	require.True(t, ok)
	assert.Equal(t, archivetest.Instance, asmRefs[0].Instance)
}

func TestComponent_SetNamesDifferingOnlyInCase(t *testing.T) {
	doc := archivetest.Plate()
	doc.Instances[0].ElementSets["top"] = []model.EntityRef{{Label: 3}}
	s := archivetest.Store(t, doc)
	c, err := s.Instance(archivetest.Instance)
	require.NoError(t, err)

	refs, ok := c.Set(model.Element, "top")
	require.True(t, ok)
	assert.Equal(t, []model.EntityRef{{Instance: archivetest.Instance, Label: 3}}, refs)
	refs, ok = c.Set(model.Element, "TOP")
	require.True(t, ok)
	assert.Len(t, refs, 2)

	for i := 0; i < 20; i++ {
		_, ok = c.Set(model.Element, "Top")
		assert.False(t, ok, "ambiguous without an exact match")
	}
	_, ok = c.Set(model.Element, "all")
	assert.True(t, ok)
}

func TestFieldValues(t *testing.T) {
	s := archivetest.Store(t, archivetest.Plate())
	subset := model.MeshSubset{
		Kind: model.Element,
		Key:  "TOP",
		Entities: []model.EntityRef{
			{Instance: archivetest.Instance, Label: 2},
			{Instance: archivetest.Instance, Label: 1},
		},
	}

	rows, err := s.FieldValues("Step-1", 3, "S", subset)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{5, 10, 0, 0, 0, 0}, {4, 8, 0, 0, 0, 0}}, rows)

	comps, err := s.FieldComponents("Step-1", 0, "IVOL")
	require.NoError(t, err)
	assert.Empty(t, comps)

	_, err = s.FieldValues("Step-1", 0, "E", subset)
	assert.True(t, errors.Is(err, errs.ErrFieldUnavailable))

	// node field on an element region
	_, err = s.FieldValues("Step-1", 0, "TEMP", subset)
	assert.True(t, errors.Is(err, errs.ErrFieldUnavailable))
}

func TestNodeCoordinatesAndClose(t *testing.T) {
	s, err := archive.NewMemoryStore("plate.json", archivetest.Plate())
	require.NoError(t, err)

	subset := model.MeshSubset{Kind: model.Node, Entities: []model.EntityRef{{Instance: archivetest.Instance, Label: 4}}}
	coords, err := s.NodeCoordinates(subset)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{4, 0, 0}}, coords)

	require.NoError(t, s.Close())
	_, err = s.FieldValues("Step-1", 0, "TEMP", subset)
	assert.Error(t, err)
	assert.Error(t, s.Close())
}

func TestDescribe(t *testing.T) {
	sum := archive.Describe(archivetest.Store(t, archivetest.Plate()))

	require.Len(t, sum.Instances, 3)
	assert.Equal(t, archive.AssemblyName, sum.Instances[0].Name)
	assert.Equal(t, []string{"ASM_TOP"}, sum.Instances[0].ElementSets)
	assert.Equal(t, 5, sum.Instances[1].Nodes)

	require.Len(t, sum.Steps, 2)
	assert.Equal(t, 3, sum.Steps[1].Frames)
	assert.Equal(t, []string{"IVOL", "S", "TEMP", "U"}, sum.Steps[0].Fields)
}

func TestNewMemoryStore_RejectsDuplicateInstances(t *testing.T) {
	doc := archivetest.Plate()
	doc.Instances = append(doc.Instances, archive.InstanceDoc{Name: "part-1-1"})
	_, err := archive.NewMemoryStore("dup.json", doc)
	assert.Error(t, err)
}
