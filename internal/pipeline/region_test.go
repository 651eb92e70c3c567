package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/archive/archivetest"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

func TestExpandLabels(t *testing.T) {
	tests := []struct {
		name  string
		items []interface{}
		want  []int
	}{
		{"range and label", []interface{}{"1-3", 5}, []int{1, 2, 3, 5}},
		{"overlapping ranges", []interface{}{"1-4", "3-6", 2}, []int{1, 2, 3, 4, 5, 6}},
		{"unsorted input", []interface{}{9, 3, "5-6"}, []int{3, 5, 6, 9}},
		{"decoded numbers", []interface{}{float64(7), int64(2)}, []int{2, 7}},
		{"single label string", []interface{}{" 4 "}, []int{4}},
		{"spaced range", []interface{}{"2 - 3"}, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExpandLabels(tt.items)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpandLabelsRejectsMalformed(t *testing.T) {
	for _, items := range [][]interface{}{
		{"5-2"},
		{"a-b"},
		{"x"},
		{1.5},
		{true},
		{},
	} {
		_, err := ExpandLabels(items)
		assert.Error(t, err, "%v", items)
	}
}

func TestCompactLabels(t *testing.T) {
	assert.Equal(t, "", CompactLabels(nil))
	assert.Equal(t, "4", CompactLabels([]int{4}))
	assert.Equal(t, "1-3,5", CompactLabels([]int{1, 2, 3, 5}))
	assert.Equal(t, "1,3,5-7", CompactLabels([]int{1, 3, 5, 6, 7}))
}

func TestResolveRegion(t *testing.T) {
	store := archivetest.Store(t, archivetest.Plate())

	t.Run("element set", func(t *testing.T) {
		sub, err := ResolveRegion(store, archivetest.Instance, model.Element, SetRegion{Name: "ALL"})
		require.NoError(t, err)
		assert.Equal(t, "ALL", sub.Key)
		assert.True(t, sub.IsSet())
		assert.Equal(t, model.Element, sub.Kind)
		assert.Equal(t, archivetest.Instance, sub.Component)
		assert.Len(t, sub.Entities, 4)
	})

	t.Run("set names ignore case", func(t *testing.T) {
		sub, err := ResolveRegion(store, archivetest.Instance, model.Node, SetRegion{Name: "path"})
		require.NoError(t, err)
		assert.Len(t, sub.Entities, 5)
	})

	t.Run("single label", func(t *testing.T) {
		sub, err := ResolveRegion(store, archivetest.Instance, model.Node, LabelRegion{Label: 3})
		require.NoError(t, err)
		assert.Equal(t, "N3", sub.Key)
		assert.Equal(t, []model.EntityRef{{Instance: archivetest.Instance, Label: 3}}, sub.Entities)
	})

	t.Run("label list", func(t *testing.T) {
		sub, err := ResolveRegion(store, archivetest.Instance, model.Element, LabelListRegion{Items: []interface{}{"1-2", 4}})
		require.NoError(t, err)
		assert.Equal(t, "E1-2,4", sub.Key)
		assert.Equal(t, []int{1, 2, 4}, sub.Labels)
		assert.Len(t, sub.Entities, 3)
	})

	t.Run("assembly set", func(t *testing.T) {
		sub, err := ResolveRegion(store, archive.AssemblyName, model.Element, SetRegion{Name: "ASM_TOP"})
		require.NoError(t, err)
		assert.Equal(t, archive.AssemblyName, sub.Component)
		assert.Equal(t, archivetest.Instance, sub.Entities[0].Instance)
	})

	t.Run("unique substring selects instance", func(t *testing.T) {
		sub, err := ResolveRegion(store, "1-1", model.Element, SetRegion{Name: "TOP"})
		require.NoError(t, err)
		assert.Equal(t, archivetest.Instance, sub.Component)
	})
}

func TestResolveRegionErrors(t *testing.T) {
	store := archivetest.Store(t, archivetest.Plate())

	tests := []struct {
		name      string
		component string
		kind      model.EntityKind
		spec      RegionSpec
		target    error
	}{
		{"unknown instance", "PART-9-1", model.Element, SetRegion{Name: "ALL"}, errs.ErrUnknownInstance},
		{"ambiguous instance", "PART", model.Element, SetRegion{Name: "ALL"}, errs.ErrUnknownInstance},
		{"unknown set", archivetest.Instance, model.Element, SetRegion{Name: "NOPE"}, errs.ErrUnknownRegion},
		{"set of other kind", archivetest.Instance, model.Element, SetRegion{Name: "PATH"}, errs.ErrUnknownRegion},
		{"missing label", archivetest.Instance, model.Node, LabelRegion{Label: 99}, errs.ErrUnknownRegion},
		{"partly missing list", archivetest.Instance, model.Element, LabelListRegion{Items: []interface{}{"3-6"}}, errs.ErrUnknownRegion},
		{"reversed range", archivetest.Instance, model.Element, LabelListRegion{Items: []interface{}{"4-1"}}, errs.ErrUnknownRegion},
		{"bad mesh type", archivetest.Instance, model.EntityKind(9), SetRegion{Name: "ALL"}, errs.ErrInvalidMeshType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveRegion(store, tt.component, tt.kind, tt.spec)
			assert.ErrorIs(t, err, tt.target)
		})
	}
}

func TestUnknownRegionListsValidChoices(t *testing.T) {
	store := archivetest.Store(t, archivetest.Plate())

	_, err := ResolveRegion(store, archivetest.Instance, model.Element, SetRegion{Name: "NOPE"})
	var regionErr *errs.UnknownRegionError
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, []string{"ALL", "TOP"}, regionErr.Valid)

	_, err = ResolveRegion(store, archivetest.Instance, model.Node, LabelRegion{Label: 42})
	require.ErrorAs(t, err, &regionErr)
	assert.Equal(t, []string{"1-5"}, regionErr.Valid)

	_, err = ResolveRegion(store, "PART", model.Node, LabelRegion{Label: 1})
	var instErr *errs.UnknownInstanceError
	require.ErrorAs(t, err, &instErr)
	assert.ElementsMatch(t, []string{"PART-1-1", "PART-2-1"}, instErr.Valid)
}
