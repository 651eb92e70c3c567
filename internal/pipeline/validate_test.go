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

func TestPlanRequests(t *testing.T) {
	plans, err := PlanRequests([]model.FieldRequestSpec{
		{
			Component: " PART-1-1 ",
			Subsets: []model.SubsetSpec{{
				MeshType:    "Elements",
				MeshIDs:     []interface{}{"ALL", float64(3)},
				LabelGroups: [][]interface{}{{1, "2-3"}},
				Fields:      []string{"S", " S ", "", "LE"},
				Strategy:    model.StrategySpec{Type: "volume"},
			}},
		},
		{
			Subsets: []model.SubsetSpec{{MeshType: "node", MeshIDs: []interface{}{"ASM_TIP"}, Fields: []string{"U"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, plans, 4)

	assert.Equal(t, "PART-1-1", plans[0].Component)
	assert.Equal(t, model.Element, plans[0].Kind)
	assert.Equal(t, SetRegion{Name: "ALL"}, plans[0].Region)
	assert.Equal(t, LabelRegion{Label: 3}, plans[1].Region)
	assert.Equal(t, LabelListRegion{Items: []interface{}{1, "2-3"}}, plans[2].Region)
	assert.Equal(t, []string{"S", "LE"}, plans[0].Fields)
	assert.Equal(t, VolumeWeighted{}, plans[0].Strategy)

	assert.Equal(t, archive.AssemblyName, plans[3].Component)
	assert.Equal(t, Arithmetic{}, plans[3].Strategy)
}

func TestPlanRequestsReportsEveryProblem(t *testing.T) {
	_, err := PlanRequests([]model.FieldRequestSpec{
		{Component: "A"},
		{
			Component: "B",
			Subsets: []model.SubsetSpec{
				{MeshType: "face", MeshIDs: []interface{}{"ALL"}, Fields: []string{"S"}},
				{MeshType: "node", MeshIDs: []interface{}{"ALL"}, Fields: []string{"S"}, Strategy: model.StrategySpec{Type: "volume"}},
				{MeshType: "element", MeshIDs: []interface{}{"ALL"}},
				{MeshType: "element", Fields: []string{"S"}},
				{MeshType: "element", MeshIDs: []interface{}{1.5}, Fields: []string{"S"}},
				{MeshType: "element", MeshIDs: []interface{}{""}, Fields: []string{"S"}},
			},
		},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrInvalidMeshType)
	assert.ErrorIs(t, err, errs.ErrInvalidStrategy)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "field_requests[0] (A) has no subsets")
	assert.Contains(t, err.Error(), "field_requests[1].subsets[2] lists no fields")
	assert.Contains(t, err.Error(), "field_requests[1].subsets[3]")
	assert.Contains(t, err.Error(), "field_requests[1].subsets[4]")
	assert.Contains(t, err.Error(), "field_requests[1].subsets[5]")

	_, err = PlanRequests(nil)
	assert.ErrorIs(t, err, errs.ErrInvalidConfig)
}

func TestResolveRequestsIsolatesFailures(t *testing.T) {
	store := archivetest.Store(t, archivetest.Plate())
	plans, err := PlanRequests([]model.FieldRequestSpec{{
		Component: archivetest.Instance,
		Subsets: []model.SubsetSpec{{
			MeshType: "element",
			MeshIDs:  []interface{}{"TOP", "GONE", 4},
			Fields:   []string{"S"},
		}},
	}})
	require.NoError(t, err)

	requests, failures := ResolveRequests(store, plans)
	require.Len(t, requests, 2)
	assert.Equal(t, "TOP", requests[0].Subset.Key)
	assert.Equal(t, "E4", requests[1].Subset.Key)

	require.Len(t, failures, 1)
	assert.Equal(t, "plate.json", failures[0].Archive)
	assert.Equal(t, archivetest.Instance+"/GONE", failures[0].Region)
	assert.Equal(t, "unknown_region", failures[0].Kind)
}

func TestValidateRunSpec(t *testing.T) {
	spec := model.RunSpec{
		FieldRequests: []model.FieldRequestSpec{{
			Component: archivetest.Instance,
			Subsets:   []model.SubsetSpec{{MeshType: "element", MeshIDs: []interface{}{"ALL"}, Fields: []string{"S"}}},
		}},
	}
	plans, err := ValidateRunSpec(spec)
	require.NoError(t, err)
	assert.Len(t, plans, 1)

	spec.Frames.SampleCount = -1
	spec.Run.Workers = -2
	spec.Export.Formats = []string{"parquet"}
	spec.Run.Retry.MaxInterval = "soon"
	_, err = ValidateRunSpec(spec)
	require.Error(t, err)
	for _, want := range []string{"sample_count", "run.workers", "parquet", "retry.max_interval"} {
		assert.Contains(t, err.Error(), want)
	}
}
