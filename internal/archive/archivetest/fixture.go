// Package archivetest builds small archives for tests.
package archivetest

import (
	"compress/gzip"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/model"
)

// Instance is the name of the single part instance of Plate
const Instance = "PART-1-1"

// Plate returns a small archive: one instance with five nodes on the x axis
// (x = label) and four elements, an assembly-level element set, two steps
// (ten and three frames) and the fields S, IVOL, TEMP and U.
//
//	S    element, S11 = label+frame, S22 = 2*(label+frame), others 0
//	IVOL element, volume = label
//	TEMP node,    10*label + frame
//	U    node,    U1 = label*frame, U2 = 0
func Plate() *archive.Document {
	inst := archive.InstanceDoc{
		Name:     Instance,
		Elements: []int{1, 2, 3, 4},
		NodeSets: map[string][]model.EntityRef{
			"PATH": refs("", 1, 2, 3, 4, 5),
			"TIP":  refs("", 5),
		},
		ElementSets: map[string][]model.EntityRef{
			"ALL": refs("", 1, 2, 3, 4),
			"TOP": refs("", 1, 2),
		},
	}
	for n := 1; n <= 5; n++ {
		inst.Nodes = append(inst.Nodes, archive.NodeDoc{Label: n, Coords: []float64{float64(n), 0, 0}})
	}

	doc := &archive.Document{
		Assembly: archive.InstanceDoc{
			ElementSets: map[string][]model.EntityRef{
				"ASM_TOP": refs(Instance, 1, 2),
			},
			NodeSets: map[string][]model.EntityRef{
				"ASM_TIP": refs(Instance, 5),
			},
		},
		Instances: []archive.InstanceDoc{
			inst,
			{Name: "PART-2-1", Elements: []int{1}},
		},
	}
	doc.Steps = []archive.StepDoc{step("Step-1", 10, 0.1), step("Step-2", 3, 1.0)}
	return doc
}

func step(name string, frames int, dt float64) archive.StepDoc {
	st := archive.StepDoc{Name: name}
	for f := 0; f < frames; f++ {
		st.Frames = append(st.Frames, frame(f, float64(f)*dt))
	}
	return st
}

func frame(f int, t float64) archive.FrameDoc {
	stress := map[int][][]float64{}
	ivol := map[int][][]float64{}
	for e := 1; e <= 4; e++ {
		v := float64(e + f)
		stress[e] = [][]float64{{v, 2 * v, 0, 0, 0, 0}}
		ivol[e] = [][]float64{{float64(e)}}
	}
	temp := map[int][][]float64{}
	disp := map[int][][]float64{}
	for n := 1; n <= 5; n++ {
		temp[n] = [][]float64{{float64(10*n + f)}}
		disp[n] = [][]float64{{float64(n * f), 0}}
	}
	return archive.FrameDoc{
		Time: t,
		Fields: map[string]archive.FieldDoc{
			"S": {
				Position:   "element",
				Components: []string{"S11", "S22", "S33", "S12", "S13", "S23"},
				Values:     map[string]map[int][][]float64{Instance: stress},
			},
			"IVOL": {Position: "element", Values: map[string]map[int][][]float64{Instance: ivol}},
			"TEMP": {Position: "node", Values: map[string]map[int][][]float64{Instance: temp}},
			"U": {
				Position:   "node",
				Components: []string{"U1", "U2"},
				Values:     map[string]map[int][][]float64{Instance: disp},
			},
		},
	}
}

func refs(instance string, labels ...int) []model.EntityRef {
	out := make([]model.EntityRef, len(labels))
	for i, l := range labels {
		out[i] = model.EntityRef{Instance: instance, Label: l}
	}
	return out
}

// Store opens doc as an in-memory store that is closed when the test ends
func Store(t testing.TB, doc *archive.Document) *archive.MemoryStore {
	t.Helper()
	s, err := archive.NewMemoryStore("plate.json", doc)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Write stores doc under dir/name, gzip-compressed when name ends in .gz
func Write(t testing.TB, dir, name string, doc *archive.Document) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	if strings.HasSuffix(name, ".gz") {
		gz := gzip.NewWriter(f)
		require.NoError(t, json.NewEncoder(gz).Encode(doc))
		require.NoError(t, gz.Close())
		return path
	}
	require.NoError(t, json.NewEncoder(f).Encode(doc))
	return path
}
