package archive

import "go-fea-pipeline/internal/model"

// Document is the portable archive layout read by Open. It is produced by
// an exporter running inside the simulation kernel.
type Document struct {
	Assembly  InstanceDoc   `json:"assembly"`
	Instances []InstanceDoc `json:"instances"`
	Steps     []StepDoc     `json:"steps"`
}

// NodeDoc is one node with its undeformed coordinates
type NodeDoc struct {
	Label  int       `json:"label"`
	Coords []float64 `json:"coords"`
}

// InstanceDoc describes the mesh of one instance, or of the assembly itself.
// Set members with an empty Instance belong to the owning instance.
type InstanceDoc struct {
	Name        string                       `json:"name"`
	Nodes       []NodeDoc                    `json:"nodes,omitempty"`
	Elements    []int                        `json:"elements,omitempty"`
	NodeSets    map[string][]model.EntityRef `json:"node_sets,omitempty"`
	ElementSets map[string][]model.EntityRef `json:"element_sets,omitempty"`
}

// StepDoc is one analysis step
type StepDoc struct {
	Name   string     `json:"name"`
	Frames []FrameDoc `json:"frames"`
}

// FrameDoc is one frame and its field outputs
type FrameDoc struct {
	Time   float64             `json:"time"`
	Fields map[string]FieldDoc `json:"fields"`
}

// FieldDoc holds one field output of one frame. Values are keyed by
// instance name ("" for assembly-level entities) and entity label; each
// entity may carry several rows (one per integration point).
type FieldDoc struct {
	Position   string                         `json:"position"` // node or element
	Components []string                       `json:"components,omitempty"`
	Values     map[string]map[int][][]float64 `json:"values"`
}
