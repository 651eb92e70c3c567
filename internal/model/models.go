package model

// ArchiveSource selects the archives of a run. Paths may contain glob
// patterns; Root is searched with Pattern when Paths is empty.
type ArchiveSource struct {
	Root    string   `json:"root,omitempty" yaml:"root,omitempty" mapstructure:"root"`
	Paths   []string `json:"paths,omitempty" yaml:"paths,omitempty" mapstructure:"paths"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty" mapstructure:"pattern"`
}

// FrameSampling controls how many frames per step are extracted.
// Zero keeps every frame.
type FrameSampling struct {
	SampleCount int `json:"sample_count" yaml:"sample_count" mapstructure:"sample_count"`
}

// StrategySpec is the config form of an aggregation strategy
type StrategySpec struct {
	Type      string `json:"type" yaml:"type" mapstructure:"type"` // arithmetic, volume, axisymmetric, none
	Axis      int    `json:"axis,omitempty" yaml:"axis,omitempty" mapstructure:"axis"`
	Component string `json:"component,omitempty" yaml:"component,omitempty" mapstructure:"component"`
}

// SubsetSpec names regions of one entity kind and the fields to pull from
// them. Every entry of MeshIDs becomes its own subset: strings are set
// names, numbers are single labels. Every LabelGroups entry becomes one
// subset made of integers and "start-stop" ranges.
type SubsetSpec struct {
	MeshType    string          `json:"mesh_type" yaml:"mesh_type" mapstructure:"mesh_type"`
	MeshIDs     []interface{}   `json:"mesh_ids,omitempty" yaml:"mesh_ids,omitempty" mapstructure:"mesh_ids"`
	LabelGroups [][]interface{} `json:"label_groups,omitempty" yaml:"label_groups,omitempty" mapstructure:"label_groups"`
	Fields      []string        `json:"fields" yaml:"fields" mapstructure:"fields"`
	Strategy    StrategySpec    `json:"strategy" yaml:"strategy" mapstructure:"strategy"`
}

// FieldRequestSpec groups subsets of one model component ("assembly" or an
// instance name)
type FieldRequestSpec struct {
	Component string       `json:"component" yaml:"component" mapstructure:"component"`
	Subsets   []SubsetSpec `json:"subsets" yaml:"subsets" mapstructure:"subsets"`
}

// ExportSpec defines output targets. An empty Directory writes next to
// each archive.
type ExportSpec struct {
	Directory string   `json:"directory,omitempty" yaml:"directory,omitempty" mapstructure:"directory"`
	Prefix    string   `json:"prefix" yaml:"prefix" mapstructure:"prefix"`
	Formats   []string `json:"formats" yaml:"formats" mapstructure:"formats"` // json, records, csv, npz
}

// RunSpec is the whole extraction configuration, shared by the config file
// and POST /api/v1/extractions
type RunSpec struct {
	Archives      ArchiveSource      `json:"archives" yaml:"archives" mapstructure:"archives"`
	Frames        FrameSampling      `json:"frames" yaml:"frames" mapstructure:"frames"`
	FieldRequests []FieldRequestSpec `json:"field_requests" yaml:"field_requests" mapstructure:"field_requests"`
	Export        ExportSpec         `json:"export" yaml:"export" mapstructure:"export"`
	Run           ConcurrencyConfig  `json:"run" yaml:"run" mapstructure:"run"`
}
