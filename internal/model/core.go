package model

import (
	"fmt"
	"strings"

	"go-fea-pipeline/internal/errs"
)

// EntityKind is the kind of mesh entity a region is made of
type EntityKind uint8

const (
	Node EntityKind = iota + 1
	Element
)

// ParseEntityKind maps a config tag onto an EntityKind
func ParseEntityKind(s string) (EntityKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "node", "nodes":
		return Node, nil
	case "element", "elements":
		return Element, nil
	default:
		return 0, &errs.InvalidMeshTypeError{Value: s}
	}
}

func (k EntityKind) String() string {
	switch k {
	case Node:
		return "node"
	case Element:
		return "element"
	default:
		return fmt.Sprintf("EntityKind(%d)", uint8(k))
	}
}

// Prefix is the region-key prefix for label-addressed subsets
func (k EntityKind) Prefix() string {
	switch k {
	case Node:
		return "N"
	case Element:
		return "E"
	default:
		return "?"
	}
}

func (k EntityKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *EntityKind) UnmarshalText(b []byte) error {
	parsed, err := ParseEntityKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// EntityRef addresses one node or element of one instance. Assembly-level
// entities carry an empty Instance.
type EntityRef struct {
	Instance string `json:"instance,omitempty"`
	Label    int    `json:"label"`
}

// Frame is one recorded increment within a step
type Frame struct {
	Index int     `json:"index"`
	Time  float64 `json:"time"`
}

// AnalysisStep is a named phase of the simulation
type AnalysisStep struct {
	Name   string  `json:"name"`
	Frames []Frame `json:"frames"`
}

// MeshSubset is a resolved, validated region of one model component
type MeshSubset struct {
	Component string      `json:"component"`
	Kind      EntityKind  `json:"kind"`
	Key       string      `json:"key"`
	SetName   string      `json:"set_name,omitempty"`
	Labels    []int       `json:"labels,omitempty"`
	Entities  []EntityRef `json:"entities"`
}

// IsSet reports whether the subset was resolved from a named set
func (s MeshSubset) IsSet() bool { return s.SetName != "" }
