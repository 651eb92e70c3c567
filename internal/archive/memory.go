package archive

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

var errClosed = errors.New("archive closed")

// MemoryStore is an immutable, fully loaded archive
type MemoryStore struct {
	path      string
	assembly  *component
	instances []*component
	steps     []model.AnalysisStep
	frames    map[string][]FrameDoc
	closed    atomic.Bool
}

type component struct {
	name        string
	nodes       map[int][]float64
	elements    map[int]struct{}
	nodeSets    map[string][]model.EntityRef
	elementSets map[string][]model.EntityRef
}

// NewMemoryStore indexes a decoded document
func NewMemoryStore(path string, doc *Document) (*MemoryStore, error) {
	s := &MemoryStore{
		path:   path,
		frames: make(map[string][]FrameDoc, len(doc.Steps)),
	}

	assembly := doc.Assembly
	assembly.Name = AssemblyName
	s.assembly = newComponent(assembly, "")

	seen := make(map[string]bool, len(doc.Instances))
	for _, inst := range doc.Instances {
		if inst.Name == "" {
			return nil, fmt.Errorf("archive %s: instance without a name", path)
		}
		if seen[strings.ToUpper(inst.Name)] {
			return nil, fmt.Errorf("archive %s: duplicate instance %q", path, inst.Name)
		}
		seen[strings.ToUpper(inst.Name)] = true
		s.instances = append(s.instances, newComponent(inst, inst.Name))
	}

	for _, step := range doc.Steps {
		if _, dup := s.frames[step.Name]; dup {
			return nil, fmt.Errorf("archive %s: duplicate step %q", path, step.Name)
		}
		frames := make([]model.Frame, len(step.Frames))
		for i, f := range step.Frames {
			frames[i] = model.Frame{Index: i, Time: f.Time}
		}
		s.steps = append(s.steps, model.AnalysisStep{Name: step.Name, Frames: frames})
		s.frames[step.Name] = step.Frames
	}
	return s, nil
}

func newComponent(doc InstanceDoc, owner string) *component {
	c := &component{
		name:        doc.Name,
		nodes:       make(map[int][]float64, len(doc.Nodes)),
		elements:    make(map[int]struct{}, len(doc.Elements)),
		nodeSets:    ownSets(doc.NodeSets, owner),
		elementSets: ownSets(doc.ElementSets, owner),
	}
	for _, n := range doc.Nodes {
		c.nodes[n.Label] = n.Coords
	}
	for _, e := range doc.Elements {
		c.elements[e] = struct{}{}
	}
	return c
}

func ownSets(sets map[string][]model.EntityRef, owner string) map[string][]model.EntityRef {
	out := make(map[string][]model.EntityRef, len(sets))
	for name, members := range sets {
		refs := make([]model.EntityRef, len(members))
		for i, m := range members {
			if m.Instance == "" {
				m.Instance = owner
			}
			refs[i] = m
		}
		out[name] = refs
	}
	return out
}

func (c *component) Name() string { return c.name }

func (c *component) sets(kind model.EntityKind) map[string][]model.EntityRef {
	if kind == model.Node {
		return c.nodeSets
	}
	return c.elementSets
}

func (c *component) SetNames(kind model.EntityKind) []string {
	sets := c.sets(kind)
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Set matches set names case-insensitively; an exact match wins. A name
// that folds onto several sets matches none of them.
func (c *component) Set(kind model.EntityKind, name string) ([]model.EntityRef, bool) {
	sets := c.sets(kind)
	if refs, ok := sets[name]; ok {
		return append([]model.EntityRef(nil), refs...), true
	}
	match := ""
	for _, setName := range c.SetNames(kind) {
		if !strings.EqualFold(setName, name) {
			continue
		}
		if match != "" {
			return nil, false
		}
		match = setName
	}
	if match == "" {
		return nil, false
	}
	return append([]model.EntityRef(nil), sets[match]...), true
}

func (c *component) Entity(kind model.EntityKind, label int) (model.EntityRef, bool) {
	var ok bool
	if kind == model.Node {
		_, ok = c.nodes[label]
	} else {
		_, ok = c.elements[label]
	}
	if !ok {
		return model.EntityRef{}, false
	}
	owner := c.name
	if owner == AssemblyName {
		owner = ""
	}
	return model.EntityRef{Instance: owner, Label: label}, true
}

func (c *component) Labels(kind model.EntityKind) []int {
	var labels []int
	if kind == model.Node {
		labels = make([]int, 0, len(c.nodes))
		for l := range c.nodes {
			labels = append(labels, l)
		}
	} else {
		labels = make([]int, 0, len(c.elements))
		for l := range c.elements {
			labels = append(labels, l)
		}
	}
	sort.Ints(labels)
	return labels
}

func (s *MemoryStore) Path() string { return s.path }

func (s *MemoryStore) Steps() []model.AnalysisStep {
	out := make([]model.AnalysisStep, len(s.steps))
	for i, st := range s.steps {
		out[i] = model.AnalysisStep{Name: st.Name, Frames: append([]model.Frame(nil), st.Frames...)}
	}
	return out
}

func (s *MemoryStore) InstanceNames() []string {
	names := make([]string, len(s.instances))
	for i, inst := range s.instances {
		names[i] = inst.name
	}
	return names
}

func (s *MemoryStore) Assembly() Component { return s.assembly }

// Instance resolves an instance by name. A case-insensitive exact match wins;
// otherwise the name must be a substring of exactly one instance name.
func (s *MemoryStore) Instance(name string) (Component, error) {
	if strings.EqualFold(name, AssemblyName) {
		return s.assembly, nil
	}
	for _, inst := range s.instances {
		if strings.EqualFold(inst.name, name) {
			return inst, nil
		}
	}

	var matches []*component
	needle := strings.ToUpper(name)
	if needle != "" {
		for _, inst := range s.instances {
			if strings.Contains(strings.ToUpper(inst.name), needle) {
				matches = append(matches, inst)
			}
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return nil, &errs.UnknownInstanceError{Name: name, Valid: s.InstanceNames()}
}

func (s *MemoryStore) frame(step string, frame int) (*FrameDoc, error) {
	if s.closed.Load() {
		return nil, errClosed
	}
	frames, ok := s.frames[step]
	if !ok {
		return nil, fmt.Errorf("step %q not found", step)
	}
	if frame < 0 || frame >= len(frames) {
		return nil, fmt.Errorf("step %q has no frame %d", step, frame)
	}
	return &frames[frame], nil
}

func (s *MemoryStore) FieldNames(step string, frame int) []string {
	f, err := s.frame(step, frame)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(f.Fields))
	for name := range f.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *MemoryStore) field(step string, frame int, field string) (*FieldDoc, error) {
	f, err := s.frame(step, frame)
	if err != nil {
		return nil, err
	}
	fd, ok := f.Fields[field]
	if !ok {
		return nil, fmt.Errorf("%w: %s not written in step %s frame %d", errs.ErrFieldUnavailable, field, step, frame)
	}
	return &fd, nil
}

func (s *MemoryStore) FieldComponents(step string, frame int, field string) ([]string, error) {
	fd, err := s.field(step, frame, field)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), fd.Components...), nil
}

// FieldValues returns the rows of every entity of the subset, in subset
// order. Entities with several integration points contribute several rows.
func (s *MemoryStore) FieldValues(step string, frame int, field string, subset model.MeshSubset) ([][]float64, error) {
	fd, err := s.field(step, frame, field)
	if err != nil {
		return nil, err
	}
	if pos, err := model.ParseEntityKind(fd.Position); err == nil && pos != subset.Kind {
		return nil, fmt.Errorf("%w: %s is a %s field, region %s holds %ss",
			errs.ErrFieldUnavailable, field, pos, subset.Key, subset.Kind)
	}

	var rows [][]float64
	for _, ref := range subset.Entities {
		values, ok := fd.Values[ref.Instance][ref.Label]
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("%w: %s has no value on %s label %d", errs.ErrFieldUnavailable, field, instanceLabel(ref.Instance), ref.Label)
		}
		for _, v := range values {
			rows = append(rows, append([]float64(nil), v...))
		}
	}
	return rows, nil
}

// NodeCoordinates returns undeformed coordinates in subset order
func (s *MemoryStore) NodeCoordinates(subset model.MeshSubset) ([][]float64, error) {
	if s.closed.Load() {
		return nil, errClosed
	}
	if subset.Kind != model.Node {
		return nil, fmt.Errorf("coordinates requested for %s region %s", subset.Kind, subset.Key)
	}
	out := make([][]float64, 0, len(subset.Entities))
	for _, ref := range subset.Entities {
		c := s.assembly
		if ref.Instance != "" {
			c = nil
			for _, inst := range s.instances {
				if inst.name == ref.Instance {
					c = inst
					break
				}
			}
		}
		if c == nil {
			return nil, fmt.Errorf("node %d: instance %q not found", ref.Label, ref.Instance)
		}
		coords, ok := c.nodes[ref.Label]
		if !ok {
			return nil, fmt.Errorf("node %d of %s has no coordinates", ref.Label, instanceLabel(ref.Instance))
		}
		out = append(out, append([]float64(nil), coords...))
	}
	return out, nil
}

// Close releases the handle. Further queries fail.
func (s *MemoryStore) Close() error {
	if s.closed.Swap(true) {
		return errClosed
	}
	return nil
}

func instanceLabel(name string) string {
	if name == "" {
		return AssemblyName
	}
	return name
}
