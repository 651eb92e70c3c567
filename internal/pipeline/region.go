package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// RegionSpec is a user region specifier. It is one of SetRegion,
// LabelRegion or LabelListRegion.
type RegionSpec interface {
	fmt.Stringer
	resolve(c archive.Component, kind model.EntityKind) (model.MeshSubset, error)
}

// SetRegion names a node or element set
type SetRegion struct{ Name string }

// LabelRegion addresses a single entity by label
type LabelRegion struct{ Label int }

// LabelListRegion mixes integer labels and inclusive "start-stop" ranges
type LabelListRegion struct{ Items []interface{} }

func (r SetRegion) String() string   { return r.Name }
func (r LabelRegion) String() string { return strconv.Itoa(r.Label) }
func (r LabelListRegion) String() string {
	parts := make([]string, len(r.Items))
	for i, it := range r.Items {
		parts[i] = fmt.Sprint(it)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ResolveRegion turns a component name and region specifier into a
// validated subset. It only reads from the store.
func ResolveRegion(store archive.Store, componentName string, kind model.EntityKind, spec RegionSpec) (model.MeshSubset, error) {
	if kind != model.Node && kind != model.Element {
		return model.MeshSubset{}, &errs.InvalidMeshTypeError{Value: kind.String()}
	}
	c, err := store.Instance(componentName)
	if err != nil {
		return model.MeshSubset{}, err
	}
	subset, err := spec.resolve(c, kind)
	if err != nil {
		return model.MeshSubset{}, err
	}
	subset.Component = c.Name()
	subset.Kind = kind
	return subset, nil
}

func (r SetRegion) resolve(c archive.Component, kind model.EntityKind) (model.MeshSubset, error) {
	refs, ok := c.Set(kind, r.Name)
	if !ok {
		return model.MeshSubset{}, &errs.UnknownRegionError{
			Component: c.Name(),
			Kind:      kind.String(),
			Region:    r.Name,
			Valid:     c.SetNames(kind),
		}
	}
	return model.MeshSubset{Key: r.Name, SetName: r.Name, Entities: refs}, nil
}

func (r LabelRegion) resolve(c archive.Component, kind model.EntityKind) (model.MeshSubset, error) {
	ref, ok := c.Entity(kind, r.Label)
	if !ok {
		return model.MeshSubset{}, unknownLabels(c, kind, r.String())
	}
	return model.MeshSubset{
		Key:      kind.Prefix() + strconv.Itoa(r.Label),
		Labels:   []int{r.Label},
		Entities: []model.EntityRef{ref},
	}, nil
}

func (r LabelListRegion) resolve(c archive.Component, kind model.EntityKind) (model.MeshSubset, error) {
	labels, err := ExpandLabels(r.Items)
	if err != nil {
		return model.MeshSubset{}, &errs.UnknownRegionError{
			Component: c.Name(),
			Kind:      kind.String(),
			Region:    fmt.Sprintf("%s (%v)", r, err),
			Valid:     []string{CompactLabels(c.Labels(kind))},
		}
	}

	refs := make([]model.EntityRef, 0, len(labels))
	var missing []int
	for _, l := range labels {
		ref, ok := c.Entity(kind, l)
		if !ok {
			missing = append(missing, l)
			continue
		}
		refs = append(refs, ref)
	}
	if len(missing) > 0 {
		return model.MeshSubset{}, unknownLabels(c, kind, CompactLabels(missing))
	}
	return model.MeshSubset{
		Key:      kind.Prefix() + CompactLabels(labels),
		Labels:   labels,
		Entities: refs,
	}, nil
}

func unknownLabels(c archive.Component, kind model.EntityKind, region string) error {
	return &errs.UnknownRegionError{
		Component: c.Name(),
		Kind:      kind.String(),
		Region:    region,
		Valid:     []string{CompactLabels(c.Labels(kind))},
	}
}

// ExpandLabels expands integers and inclusive "start-stop" ranges into a
// sorted, de-duplicated label list
func ExpandLabels(items []interface{}) ([]int, error) {
	seen := make(map[int]struct{})
	for _, it := range items {
		switch v := it.(type) {
		case string:
			lo, hi, err := parseRange(v)
			if err != nil {
				return nil, err
			}
			for l := lo; l <= hi; l++ {
				seen[l] = struct{}{}
			}
		default:
			l, err := labelOf(v)
			if err != nil {
				return nil, err
			}
			seen[l] = struct{}{}
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("empty label list")
	}
	labels := make([]int, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Ints(labels)
	return labels, nil
}

func parseRange(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	lo, hi, found := strings.Cut(s, "-")
	if !found {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("label %q is not an integer or start-stop range", s)
		}
		return l, l, nil
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(lo))
	b, err2 := strconv.Atoi(strings.TrimSpace(hi))
	if err1 != nil || err2 != nil {
		return 0, 0, fmt.Errorf("range %q is not start-stop", s)
	}
	if b < a {
		return 0, 0, fmt.Errorf("range %q is reversed", s)
	}
	return a, b, nil
}

func labelOf(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("label %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("label %v (%T) is not an integer", v, v)
	}
}

// CompactLabels renders a sorted label list as ranges, e.g. "1-3,5"
func CompactLabels(labels []int) string {
	if len(labels) == 0 {
		return ""
	}
	var b strings.Builder
	start, prev := labels[0], labels[0]
	flush := func() {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		if start == prev {
			b.WriteString(strconv.Itoa(start))
		} else {
			fmt.Fprintf(&b, "%d-%d", start, prev)
		}
	}
	for _, l := range labels[1:] {
		if l == prev+1 {
			prev = l
			continue
		}
		flush()
		start, prev = l, l
	}
	flush()
	return b.String()
}
