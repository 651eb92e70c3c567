package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"go-fea-pipeline/internal/archive"
	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// RequestPlan is a validated request that has not been resolved against an
// archive yet
type RequestPlan struct {
	Component string
	Kind      model.EntityKind
	Region    RegionSpec
	Fields    []string
	Strategy  Strategy
}

// FieldRequest is a resolved subset, the fields to pull from it and the
// reduction applied to them
type FieldRequest struct {
	Subset   model.MeshSubset
	Fields   []string
	Strategy Strategy
}

// PlanRequests validates field requests before any archive is opened. All
// problems are reported together.
func PlanRequests(specs []model.FieldRequestSpec) ([]RequestPlan, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("%w: no field requests", errs.ErrInvalidConfig)
	}

	var plans []RequestPlan
	var problems []error
	for i, fr := range specs {
		component := strings.TrimSpace(fr.Component)
		if component == "" {
			component = archive.AssemblyName
		}
		if len(fr.Subsets) == 0 {
			problems = append(problems, fmt.Errorf("%w: field_requests[%d] (%s) has no subsets", errs.ErrInvalidConfig, i, component))
		}
		for j, sub := range fr.Subsets {
			where := fmt.Sprintf("field_requests[%d].subsets[%d]", i, j)

			kind, err := model.ParseEntityKind(sub.MeshType)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", where, err))
				continue
			}
			strategy, err := ParseStrategy(sub.Strategy)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", where, err))
				continue
			}
			if err := strategy.accepts(kind); err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", where, err))
				continue
			}
			fields := normalizeFields(sub.Fields)
			if len(fields) == 0 {
				problems = append(problems, fmt.Errorf("%w: %s lists no fields", errs.ErrInvalidConfig, where))
				continue
			}

			regions, err := regionSpecs(sub)
			if err != nil {
				problems = append(problems, fmt.Errorf("%s: %w", where, err))
				continue
			}
			for _, region := range regions {
				plans = append(plans, RequestPlan{
					Component: component,
					Kind:      kind,
					Region:    region,
					Fields:    fields,
					Strategy:  strategy,
				})
			}
		}
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}
	return plans, nil
}

func normalizeFields(fields []string) []string {
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func regionSpecs(sub model.SubsetSpec) ([]RegionSpec, error) {
	var out []RegionSpec
	for _, id := range sub.MeshIDs {
		switch v := id.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return nil, fmt.Errorf("%w: empty set name in mesh_ids", errs.ErrInvalidConfig)
			}
			out = append(out, SetRegion{Name: v})
		default:
			label, err := labelOf(v)
			if err != nil {
				return nil, fmt.Errorf("%w: mesh_ids: %v", errs.ErrInvalidConfig, err)
			}
			out = append(out, LabelRegion{Label: label})
		}
	}
	for _, group := range sub.LabelGroups {
		if len(group) == 0 {
			return nil, fmt.Errorf("%w: empty label group", errs.ErrInvalidConfig)
		}
		out = append(out, LabelListRegion{Items: group})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: subset names no mesh_ids or label_groups", errs.ErrInvalidConfig)
	}
	return out, nil
}

// ResolveRequests resolves plans against an open store. A plan that cannot
// be resolved becomes a failure and does not affect the others.
func ResolveRequests(store archive.Store, plans []RequestPlan) ([]FieldRequest, []model.Failure) {
	var requests []FieldRequest
	var failures []model.Failure
	for _, p := range plans {
		subset, err := ResolveRegion(store, p.Component, p.Kind, p.Region)
		if err != nil {
			failures = append(failures, model.Failure{
				Archive: store.Path(),
				Region:  p.Component + "/" + p.Region.String(),
				Kind:    errs.Kind(err),
				Message: err.Error(),
			})
			continue
		}
		requests = append(requests, FieldRequest{Subset: subset, Fields: p.Fields, Strategy: p.Strategy})
	}
	return requests, failures
}

// disambiguate keeps the series of every request under a key of its own.
// Requests that share a region key get the component, the strategy or both
// appended as KEY[component,strategy]. A field asked for twice under the
// same final key is dropped and reported.
func disambiguate(requests []FieldRequest) ([]FieldRequest, []model.Warning) {
	out := make([]FieldRequest, len(requests))
	copy(out, requests)

	groups := make(map[string][]int)
	var order []string
	for i, req := range out {
		key := req.Subset.Key
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}
	for _, key := range order {
		idx := groups[key]
		if len(idx) < 2 {
			continue
		}
		first := out[idx[0]]
		var mixedComponents, mixedStrategies bool
		for _, i := range idx[1:] {
			mixedComponents = mixedComponents || out[i].Subset.Component != first.Subset.Component
			mixedStrategies = mixedStrategies || out[i].Strategy != first.Strategy
		}
		for _, i := range idx {
			var qualifiers []string
			if mixedComponents {
				qualifiers = append(qualifiers, out[i].Subset.Component)
			}
			if mixedStrategies {
				qualifiers = append(qualifiers, strategyLabel(out[i].Strategy))
			}
			if len(qualifiers) > 0 {
				out[i].Subset.Key = key + "[" + strings.Join(qualifiers, ",") + "]"
			}
		}
	}

	seen := make(map[string]bool)
	var dropped []model.Warning
	kept := out[:0]
	for _, req := range out {
		fields := make([]string, 0, len(req.Fields))
		for _, f := range req.Fields {
			id := req.Subset.Key + "\x00" + f
			if seen[id] {
				err := fmt.Errorf("%w: %s on %s is already requested", errs.ErrDuplicateRequest, f, req.Subset.Key)
				dropped = append(dropped, model.Warning{
					Region:  req.Subset.Key,
					Field:   f,
					Kind:    errs.Kind(err),
					Message: err.Error(),
				})
				continue
			}
			seen[id] = true
			fields = append(fields, f)
		}
		if len(fields) == 0 {
			continue
		}
		req.Fields = fields
		kept = append(kept, req)
	}
	return kept, dropped
}

func strategyLabel(s Strategy) string {
	a, ok := s.(Axisymmetric)
	if !ok {
		return s.Name()
	}
	label := fmt.Sprintf("%s-%d", a.Name(), a.Axis)
	if a.Component != "" {
		label += "-" + a.Component
	}
	return label
}
