// Package archive is the read path into FEA results archives.
//
// A Store is one open handle on one archive. Handles are owned by the
// caller that opened them and must be closed by that caller; nothing in
// this package keeps a process-wide handle.
package archive

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"go-fea-pipeline/internal/errs"
	"go-fea-pipeline/internal/model"
)

// AssemblyName addresses the root assembly instead of an instance
const AssemblyName = "assembly"

// Component is the assembly or one instance of it
type Component interface {
	Name() string
	SetNames(kind model.EntityKind) []string
	Set(kind model.EntityKind, name string) ([]model.EntityRef, bool)
	Entity(kind model.EntityKind, label int) (model.EntityRef, bool)
	Labels(kind model.EntityKind) []int
}

// Store is the narrow read interface the extraction core consumes
type Store interface {
	Path() string
	Steps() []model.AnalysisStep
	InstanceNames() []string
	Assembly() Component
	Instance(name string) (Component, error)
	FieldNames(step string, frame int) []string
	FieldComponents(step string, frame int, field string) ([]string, error)
	FieldValues(step string, frame int, field string, subset model.MeshSubset) ([][]float64, error)
	NodeCoordinates(subset model.MeshSubset) ([][]float64, error)
	Close() error
}

// PrincipalProvider is implemented by stores that compute the maximum
// principal invariant of a tensor field themselves
type PrincipalProvider interface {
	MaxPrincipal(step string, frame int, field string, subset model.MeshSubset) ([]float64, error)
}

// RetryPolicy bounds OpenWithRetry
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy waits for a solver to release its lock for roughly a minute
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts:     8,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     15 * time.Second,
}

// Open loads an archive document (plain or gzip-compressed JSON) into an
// in-memory store. An archive still locked by a running analysis fails
// with errs.ErrArchiveLocked.
func Open(path string) (*MemoryStore, error) {
	if lock := LockPath(path); lock != "" {
		if _, err := os.Stat(lock); err == nil {
			return nil, fmt.Errorf("%s: %w (lock file %s)", path, errs.ErrArchiveLocked, filepath.Base(lock))
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open archive %s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", path, err)
	}
	return NewMemoryStore(path, &doc)
}

// OpenWithRetry opens an archive, retrying with exponential backoff while
// it is locked. Any other failure is returned immediately.
func OpenWithRetry(ctx context.Context, path string, policy RetryPolicy, notify func(err error, wait time.Duration)) (*MemoryStore, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		b.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		b.MaxInterval = policy.MaxInterval
	}

	var bo backoff.BackOff = b
	if policy.MaxAttempts > 0 {
		bo = backoff.WithMaxRetries(b, uint64(policy.MaxAttempts-1))
	}
	bo = backoff.WithContext(bo, ctx)

	var store *MemoryStore
	err := backoff.RetryNotify(func() error {
		s, err := Open(path)
		if err != nil {
			if errors.Is(err, errs.ErrArchiveLocked) {
				return err
			}
			return backoff.Permanent(err)
		}
		store = s
		return nil
	}, bo, notify)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// LockPath returns the lock file a solver keeps next to a running job's
// results: "<dir>/<job>.lck" for "<dir>/<job>.<ext...>".
func LockPath(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" || base == "." {
		return ""
	}
	return filepath.Join(filepath.Dir(path), base+".lck")
}

// Summary describes an archive's contents for diagnostics
type Summary struct {
	Path      string            `json:"path" yaml:"path"`
	Instances []InstanceSummary `json:"instances" yaml:"instances"`
	Steps     []StepSummary     `json:"steps" yaml:"steps"`
}

// InstanceSummary lists the named sets of one model component
type InstanceSummary struct {
	Name        string   `json:"name" yaml:"name"`
	Nodes       int      `json:"nodes" yaml:"nodes"`
	Elements    int      `json:"elements" yaml:"elements"`
	NodeSets    []string `json:"node_sets,omitempty" yaml:"node_sets,omitempty"`
	ElementSets []string `json:"element_sets,omitempty" yaml:"element_sets,omitempty"`
}

// StepSummary lists the frames and fields of one step
type StepSummary struct {
	Name    string   `json:"name" yaml:"name"`
	Frames  int      `json:"frames" yaml:"frames"`
	EndTime float64  `json:"end_time" yaml:"end_time"`
	Fields  []string `json:"fields" yaml:"fields"`
}

// Describe summarizes an open store
func Describe(s Store) Summary {
	sum := Summary{Path: s.Path()}

	components := []Component{s.Assembly()}
	for _, name := range s.InstanceNames() {
		if c, err := s.Instance(name); err == nil {
			components = append(components, c)
		}
	}
	for _, c := range components {
		sum.Instances = append(sum.Instances, InstanceSummary{
			Name:        c.Name(),
			Nodes:       len(c.Labels(model.Node)),
			Elements:    len(c.Labels(model.Element)),
			NodeSets:    c.SetNames(model.Node),
			ElementSets: c.SetNames(model.Element),
		})
	}

	for _, step := range s.Steps() {
		ss := StepSummary{Name: step.Name, Frames: len(step.Frames)}
		if n := len(step.Frames); n > 0 {
			ss.EndTime = step.Frames[n-1].Time
			ss.Fields = s.FieldNames(step.Name, 0)
		}
		sum.Steps = append(sum.Steps, ss)
	}
	return sum
}
