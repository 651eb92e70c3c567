// Package errs defines the failure taxonomy of an extraction run.
//
// Every failure maps onto one of the sentinel errors below so callers can
// branch with errors.Is. Typed errors carry the payload needed to fix a
// configuration without re-running extraction blind (valid instance names,
// valid set names, entity counts).
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownInstance  = errors.New("unknown instance")
	ErrUnknownRegion    = errors.New("unknown region")
	ErrFieldUnavailable = errors.New("field unavailable")
	ErrVolumeMismatch   = errors.New("volume mismatch")
	ErrInvalidMeshType  = errors.New("invalid mesh type")
	ErrInvalidStrategy  = errors.New("invalid aggregation strategy")
	ErrArchiveLocked    = errors.New("archive locked")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrDuplicateRequest = errors.New("duplicate request")
)

// UnknownInstanceError is returned when a model component name matches no
// instance of the assembly, or matches more than one.
type UnknownInstanceError struct {
	Name  string
	Valid []string
}

func (e *UnknownInstanceError) Error() string {
	return fmt.Sprintf("instance %q does not exist; valid instances: [%s]", e.Name, strings.Join(e.Valid, ", "))
}

func (e *UnknownInstanceError) Is(target error) bool { return target == ErrUnknownInstance }

// UnknownRegionError is returned when a set name or entity label cannot be
// found on the resolved model component.
type UnknownRegionError struct {
	Component string
	Kind      string
	Region    string
	Valid     []string
}

func (e *UnknownRegionError) Error() string {
	return fmt.Sprintf("%s region %q not found on %s; valid: [%s]",
		e.Kind, e.Region, e.Component, strings.Join(e.Valid, ", "))
}

func (e *UnknownRegionError) Is(target error) bool { return target == ErrUnknownRegion }

// VolumeMismatchError reports an IVOL array whose row count differs from the
// field array it weights.
type VolumeMismatchError struct {
	Frame      int
	FieldRows  int
	VolumeRows int
}

func (e *VolumeMismatchError) Error() string {
	return fmt.Sprintf("frame %d: field has %d rows but IVOL has %d", e.Frame, e.FieldRows, e.VolumeRows)
}

func (e *VolumeMismatchError) Is(target error) bool { return target == ErrVolumeMismatch }

// InvalidMeshTypeError reports an entity kind other than node or element.
type InvalidMeshTypeError struct {
	Value string
}

func (e *InvalidMeshTypeError) Error() string {
	return fmt.Sprintf("mesh type %q is not one of [node, element]", e.Value)
}

func (e *InvalidMeshTypeError) Is(target error) bool { return target == ErrInvalidMeshType }

// ContextError attaches the step, region and field a failure belongs to.
type ContextError struct {
	Step   string
	Region string
	Field  string
	Err    error
}

func (e *ContextError) Error() string {
	var parts []string
	if e.Step != "" {
		parts = append(parts, "step="+e.Step)
	}
	if e.Region != "" {
		parts = append(parts, "region="+e.Region)
	}
	if e.Field != "" {
		parts = append(parts, "field="+e.Field)
	}
	if len(parts) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("[%s] %v", strings.Join(parts, " "), e.Err)
}

func (e *ContextError) Unwrap() error { return e.Err }

// WithContext wraps err with step, region and field information. A nil err
// stays nil.
func WithContext(step, region, field string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextError{Step: step, Region: region, Field: field, Err: err}
}

// IsRecoverable reports whether a failure only skips one field and should be
// surfaced as a warning instead of a failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrFieldUnavailable)
}

// IsConfigError reports whether err was caused by the run configuration
// rather than by the archive contents.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidMeshType) ||
		errors.Is(err, ErrInvalidStrategy)
}

// Kind returns a short classification label used in reports and the run store.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownInstance):
		return "unknown_instance"
	case errors.Is(err, ErrUnknownRegion):
		return "unknown_region"
	case errors.Is(err, ErrFieldUnavailable):
		return "field_unavailable"
	case errors.Is(err, ErrVolumeMismatch):
		return "volume_mismatch"
	case errors.Is(err, ErrInvalidMeshType):
		return "invalid_mesh_type"
	case errors.Is(err, ErrInvalidStrategy):
		return "invalid_strategy"
	case errors.Is(err, ErrArchiveLocked):
		return "archive_locked"
	case errors.Is(err, ErrInvalidConfig):
		return "invalid_config"
	case errors.Is(err, ErrDuplicateRequest):
		return "duplicate_request"
	default:
		return "internal"
	}
}
