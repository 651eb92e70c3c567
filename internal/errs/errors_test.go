package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnknownInstanceError_ListsValidNames(t *testing.T) {
	err := &UnknownInstanceError{Name: "PART-9", Valid: []string{"PART-1-1", "PART-2-1"}}

	assert.True(t, errors.Is(err, ErrUnknownInstance))
	assert.False(t, errors.Is(err, ErrUnknownRegion))
	assert.Contains(t, err.Error(), "PART-1-1, PART-2-1")
}

func TestContextError_UnwrapsToSentinel(t *testing.T) {
	base := &VolumeMismatchError{Frame: 3, FieldRows: 8, VolumeRows: 4}
	err := fmt.Errorf("aggregate: %w", WithContext("Step-1", "TOP", "S", base))

	require.True(t, errors.Is(err, ErrVolumeMismatch))

	var ce *ContextError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "Step-1", ce.Step)
	assert.Equal(t, "TOP", ce.Region)
	assert.Equal(t, "S", ce.Field)
	assert.Contains(t, err.Error(), "step=Step-1 region=TOP field=S")
}

func TestWithContext_NilStaysNil(t *testing.T) {
	assert.NoError(t, WithContext("s", "r", "f", nil))
}

func TestKindAndClassification(t *testing.T) {
	cases := []struct {
		err         error
		kind        string
		recoverable bool
		config      bool
	}{
		{fmt.Errorf("x: %w", ErrFieldUnavailable), "field_unavailable", true, false},
		{&UnknownRegionError{Region: "X"}, "unknown_region", false, false},
		{&InvalidMeshTypeError{Value: "face"}, "invalid_mesh_type", false, true},
		{ErrInvalidStrategy, "invalid_strategy", false, true},
		{fmt.Errorf("%w: S on ALL", ErrDuplicateRequest), "duplicate_request", false, false},
		{errors.New("boom"), "internal", false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Kind(tc.err))
		assert.Equal(t, tc.recoverable, IsRecoverable(tc.err))
		assert.Equal(t, tc.config, IsConfigError(tc.err))
	}
	assert.Equal(t, "", Kind(nil))
}
