package pipeline

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-fea-pipeline/internal/model"
)

func TestSampleIndices(t *testing.T) {
	tests := []struct {
		total, n int
		want     []int
	}{
		{10, 3, []int{0, 3, 6, 9}},
		{10, 0, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{4, -1, []int{0, 1, 2, 3}},
		{4, 4, []int{0, 1, 2, 3}},
		{4, 10, []int{0, 1, 2, 3}},
		{2, 1, []int{0, 1}},
		{1, 1, []int{0}},
		{0, 3, nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("T=%d/N=%d", tt.total, tt.n), func(t *testing.T) {
			assert.Equal(t, tt.want, SampleIndices(tt.total, tt.n))
		})
	}
}

func TestSampleIndicesBounds(t *testing.T) {
	for total := 1; total <= 60; total++ {
		for n := 1; n <= total; n++ {
			idx := SampleIndices(total, n)
			require.NotEmpty(t, idx, "T=%d N=%d", total, n)
			assert.Equal(t, 0, idx[0], "T=%d N=%d", total, n)
			assert.Equal(t, total-1, idx[len(idx)-1], "T=%d N=%d", total, n)
			assert.LessOrEqual(t, len(idx), n+1, "T=%d N=%d", total, n)
			for i := 1; i < len(idx); i++ {
				assert.Greater(t, idx[i], idx[i-1], "T=%d N=%d", total, n)
			}
		}
	}
}

func TestSampleFramesKeepsTimes(t *testing.T) {
	frames := make([]model.Frame, 10)
	for i := range frames {
		frames[i] = model.Frame{Index: i, Time: float64(i) * 0.5}
	}

	got := SampleFrames(frames, 3)
	assert.Equal(t, []model.Frame{
		{Index: 0, Time: 0},
		{Index: 3, Time: 1.5},
		{Index: 6, Time: 3},
		{Index: 9, Time: 4.5},
	}, got)
	assert.Empty(t, SampleFrames(nil, 3))
}
