package pipeline

import (
	"math"

	"go-fea-pipeline/internal/model"
)

// SampleFrames picks an evenly spaced subset of frames that always keeps
// the first and the last frame. n <= 0 or n >= len(frames) keeps all.
func SampleFrames(frames []model.Frame, n int) []model.Frame {
	idx := SampleIndices(len(frames), n)
	out := make([]model.Frame, len(idx))
	for i, j := range idx {
		out[i] = frames[j]
	}
	return out
}

// SampleIndices returns the frame indices SampleFrames keeps. The stride is
// round(total/n); it is widened when that would return more than n+1
// indices.
func SampleIndices(total, n int) []int {
	if total <= 0 {
		return nil
	}
	if n <= 0 || n >= total {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}

	stride := int(math.Round(float64(total) / float64(n)))
	if stride < 1 {
		stride = 1
	}
	for sampledCount(total, stride) > n+1 {
		stride++
	}

	idx := make([]int, 0, n+1)
	for i := 0; i < total; i += stride {
		idx = append(idx, i)
	}
	if idx[len(idx)-1] != total-1 {
		idx = append(idx, total-1)
	}
	return idx
}

func sampledCount(total, stride int) int {
	c := (total + stride - 1) / stride
	if (total-1)%stride != 0 {
		c++
	}
	return c
}
