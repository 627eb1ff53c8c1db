// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pixelshuffle

import (
	"fmt"
	"testing"

	"github.com/gomlx/compute"
	"github.com/gomlx/compute/dtypes"
	_ "github.com/gomlx/compute/gobackend"
	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) compute.Backend {
	backend, err := compute.NewWithConfig("go")
	require.NoError(t, err)
	t.Cleanup(backend.Finalize)
	return backend
}

func iota32(size int) []float32 {
	values := make([]float32, size)
	for i := range values {
		values[i] = float32(i)
	}
	return values
}

func TestDepthToSpaceInterleaving(t *testing.T) {
	backend := newTestBackend(t)
	// One pixel with 4 channels becomes a 2x2 patch with 1 channel: channel (dh·2+dw) goes to (dh, dw).
	got := MustExecOnce(backend, func(x *Node) *Node {
		return DepthToSpace(x, 2)
	}, [][][][]float32{{{{0, 1, 2, 3}}}})
	assert.Equal(t, [][][][]float32{{{{0}, {1}}, {{2}, {3}}}}, got.Value())

	// Two output channels: for channel c, the value at (dh, dw) comes from input channel (dh·2+dw)·2+c.
	got = MustExecOnce(backend, func(x *Node) *Node {
		return DepthToSpace(x, 2)
	}, [][][][]float32{{{{0, 10, 1, 11, 2, 12, 3, 13}}}})
	assert.Equal(t, [][][][]float32{{{{0, 10}, {1, 11}}, {{2, 12}, {3, 13}}}}, got.Value())
}

func TestDepthToSpaceMatchesHost(t *testing.T) {
	backend := newTestBackend(t)
	for _, tc := range []struct {
		dims  [4]int
		scale int
	}{
		{[4]int{1, 16, 16, 32}, 2},
		{[4]int{2, 3, 4, 18}, 3},
		{[4]int{1, 2, 5, 16}, 4},
		{[4]int{3, 2, 2, 5}, 1},
	} {
		t.Run(fmt.Sprintf("%v/scale=%d", tc.dims, tc.scale), func(t *testing.T) {
			input := iota32(tc.dims[0] * tc.dims[1] * tc.dims[2] * tc.dims[3])
			want, wantDims, err := HostDepthToSpace(input, tc.dims, tc.scale)
			require.NoError(t, err)
			got := MustExecOnce(backend, func(g *Graph) *Node {
				return DepthToSpace(IotaFull(g, shapes.Make(dtypes.Float32, tc.dims[:]...)), tc.scale)
			})
			assert.Equal(t, wantDims[:], got.Shape().Dimensions)
			assert.Equal(t, want, tensors.MustCopyFlatData[float32](got))
		})
	}
}

func TestRoundTrip(t *testing.T) {
	backend := newTestBackend(t)
	for scale := 1; scale <= 4; scale++ {
		for _, channels := range []int{1, 3, 8} {
			dims := []int{2, 3, 5, scale * scale * channels}
			t.Run(fmt.Sprintf("scale=%d/channels=%d", scale, channels), func(t *testing.T) {
				outputs := MustExecOnceN(backend, func(g *Graph) []*Node {
					x := IotaFull(g, shapes.Make(dtypes.Float32, dims...))
					upsampled := DepthToSpace(x, scale)
					return []*Node{x, upsampled, SpaceToDepth(upsampled, scale)}
				})
				assert.Equal(t, []int{2, 3 * scale, 5 * scale, channels}, outputs[1].Shape().Dimensions)
				assert.Equal(t, dims, outputs[2].Shape().Dimensions)
				assert.Equal(t, tensors.MustCopyFlatData[float32](outputs[0]),
					tensors.MustCopyFlatData[float32](outputs[2]))
			})
		}
	}
}

func TestHostRoundTrip(t *testing.T) {
	dims := [4]int{2, 4, 3, 27}
	input := iota32(2 * 4 * 3 * 27)
	upsampled, upDims, err := HostDepthToSpace(input, dims, 3)
	require.NoError(t, err)
	assert.Equal(t, [4]int{2, 12, 9, 3}, upDims)
	restored, restoredDims, err := HostSpaceToDepth(upsampled, upDims, 3)
	require.NoError(t, err)
	assert.Equal(t, dims, restoredDims)
	assert.Equal(t, input, restored)

	_, _, err = HostDepthToSpace(input, dims, 2)
	require.Error(t, err)
	_, _, err = HostSpaceToDepth(input, dims, 2)
	require.Error(t, err)
}

func TestInvalidShapes(t *testing.T) {
	backend := newTestBackend(t)
	for name, fn := range map[string]func(g *Graph) *Node{
		"channels": func(g *Graph) *Node {
			return DepthToSpace(Zeros(g, shapes.Make(dtypes.Float32, 1, 4, 4, 6)), 2)
		},
		"rank": func(g *Graph) *Node {
			return DepthToSpace(Zeros(g, shapes.Make(dtypes.Float32, 4, 4, 8)), 2)
		},
		"scale": func(g *Graph) *Node {
			return SpaceToDepth(Zeros(g, shapes.Make(dtypes.Float32, 1, 4, 4, 8)), 0)
		},
		"spatial": func(g *Graph) *Node {
			return SpaceToDepth(Zeros(g, shapes.Make(dtypes.Float32, 1, 5, 4, 8)), 2)
		},
	} {
		t.Run(name, func(t *testing.T) {
			err := exceptions.TryCatch[error](func() { _ = MustExecOnce(backend, fn) })
			require.Error(t, err)
		})
	}
}
