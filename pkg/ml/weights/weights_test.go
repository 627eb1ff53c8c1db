// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package weights

import (
	"math"
	"testing"

	"github.com/gomlx/compute"
	"github.com/gomlx/compute/dtypes"
	_ "github.com/gomlx/compute/gobackend"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
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

// initialValues creates a weight with the given policy and returns its initial values.
func initialValues(t *testing.T, backend compute.Backend, f *Factory, policy Policy, dims ...int) []float32 {
	ctx := context.New()
	require.NoError(t, ctx.SetRNGStateFromSeed(42))
	output := context.MustExecOnce(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		return f.Weight(ctx.In("layer"), "weights", dtypes.Float32, policy, dims...).ValueGraph(g)
	})
	require.Equal(t, dims, output.Shape().Dimensions)
	return tensors.MustCopyFlatData[float32](output)
}

func meanAndStddev(values []float32) (mean, stddev float64) {
	for _, v := range values {
		mean += float64(v)
	}
	mean /= float64(len(values))
	for _, v := range values {
		d := float64(v) - mean
		stddev += d * d
	}
	stddev = math.Sqrt(stddev / float64(len(values)))
	return
}

func TestParsePolicy(t *testing.T) {
	for _, policy := range PolicyValues() {
		got, err := ParsePolicy(policy.String())
		require.NoError(t, err)
		assert.Equal(t, policy, got)
	}
	_, err := ParsePolicy("glorot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "glorot")
}

func TestFanInFanOut(t *testing.T) {
	fanIn, fanOut := FanInFanOut([]int{3, 3, 16, 32})
	assert.Equal(t, 144, fanIn)
	assert.Equal(t, 288, fanOut)
	fanIn, fanOut = FanInFanOut([]int{5, 5, 8, 1})
	assert.Equal(t, 200, fanIn)
	assert.Equal(t, 25, fanOut)
	fanIn, fanOut = FanInFanOut([]int{10})
	assert.Equal(t, 10, fanIn)
	assert.Equal(t, 10, fanOut)
}

func TestInitializers(t *testing.T) {
	backend := newTestBackend(t)
	f := NewFactory(DefaultStddev)

	t.Run("he", func(t *testing.T) {
		values := initialValues(t, backend, f, PolicyHe, 3, 3, 16, 32)
		want := math.Sqrt(2.0 / 144.0)
		mean, stddev := meanAndStddev(values)
		assert.InDelta(t, 0.0, mean, want/10)
		// The truncation at 2 stddevs shrinks the spread a bit.
		assert.InDelta(t, want, stddev, want*0.2)
		for _, v := range values {
			require.LessOrEqual(t, math.Abs(float64(v)), 2*want+1e-6)
		}
	})

	t.Run("xavier", func(t *testing.T) {
		values := initialValues(t, backend, f, PolicyXavier, 3, 3, 16, 32)
		want := math.Sqrt(3.0 / (144.0 + 288.0))
		_, stddev := meanAndStddev(values)
		assert.InDelta(t, want, stddev, want*0.2)
	})

	t.Run("stddev", func(t *testing.T) {
		values := initialValues(t, backend, f, PolicyStddev, 3, 3, 16, 32)
		_, stddev := meanAndStddev(values)
		assert.InDelta(t, DefaultStddev, stddev, DefaultStddev*0.2)
	})

	t.Run("uniform", func(t *testing.T) {
		values := initialValues(t, backend, f, PolicyUniform, 3, 3, 16, 32)
		for _, v := range values {
			require.GreaterOrEqual(t, float64(v), -2*DefaultStddev-1e-6)
			require.Less(t, float64(v), 2*DefaultStddev+1e-6)
		}
	})

	t.Run("identity", func(t *testing.T) {
		const kh, kw, in, out = 3, 3, 4, 6
		values := initialValues(t, backend, f, PolicyIdentity, kh, kw, in, out)
		for k := range in {
			idx := ((1*kw+1)*in+k)*out + k
			assert.Equal(t, float32(1), values[idx])
		}
	})

	t.Run("zeros", func(t *testing.T) {
		values := initialValues(t, backend, f, PolicyZeros, 1, 1, 2, 3)
		assert.Equal(t, make([]float32, 6), values)
	})
}

func TestBias(t *testing.T) {
	backend := newTestBackend(t)
	f := NewFactory(DefaultStddev)
	ctx := context.New()
	output := context.MustExecOnce(backend, ctx, func(ctx *context.Context, g *Graph) *Node {
		return f.Bias(ctx.In("layer"), "biases", dtypes.Float32, 5).ValueGraph(g)
	})
	assert.Equal(t, []float32{0, 0, 0, 0, 0}, tensors.MustCopyFlatData[float32](output))
}

func TestInvalidPolicy(t *testing.T) {
	f := NewFactory(DefaultStddev)
	err := exceptions.TryCatch[error](func() { f.Initializer(context.New(), Policy(42)) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Policy(42)")
}
