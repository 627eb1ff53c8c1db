// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package weights creates the learnable weights and biases of convolution layers, initialized according to
// a named Policy.
//
// All policies assume the convolution kernel layout [kernelHeight, kernelWidth, inputFeatures, outputFeatures]
// when computing fan-in and fan-out. Lower rank shapes are handled generically.
package weights

import (
	"math"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/pkg/errors"
)

// Policy used to initialize a weight.
type Policy int

const (
	// PolicyHe draws from a truncated normal with stddev sqrt(2/fanIn).
	PolicyHe Policy = iota

	// PolicyXavier draws from a truncated normal with stddev sqrt(3/(fanIn+fanOut)).
	PolicyXavier

	// PolicyUniform draws uniformly from [-2·stddev, 2·stddev), where stddev is the Factory's.
	PolicyUniform

	// PolicyStddev draws from a truncated normal with the Factory's stddev.
	PolicyStddev

	// PolicyIdentity is PolicyHe with the center tap of the kernel set to 1 on the "diagonal" (input feature k
	// to output feature k), so the layer starts close to an identity.
	PolicyIdentity

	// PolicyZeros initializes everything to 0.
	PolicyZeros
)

//go:generate go tool enumer -type Policy -trimprefix=Policy -transform=snake -output=gen_policy_enumer.go weights.go

// DefaultStddev is the default spread used by PolicyUniform and PolicyStddev.
const DefaultStddev = 0.01

// ParsePolicy converts a policy name ("he", "xavier", "uniform", "stddev", "identity", "zeros") to a Policy.
func ParsePolicy(name string) (Policy, error) {
	policy, err := PolicyString(name)
	if err != nil {
		return PolicyHe, errors.Errorf("unknown weight initializer %q: options are %v", name, PolicyStrings())
	}
	return policy, nil
}

// FanInFanOut returns the fan-in and fan-out of a weight with the given dimensions.
//
// For a convolution kernel [kh, kw, in, out] it is (kh·kw·in, kh·kw·out). Unlike the initializers package,
// a rank-1 weight (e.g. a depthwise kernel flattened by a caller) has fan-in and fan-out equal to its size.
func FanInFanOut(dims []int) (fanIn, fanOut int) {
	switch len(dims) {
	case 0:
		return 1, 1
	case 1:
		return dims[0], dims[0]
	}
	receptive := 1
	for _, dim := range dims[:len(dims)-2] {
		receptive *= dim
	}
	fanIn = receptive * dims[len(dims)-2]
	fanOut = receptive * dims[len(dims)-1]
	return
}

// Factory creates initialized weights and biases.
//
// The random values are drawn from the context random number generator, so they are reproducible if the
// context was seeded.
type Factory struct {
	// Stddev is the spread used by PolicyUniform and PolicyStddev.
	Stddev float64
}

// NewFactory returns a Factory with the given spread for PolicyUniform and PolicyStddev.
func NewFactory(stddev float64) *Factory {
	return &Factory{Stddev: stddev}
}

// Initializer returns the variable initializer for the given policy.
//
// ctx is used for its random number generator. It panics for an invalid policy.
func (f *Factory) Initializer(ctx *context.Context, policy Policy) context.VariableInitializer {
	switch policy {
	case PolicyHe:
		return func(g *Graph, shape shapes.Shape) *Node {
			fanIn, _ := FanInFanOut(shape.Dimensions)
			return truncatedNormal(ctx, g, shape, math.Sqrt(2.0/float64(fanIn)))
		}
	case PolicyXavier:
		return func(g *Graph, shape shapes.Shape) *Node {
			fanIn, fanOut := FanInFanOut(shape.Dimensions)
			return truncatedNormal(ctx, g, shape, math.Sqrt(3.0/float64(fanIn+fanOut)))
		}
	case PolicyUniform:
		return initializers.RandomUniformFn(ctx, -2*f.Stddev, 2*f.Stddev)
	case PolicyStddev:
		stddev := f.Stddev
		return func(g *Graph, shape shapes.Shape) *Node {
			return truncatedNormal(ctx, g, shape, stddev)
		}
	case PolicyIdentity:
		he := f.Initializer(ctx, PolicyHe)
		return func(g *Graph, shape shapes.Shape) *Node {
			values := he(g, shape)
			if shape.Rank() != 4 {
				return values
			}
			mask := ConvertDType(Const(g, identityMask(shape.Dimensions)), shape.DType)
			mask = Reshape(mask, shape.Dimensions...)
			return Add(Mul(values, OneMinus(mask)), mask)
		}
	case PolicyZeros:
		return initializers.Zero
	}
	exceptions.Panicf("invalid weight initializer policy %s: options are %v", policy, PolicyStrings())
	return nil
}

// Weight creates (or returns, if it already exists and ctx allows reuse) the variable name in ctx with the
// given dimensions, initialized with policy.
func (f *Factory) Weight(ctx *context.Context, name string, dtype dtypes.DType, policy Policy, dims ...int) *context.Variable {
	return ctx.WithInitializer(f.Initializer(ctx, policy)).VariableWithShape(name, shapes.Make(dtype, dims...))
}

// Bias creates (or returns, if it already exists and ctx allows reuse) the zero initialized variable name in ctx
// with shape [size].
func (f *Factory) Bias(ctx *context.Context, name string, dtype dtypes.DType, size int) *context.Variable {
	return ctx.WithInitializer(initializers.Zero).VariableWithShape(name, shapes.Make(dtype, size))
}

// truncatedNormal draws from a normal distribution with the given stddev, with values farther than 2 stddevs
// from the mean redrawn once and then clipped.
//
// initializers.HeFn and initializers.RandomNormalFn draw from the untruncated normal, and the latter returns
// zeros for float16 variables.
func truncatedNormal(ctx *context.Context, g *Graph, shape shapes.Shape, stddev float64) *Node {
	values := ctx.RandomNormal(g, shape)
	redraw := ctx.RandomNormal(g, shape)
	values = Where(GreaterThan(Abs(values), Scalar(g, shape.DType, 2)), redraw, values)
	values = ClipScalar(values, -2, 2)
	return MulScalar(values, stddev)
}

// identityMask returns a flat mask with ones at [kh/2, kw/2, k, k] for k < min(in, out).
func identityMask(dims []int) []float32 {
	kh, kw, in, out := dims[0], dims[1], dims[2], dims[3]
	mask := make([]float32, kh*kw*in*out)
	i, j := kh/2, kw/2
	for k := range min(in, out) {
		mask[((i*kw+j)*in+k)*out+k] = 1
	}
	return mask
}
