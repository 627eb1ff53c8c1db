// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"strings"

	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/batchnorm"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/gomlx/lffn/pkg/core/pixelshuffle"
	"github.com/gomlx/lffn/pkg/ml/activator"
	"github.com/gomlx/lffn/pkg/ml/summary"
	"github.com/gomlx/lffn/pkg/ml/weights"
	"github.com/pkg/errors"
)

const (
	// WeightsVariable is the name of the kernel variable, within the layer scope.
	WeightsVariable = "weights"

	// BiasesVariable is the name of the bias variable, within the layer scope.
	BiasesVariable = "biases"

	// UpsamplingSuffix is appended to the name of an upsampling layer to name its 1x1 convolution.
	UpsamplingSuffix = "_CNN"
)

// Summary scopes used for the registered streams.
const (
	WeightsSummaryScope = "weights"
	BiasesSummaryScope  = "biases"
	PReluSummaryScope   = "prelu_alpha"
)

// LayerSpec defines one convolution layer.
type LayerSpec struct {
	// Name of the layer, unique within the Session. It's also the context scope of its variables.
	Name string

	KernelHeight, KernelWidth     int
	InputFeatures, OutputFeatures int

	// Stride of the convolution. If 0, the session's cnn_stride is used.
	Stride int

	UseBias      bool
	Activation   activator.Kind
	Initializer  weights.Policy
	UseBatchNorm bool

	// DropoutKeep selects whether dropout is applied: only if < 1. The probability of keeping values is
	// the session's dropout_keep_rate, not DropoutKeep.
	DropoutKeep float64

	// Reuse the parameters of a layer with the same name already built. It fails if no such layer exists.
	Reuse bool
}

// Validate the layer definition.
func (spec *LayerSpec) Validate() error {
	if spec.Name == "" || strings.Contains(spec.Name, context.ScopeSeparator) {
		return errors.Errorf("invalid layer name %q: it must be non-empty and not contain %q",
			spec.Name, context.ScopeSeparator)
	}
	if spec.KernelHeight < 1 || spec.KernelWidth < 1 {
		return errors.Errorf("layer %q: kernel dimensions must be >= 1, got %dx%d",
			spec.Name, spec.KernelHeight, spec.KernelWidth)
	}
	if spec.InputFeatures < 1 || spec.OutputFeatures < 1 {
		return errors.Errorf("layer %q: feature counts must be >= 1, got in=%d, out=%d",
			spec.Name, spec.InputFeatures, spec.OutputFeatures)
	}
	if spec.Stride < 0 {
		return errors.Errorf("layer %q: stride must be >= 1 (or 0 for the session default), got %d",
			spec.Name, spec.Stride)
	}
	if !spec.Activation.IsAKind() {
		return errors.WithStack(&activator.UnsupportedActivatorError{Name: spec.Activation.String()})
	}
	if !spec.Initializer.IsAPolicy() {
		return errors.Errorf("layer %q: invalid initializer %s", spec.Name, spec.Initializer)
	}
	if spec.DropoutKeep <= 0 || spec.DropoutKeep > 1 {
		return errors.Errorf("layer %q: dropout keep must be in (0, 1], got %g", spec.Name, spec.DropoutKeep)
	}
	return nil
}

// ConvBuilder is a helper to build a convolution layer. See Conv and DepthwiseConv.
type ConvBuilder struct {
	s    *Session
	x    *Node
	kind LayerKind
	spec LayerSpec
}

// Conv returns a builder for a standard convolution layer named name, applied on the image x shaped
// [batch, height, width, channels].
//
// Defaults: 3x3 kernel, as many output features as input features, session stride, no bias, no activation,
// the session initializer, no batch normalization and no dropout. Call Done to build it.
func Conv(s *Session, name string, x *Node) *ConvBuilder {
	b := &ConvBuilder{s: s, x: x, kind: LayerConv}
	channels := 0
	if x.Rank() == 4 {
		channels = x.Shape().Dimensions[3]
	}
	b.spec = LayerSpec{
		Name:           name,
		KernelHeight:   3,
		KernelWidth:    3,
		InputFeatures:  channels,
		OutputFeatures: channels,
		Initializer:    s.config.Initializer,
		DropoutKeep:    1.0,
	}
	return b
}

// DepthwiseConv returns a builder for a depthwise convolution: each input channel is filtered independently.
// The defaults are the same as Conv.
func DepthwiseConv(s *Session, name string, x *Node) *ConvBuilder {
	b := Conv(s, name, x)
	b.kind = LayerDepthwiseConv
	return b
}

// Kernel sets the kernel height and width.
func (b *ConvBuilder) Kernel(height, width int) *ConvBuilder {
	b.spec.KernelHeight, b.spec.KernelWidth = height, width
	return b
}

// Features sets the number of output features.
//
// For depthwise convolutions it is only used for the size of the bias, which then must match the input features.
func (b *ConvBuilder) Features(outputFeatures int) *ConvBuilder {
	b.spec.OutputFeatures = outputFeatures
	return b
}

// InputFeatures overrides the number of input features, taken by default from x.
func (b *ConvBuilder) InputFeatures(inputFeatures int) *ConvBuilder {
	b.spec.InputFeatures = inputFeatures
	return b
}

// Stride sets the stride of the convolution. 0 uses the session's cnn_stride.
func (b *ConvBuilder) Stride(stride int) *ConvBuilder {
	b.spec.Stride = stride
	return b
}

// UseBias sets whether a bias is added.
func (b *ConvBuilder) UseBias(useBias bool) *ConvBuilder {
	b.spec.UseBias = useBias
	return b
}

// Activation sets the activation applied after the (optional) batch normalization.
func (b *ConvBuilder) Activation(kind activator.Kind) *ConvBuilder {
	b.spec.Activation = kind
	return b
}

// Initializer sets the initialization policy of the kernel.
func (b *ConvBuilder) Initializer(policy weights.Policy) *ConvBuilder {
	b.spec.Initializer = policy
	return b
}

// BatchNorm sets whether batch normalization is applied after the bias.
func (b *ConvBuilder) BatchNorm(useBatchNorm bool) *ConvBuilder {
	b.spec.UseBatchNorm = useBatchNorm
	return b
}

// Dropout sets the dropout keep value. Any value < 1 enables dropout with the session's dropout_keep_rate.
func (b *ConvBuilder) Dropout(keep float64) *ConvBuilder {
	b.spec.DropoutKeep = keep
	return b
}

// Reuse the parameters of the layer with the same name, built before. It fails if no such layer exists.
func (b *ConvBuilder) Reuse() *ConvBuilder {
	b.spec.Reuse = true
	return b
}

// Spec returns the LayerSpec configured so far.
func (b *ConvBuilder) Spec() LayerSpec { return b.spec }

// Done builds the layer and returns its output.
func (b *ConvBuilder) Done() *Node {
	return b.s.buildConv(b.kind, b.spec, b.x)
}

// ConvLayer builds a standard convolution layer, with kernel shaped [kh, kw, in, out], on x.
//
// It panics (see package exceptions) for invalid specs, for a name already built in the same graph without
// spec.Reuse, or if the session was released.
func ConvLayer(s *Session, x *Node, spec LayerSpec) *Node {
	return s.buildConv(LayerConv, spec, x)
}

// DepthwiseConvLayer builds a depthwise convolution layer, with kernel shaped [kh, kw, in, 1], on x.
// The output has spec.InputFeatures channels.
//
// The bias, if used, is shaped [spec.OutputFeatures]: if it differs from spec.InputFeatures (and is not 1)
// adding it panics with a shape error.
func DepthwiseConvLayer(s *Session, x *Node, spec LayerSpec) *Node {
	return s.buildConv(LayerDepthwiseConv, spec, x)
}

// UpsamplingLayer increases the spatial resolution of x, shaped [batch, height, width, filters], by scale.
//
// It runs a 1x1 convolution with bias named name+UpsamplingSuffix, from filters to scale²·filters features,
// followed by pixelshuffle.DepthToSpace. The output is shaped [batch, height·scale, width·scale, filters].
// The convolution weights always use weights.PolicyHe, regardless of the session initializer.
//
// The caller should update the session PixPerInput for the layers built on the output.
func UpsamplingLayer(s *Session, name string, x *Node, scale, filters int) *Node {
	if scale < 1 {
		exceptions.Panicf("upsampling layer %q: scale must be >= 1, got %d", name, scale)
	}
	spec := LayerSpec{
		Name:           name + UpsamplingSuffix,
		KernelHeight:   1,
		KernelWidth:    1,
		InputFeatures:  filters,
		OutputFeatures: scale * scale * filters,
		UseBias:        true,
		Activation:     activator.KindNone,
		Initializer:    weights.PolicyHe,
		DropoutKeep:    1.0,
	}
	x = ConvLayer(s, x, spec)
	return pixelshuffle.DepthToSpace(x, scale)
}

// buildConv implements ConvLayer and DepthwiseConvLayer.
func (s *Session) buildConv(kind LayerKind, spec LayerSpec, x *Node) *Node {
	s.checkNotReleased()
	if spec.Stride == 0 {
		spec.Stride = s.config.CnnStride
	}
	if err := spec.Validate(); err != nil {
		panic(err)
	}
	if x.Rank() != 4 || x.Shape().Dimensions[3] != spec.InputFeatures {
		exceptions.Panicf("layer %q expects an image shaped [batch, height, width, %d], got %s",
			spec.Name, spec.InputFeatures, x.Shape())
	}
	g := x.Graph()
	s.enterGraph(g)
	layerCtx := s.ctx.In(spec.Name)
	params, reused, err := s.registry.lookupOrCreate(g, kind, spec, func() *LayerParams {
		return s.createParams(layerCtx, kind, spec)
	})
	if err != nil {
		panic(err)
	}
	// Complexity is accounted for every call in the graph where the layer was first built, including reuses.
	accounted := params.builtIn(g)

	kernel := params.Weight.Variable.ValueGraph(g)
	var output *Node
	switch kind {
	case LayerConv:
		output = Convolve(x, kernel).StridePerAxis(spec.Stride, spec.Stride).PadSame().Done()
	case LayerDepthwiseConv:
		kernel = Reshape(kernel, spec.KernelHeight, spec.KernelWidth, 1, spec.InputFeatures)
		output = Convolve(x, kernel).
			StridePerAxis(spec.Stride, spec.Stride).
			PadSame().
			ChannelGroupCount(spec.InputFeatures).
			Done()
	default:
		exceptions.Panicf("layer %q: invalid layer kind %s", spec.Name, kind)
	}
	if accounted {
		s.complexity.AddConv(params.Weight.Dimensions...)
	}

	if params.Bias != nil {
		bias := ExpandLeftToRank(params.Bias.Variable.ValueGraph(g), output.Rank())
		output = Add(output, bias)
		if accounted {
			s.complexity.AddBias(spec.OutputFeatures)
		}
	}

	if spec.UseBatchNorm {
		// The fused inference op is not available in every backend.
		output = batchnorm.New(layerCtx, output, -1).UseBackendInference(false).Done()
	}
	if spec.Activation == activator.KindPRelu && s.config.SaveWeights {
		features := output.Shape().Dimensions[output.Rank()-1]
		alphas := activator.PReluAlphas(layerCtx, shapes.Make(output.DType(), features))
		s.recorder.Register(PReluSummaryScope, spec.Name+"_"+activator.PReluScope, alphas, summary.Options{})
	}
	output = activator.Apply(layerCtx, spec.Activation, output)
	if spec.DropoutKeep < 1.0 {
		output = s.dropout(output)
	}

	if !reused {
		s.specs = append(s.specs, spec)
		s.weights = append(s.weights, params.Weight)
		if params.Bias != nil {
			s.biases = append(s.biases, params.Bias)
		}
		s.state = StateBuilt
	}
	return output
}

// createParams creates the variables of a new layer.
func (s *Session) createParams(layerCtx *context.Context, kind LayerKind, spec LayerSpec) *LayerParams {
	dims := []int{spec.KernelHeight, spec.KernelWidth, spec.InputFeatures, spec.OutputFeatures}
	if kind == LayerDepthwiseConv {
		dims[3] = 1
	}
	params := &LayerParams{
		Weight: &LayerParameter{
			Layer:       spec.Name,
			Role:        RoleWeight,
			Dimensions:  dims,
			Initializer: spec.Initializer,
			Variable:    s.factory.Weight(layerCtx, WeightsVariable, s.config.DType, spec.Initializer, dims...),
		},
	}
	if spec.UseBias {
		params.Bias = &LayerParameter{
			Layer:       spec.Name,
			Role:        RoleBias,
			Dimensions:  []int{spec.OutputFeatures},
			Initializer: weights.PolicyZeros,
			Variable:    s.factory.Bias(layerCtx, BiasesVariable, s.config.DType, spec.OutputFeatures),
		}
	}
	if s.config.SaveWeights {
		s.recorder.Register(WeightsSummaryScope, spec.Name, params.Weight.Variable, summary.Options{Stddev: true})
		if params.Bias != nil {
			s.recorder.Register(BiasesSummaryScope, spec.Name, params.Bias.Variable, summary.Options{Mean: true})
		}
	}
	return params
}

// dropout randomly zeroes values of x while training, keeping each with probability dropout_keep_rate,
// and scales the kept ones by 1/dropout_keep_rate. It's a no-op during inference.
func (s *Session) dropout(x *Node) *Node {
	return layers.DropoutStatic(s.ctx, x, 1.0-s.config.DropoutKeepRate)
}
