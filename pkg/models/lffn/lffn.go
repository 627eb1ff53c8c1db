// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package lffn assembles a Lightweight Feature Fusion Network for single image super-resolution.
//
// The network is made of:
//
//   - Feature extraction: a 3x3 convolution from the image channels to Config.Filters features.
//   - Fusion blocks: each a depthwise 3x3 convolution followed by a pointwise 1x1 convolution, with a residual
//     connection around the pair.
//   - Feature fusion: the outputs of all blocks are concatenated and fused back to Config.Filters features by a
//     1x1 convolution, plus a global residual from the extracted features.
//   - Upsampling: a 1x1 convolution followed by a pixel shuffle (see srgraph.UpsamplingLayer).
//   - Reconstruction: a 3x3 convolution back to the image channels, at the upsampled resolution.
//
// The configuration is read from the context hyperparameters, see CreateDefaultContext.
package lffn

import (
	"fmt"

	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/gomlx/lffn/pkg/ml/activator"
	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/pkg/errors"
)

// Hyperparameters of the model, read by ConfigFromContext.
const (
	// ParamScale is the upsampling factor.
	ParamScale = "lffn_scale"

	// ParamFilters is the number of features of the inner layers.
	ParamFilters = "lffn_filters"

	// ParamBlocks is the number of fusion blocks.
	ParamBlocks = "lffn_blocks"

	// ParamChannels is the number of channels of the images: 1 for luminance only, 3 for RGB.
	ParamChannels = "lffn_channels"

	// ParamActivator is the activation used after the convolutions, see activator.ParseKind.
	ParamActivator = "lffn_activator"

	// ParamBatchNorm enables batch normalization in the fusion blocks.
	ParamBatchNorm = "lffn_batch_norm"

	// ParamDropout enables dropout after the fusion blocks, with the session dropout_keep_rate.
	ParamDropout = "lffn_dropout"
)

// Config of the model.
type Config struct {
	Scale, Filters, Blocks, Channels int
	Activator                        activator.Kind
	BatchNorm, Dropout               bool
}

// DefaultConfig returns the default configuration of the model.
func DefaultConfig() Config {
	return Config{
		Scale:     2,
		Filters:   32,
		Blocks:    4,
		Channels:  1,
		Activator: activator.KindPRelu,
	}
}

// CreateDefaultContext returns a context with the default hyperparameters of the model and of the session
// (see srgraph.CreateDefaultContext).
func CreateDefaultContext() *context.Context {
	ctx := srgraph.CreateDefaultContext()
	c := DefaultConfig()
	ctx.SetParams(map[string]any{
		ParamScale:     c.Scale,
		ParamFilters:   c.Filters,
		ParamBlocks:    c.Blocks,
		ParamChannels:  c.Channels,
		ParamActivator: c.Activator.String(),
		ParamBatchNorm: c.BatchNorm,
		ParamDropout:   c.Dropout,
	})
	return ctx
}

// ConfigFromContext reads the model configuration from the context hyperparameters.
func ConfigFromContext(ctx *context.Context) (Config, error) {
	c := DefaultConfig()
	c.Scale = context.GetParamOr(ctx, ParamScale, c.Scale)
	c.Filters = context.GetParamOr(ctx, ParamFilters, c.Filters)
	c.Blocks = context.GetParamOr(ctx, ParamBlocks, c.Blocks)
	c.Channels = context.GetParamOr(ctx, ParamChannels, c.Channels)
	c.BatchNorm = context.GetParamOr(ctx, ParamBatchNorm, c.BatchNorm)
	c.Dropout = context.GetParamOr(ctx, ParamDropout, c.Dropout)
	var err error
	c.Activator, err = activator.ParseKind(context.GetParamOr(ctx, ParamActivator, c.Activator.String()))
	if err != nil {
		return c, errors.WithMessagef(err, "hyperparameter %q", ParamActivator)
	}
	return c, c.Validate()
}

// Validate the configuration.
func (c Config) Validate() error {
	if c.Scale < 1 || c.Filters < 1 || c.Blocks < 0 || c.Channels < 1 {
		return errors.Errorf("invalid model configuration %+v: scale, filters and channels must be >= 1, blocks >= 0", c)
	}
	if !c.Activator.IsAKind() {
		return errors.WithStack(&activator.UnsupportedActivatorError{Name: c.Activator.String()})
	}
	return nil
}

// Build the model on the low resolution images shaped [batch, height, width, channels], and return the
// super-resolved images shaped [batch, height·scale, width·scale, channels].
//
// The complexity of the layers after the upsampling is scaled by scale² (see srgraph.Session.SetPixPerInput).
// It panics on invalid configurations or input shapes.
func Build(s *srgraph.Session, config Config, images *Node) *Node {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	if images.Rank() != 4 || images.Shape().Dimensions[3] != config.Channels {
		exceptions.Panicf("lffn: images must be shaped [batch, height, width, %d], got %s",
			config.Channels, images.Shape())
	}
	batchSize, height, width := images.Shape().Dimensions[0], images.Shape().Dimensions[1], images.Shape().Dimensions[2]
	filters := config.Filters
	dropoutKeep := 1.0
	if config.Dropout {
		dropoutKeep = s.Config().DropoutKeepRate
	}

	features := srgraph.Conv(s, "F1", images).
		Features(filters).
		UseBias(true).
		Activation(config.Activator).
		Done()

	x := features
	blockOutputs := make([]*Node, 0, config.Blocks)
	for block := range config.Blocks {
		name := fmt.Sprintf("B%02d", block+1)
		h := srgraph.DepthwiseConv(s, name+"_DW", x).
			Kernel(3, 3).
			UseBias(true).
			BatchNorm(config.BatchNorm).
			Activation(config.Activator).
			Done()
		h = srgraph.Conv(s, name+"_PW", h).
			Kernel(1, 1).
			Features(filters).
			UseBias(true).
			BatchNorm(config.BatchNorm).
			Activation(config.Activator).
			Dropout(dropoutKeep).
			Done()
		x = Add(x, h)
		blockOutputs = append(blockOutputs, x)
	}

	if len(blockOutputs) > 0 {
		fused := Concatenate(blockOutputs, -1)
		fused = srgraph.Conv(s, "Fusion", fused).
			Kernel(1, 1).
			Features(filters).
			UseBias(true).
			Activation(config.Activator).
			Done()
		x = Add(fused, features)
	}

	x = srgraph.UpsamplingLayer(s, "Up", x, config.Scale, filters)
	s.SetPixPerInput(config.Scale * config.Scale)
	x = srgraph.Conv(s, "R1", x).
		Features(config.Channels).
		UseBias(true).
		Done()
	x.AssertDims(batchSize, height*config.Scale, width*config.Scale, config.Channels)
	return x
}
