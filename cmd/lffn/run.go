// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/core/tensors/images"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/gomlx/lffn/pkg/models/lffn"
	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"k8s.io/klog/v2"
)

type options struct {
	name, input, output string
	height, width       int
	load, save          string
	trial               int
	archive             string
}

type runReport struct {
	info                    srgraph.ModelInfo
	inputShape, outputShape shapes.Shape
}

// loadInput returns the input image, shaped [1, height, width, 3] with values in [0, 1].
func loadInput(opts options) (*tensors.Tensor, error) {
	if opts.input != "" {
		img, err := imaging.Open(opts.input)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read input image %q", opts.input)
		}
		return images.ToTensor(dtypes.Float32).MaxValue(1.0).Batch([]image.Image{img}), nil
	}
	if opts.height < 1 || opts.width < 1 {
		return nil, errors.Errorf("invalid synthetic image size %dx%d", opts.height, opts.width)
	}
	data := make([]float32, opts.height*opts.width*3)
	for y := range opts.height {
		for x := range opts.width {
			pos := (y*opts.width + x) * 3
			data[pos] = float32(x) / float32(opts.width)
			data[pos+1] = float32(y) / float32(opts.height)
			data[pos+2] = float32((x+y)%8) / 8
		}
	}
	return tensors.FromFlatDataAndDimensions(data, 1, opts.height, opts.width, 3), nil
}

// upscaleGraph returns the graph function that converts the RGB images to the model channels and dtype, runs the
// model, and converts back the result to RGB float32 in [0, 1].
func upscaleGraph(s *srgraph.Session, config lffn.Config) func(rgb *Node) *Node {
	return func(rgb *Node) *Node {
		x := ConvertDType(rgb, s.Config().DType)
		if config.Channels == 1 {
			x = ReduceAndKeep(x, ReduceMean, -1)
		}
		x = lffn.Build(s, config, x)
		x = ClipScalar(ConvertDType(x, dtypes.Float32), 0, 1)
		if config.Channels == 1 {
			x = Concatenate([]*Node{x, x, x}, -1)
		}
		return x
	}
}

// run builds the model described by the hyperparameters in ctx, initializes it (or loads it from a checkpoint),
// and upscales the input image.
func run(ctx *context.Context, opts options) (*runReport, error) {
	config, err := srgraph.ConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	modelConfig, err := lffn.ConfigFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if modelConfig.Channels != 1 && modelConfig.Channels != 3 {
		return nil, errors.Errorf("%s=%d not supported for images, it must be 1 or 3",
			lffn.ParamChannels, modelConfig.Channels)
	}
	input, err := loadInput(opts)
	if err != nil {
		return nil, err
	}

	s, err := srgraph.New(opts.name, config)
	if err != nil {
		return nil, err
	}
	defer s.Release()
	graphFn := upscaleGraph(s, modelConfig)

	// Build the model once to create its variables, before initializing or loading them.
	err = exceptions.TryCatch[error](func() {
		g := NewGraph(s.Backend(), "build")
		defer g.Finalize()
		graphFn(Parameter(g, "images", input.Shape()))
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "building model %q", opts.name)
	}
	if opts.load != "" {
		// A missing checkpoint is a *srgraph.FatalError, handled by the caller once the session is released.
		if err = s.Checkpoints().Load(opts.load, opts.trial); err != nil {
			return nil, err
		}
	} else if err = s.InitializeParameters(); err != nil {
		return nil, err
	}
	if err = s.BuildSummarySaver(); err != nil {
		return nil, err
	}

	exec, err := s.NewExec(graphFn)
	if err != nil {
		return nil, err
	}
	defer exec.Finalize()
	output, err := exec.Exec1(input)
	if err != nil {
		return nil, errors.WithMessagef(err, "upscaling with model %q", opts.name)
	}
	report := &runReport{info: s.Info(), inputShape: input.Shape(), outputShape: output.Shape()}

	scalars := map[string]float64{
		"complexity": float64(s.Complexity()),
		"parameters": float64(s.NumParameters()),
	}
	if err = s.WriteSummaries(0, false, scalars); err != nil {
		return nil, err
	}
	if err = s.WriteImages(0, false, "input", input, 1.0); err != nil {
		return nil, err
	}
	if err = s.WriteImages(0, false, "output", output, 1.0); err != nil {
		return nil, err
	}
	if opts.output != "" {
		img := images.ToImage().MaxValue(1.0).Batch(output)[0]
		if err = imaging.Save(img, opts.output); err != nil {
			return nil, errors.Wrapf(err, "failed to save upscaled image to %q", opts.output)
		}
		klog.Infof("Upscaled image saved to %q", opts.output)
	}
	if opts.save != "" {
		if err = s.Checkpoints().Save(opts.save, opts.trial); err != nil {
			return nil, err
		}
	}
	if opts.archive != "" {
		bar := progressbar.DefaultBytes(-1, "archiving logs")
		s.ArchiveLogs(opts.archive, srgraph.WithArchiveProgress(func(copied, total int64) {
			bar.ChangeMax64(total)
			_ = bar.Set64(copied)
		}))
		_ = bar.Finish()
	}
	return report, nil
}
