// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	_ "github.com/gomlx/compute/gobackend"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/ui/commandline"
	"github.com/gomlx/lffn/pkg/ml/summary"
	"github.com/gomlx/lffn/pkg/models/lffn"
	"github.com/gomlx/lffn/pkg/srgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(dir string) *context.Context {
	ctx := lffn.CreateDefaultContext()
	ctx.SetParams(map[string]any{
		srgraph.ParamBackend:       "go",
		srgraph.ParamCheckpointDir: filepath.Join(dir, "models"),
		srgraph.ParamLogDir:        filepath.Join(dir, "tf_log"),
		lffn.ParamFilters:          8,
		lffn.ParamBlocks:           1,
	})
	return ctx
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(dir)
	_, err := commandline.ParseContextSettings(ctx, "save_images=true;save_meta_data=true;initializers_seed=3")
	require.NoError(t, err)

	outputPath := filepath.Join(dir, "high.png")
	report, err := run(ctx, options{
		name: "lffn", height: 8, width: 12,
		output: outputPath, save: "default", trial: 1, archive: "run1",
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 8, 12, 3}, report.inputShape.Dimensions)
	assert.Equal(t, []int{1, 16, 24, 3}, report.outputShape.Dimensions)
	assert.Len(t, report.info.Layers, 6)
	assert.Equal(t, 1+2+2+2, report.info.ReceptiveField)

	img, err := imaging.Open(outputPath)
	require.NoError(t, err)
	assert.Equal(t, 24, img.Bounds().Dx())
	assert.Equal(t, 16, img.Bounds().Dy())

	_, err = os.Stat(filepath.Join(dir, "models", "lffn_1.ckpt"+srgraph.IndexSuffix))
	require.NoError(t, err)
	events, err := summary.ReadEvents(filepath.Join(dir, "tf_log_run1", "lffn", srgraph.TestSummaryDir))
	require.NoError(t, err)
	assert.NotEmpty(t, events)

	// Loading the checkpoint saved gives the same upscaled image, with the same synthetic input.
	ctx = newTestContext(dir)
	reloadedPath := filepath.Join(dir, "reloaded.png")
	_, err = run(ctx, options{name: "lffn", height: 8, width: 12, output: reloadedPath, load: "default", trial: 1})
	require.NoError(t, err)
	want, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	got, err := os.ReadFile(reloadedPath)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestRunLuminanceFromFile(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(dir)
	inputPath := filepath.Join(dir, "low.png")
	require.NoError(t, imaging.Save(imaging.New(10, 6, color.NRGBA{R: 100, G: 150, B: 200, A: 255}), inputPath))

	report, err := run(ctx, options{name: "luma", input: inputPath})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 6, 10, 3}, report.inputShape.Dimensions)
	assert.Equal(t, []int{1, 12, 20, 3}, report.outputShape.Dimensions)
}

func TestRunInvalid(t *testing.T) {
	dir := t.TempDir()
	ctx := newTestContext(dir)
	ctx.SetParam(lffn.ParamChannels, 2)
	_, err := run(ctx, options{name: "lffn", height: 8, width: 8})
	require.Error(t, err)

	ctx = newTestContext(dir)
	_, err = run(ctx, options{name: "lffn", height: 0, width: 8})
	require.Error(t, err)

	// A missing checkpoint is returned as a fatal error, for main to exit with.
	ctx = newTestContext(dir)
	_, err = run(ctx, options{name: "lffn", height: 8, width: 8, load: "missing", trial: 3})
	require.Error(t, err)
	assert.True(t, srgraph.IsFatal(err))
	assert.ErrorIs(t, err, srgraph.ErrCheckpointNotFound)
}
