// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/compute/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/lffn/pkg/ml/activator"
	"github.com/gomlx/lffn/pkg/ml/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventTags(events []summary.Event) []string {
	var tags []string
	for _, e := range events {
		tags = append(tags, e.Tag)
	}
	return tags
}

func TestSummaries(t *testing.T) {
	s := newTestSession(t, func(c *Config) {
		c.SaveWeights = true
		c.SaveMetaData = true
		c.SaveImages = true
	})
	buildGraph(s, func(x *Node) *Node {
		return Conv(s, "L1", x).Features(4).UseBias(true).Activation(activator.KindPRelu).Done()
	}, dtypes.Float32, 1, 8, 8, 3)
	require.NoError(t, s.InitializeParameters())
	require.NoError(t, s.BuildSummarySaver())
	require.NotNil(t, s.Checkpoints())
	assert.Equal(t, KeepAll, s.Checkpoints().keep)

	require.NoError(t, s.WriteSummaries(1, true, map[string]float64{"loss": 0.5, "psnr": 31}))
	require.NoError(t, s.WriteSummaries(1, false, nil))
	images := tensors.FromFlatDataAndDimensions(make([]float32, 2*4*4*3), 2, 4, 4, 3)
	require.NoError(t, s.WriteImages(1, false, "output", images, 1.0))

	logDir := s.Config().LogDir
	events, err := summary.ReadEvents(filepath.Join(logDir, TrainSummaryDir))
	require.NoError(t, err)
	assert.Equal(t, []string{
		"loss", "psnr",
		"weights/L1/stddev", "weights/L1",
		"biases/L1/mean", "biases/L1",
		"prelu_alpha/L1_prelu",
	}, eventTags(events))
	assert.InDelta(t, 0.1, events[6].Histogram.Max, 1e-6)

	events, err = summary.ReadEvents(filepath.Join(logDir, TestSummaryDir))
	require.NoError(t, err)
	assert.Contains(t, eventTags(events), "output/1")
	_, err = os.Stat(filepath.Join(logDir, TestSummaryDir, summary.GraphFileName))
	require.NoError(t, err)

	s.Release()
	_, err = os.Stat(filepath.Join(logDir, TrainSummaryDir, summary.EventsFileName))
	require.NoError(t, err)
}

func TestSummariesDisabled(t *testing.T) {
	s := newTestSession(t, func(c *Config) { c.SaveLoss = false })
	buildGraph(s, func(x *Node) *Node {
		return Conv(s, "L1", x).Activation(activator.KindPRelu).Done()
	}, dtypes.Float32, 1, 8, 8, 3)
	assert.Equal(t, 0, s.Recorder().Len())
	require.NoError(t, s.BuildSummarySaver())
	// The checkpoint manager is always created.
	require.NotNil(t, s.checkpoint)
	require.NoError(t, s.WriteSummaries(1, true, map[string]float64{"loss": 0.5}))
	require.NoError(t, s.WriteImages(1, true, "output", nil, 1.0))
	_, err := os.Stat(s.Config().LogDir)
	assert.True(t, os.IsNotExist(err))
}

func TestInfo(t *testing.T) {
	s := newTestSession(t, nil)
	buildGraph(s, func(x *Node) *Node {
		x = Conv(s, "L1", x).Features(8).UseBias(true).Dropout(0.5).Done()
		return UpsamplingLayer(s, "up", x, 2, 8)
	}, dtypes.Float32, 1, 8, 8, 3)
	info := s.Info()
	assert.Equal(t, "lffn", info.Model)
	assert.Equal(t, s.Complexity(), info.Complexity)
	require.Len(t, info.Layers, 2)
	assert.Equal(t, LayerInfo{
		Name: "L1", Kind: "conv", Kernel: []int{3, 3, 3, 8}, InputFeatures: 3, OutputFeatures: 8, Stride: 1,
		UseBias: true, Activation: "none", Initializer: "he", Dropout: true, Parameters: 3*3*3*8 + 8,
	}, info.Layers[0])
	assert.Equal(t, "up_CNN", info.Layers[1].Name)
	assert.Equal(t, 1+2, info.ReceptiveField)
}
