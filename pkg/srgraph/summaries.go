// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"path/filepath"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/lffn/pkg/ml/summary"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

const (
	// TrainSummaryDir is the subdirectory of the log directory with the training summaries.
	TrainSummaryDir = "train"

	// TestSummaryDir is the subdirectory of the log directory with the evaluation summaries and the model metadata.
	TestSummaryDir = "test"
)

// LayerInfo describes a built layer, for reports and metadata.
type LayerInfo struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Kernel         []int  `json:"kernel"`
	InputFeatures  int    `json:"input_features"`
	OutputFeatures int    `json:"output_features"`
	Stride         int    `json:"stride"`
	UseBias        bool   `json:"use_bias"`
	Activation     string `json:"activation"`
	Initializer    string `json:"initializer"`
	BatchNorm      bool   `json:"batch_norm"`
	Dropout        bool   `json:"dropout"`

	// Parameters is the number of values of the weight and bias of the layer.
	Parameters int `json:"parameters"`
}

// ModelInfo is the metadata of a model, written with the summaries when save_meta_data is set.
type ModelInfo struct {
	Model          string      `json:"model"`
	Namespace      string      `json:"namespace"`
	Complexity     int64       `json:"complexity"`
	NumParameters  int         `json:"num_parameters"`
	ReceptiveField int         `json:"receptive_field"`
	Layers         []LayerInfo `json:"layers"`
}

// Info returns the metadata of the model built so far.
func (s *Session) Info() ModelInfo {
	info := ModelInfo{
		Model:          s.name,
		Namespace:      s.namespace,
		Complexity:     s.Complexity(),
		NumParameters:  s.NumParameters(),
		ReceptiveField: s.ReceptiveField(),
	}
	for _, params := range s.registry.layers() {
		spec := params.Spec
		layer := LayerInfo{
			Name:           spec.Name,
			Kind:           params.Kind.String(),
			Kernel:         slices.Clone(params.Weight.Dimensions),
			InputFeatures:  spec.InputFeatures,
			OutputFeatures: spec.OutputFeatures,
			Stride:         spec.Stride,
			UseBias:        spec.UseBias,
			Activation:     spec.Activation.String(),
			Initializer:    spec.Initializer.String(),
			BatchNorm:      spec.UseBatchNorm,
			Dropout:        spec.DropoutKeep < 1.0,
			Parameters:     params.Weight.Variable.Shape().Size(),
		}
		if params.Bias != nil {
			layer.Parameters += params.Bias.Variable.Shape().Size()
		}
		info.Layers = append(info.Layers, layer)
	}
	return info
}

// summarySinks are the sinks of the summaries, created by BuildSummarySaver.
type summarySinks struct {
	merged      *summary.Merged
	train, test *summary.Writer
}

// Recorder returns the recorder where the layers register the variables to summarize.
func (s *Session) Recorder() *summary.Recorder { return s.recorder }

// BuildSummarySaver should be called after all layers are built.
//
// If any of save_loss, save_weights, save_meta_data (or save_images) is set, it merges all the registered
// streams and opens the training and evaluation sinks, under "<log_dir>/train" and "<log_dir>/test".
// With save_meta_data the model metadata (see Info) is written to the evaluation sink.
//
// It always creates the checkpoint manager returned by Checkpoints, which keeps all checkpoints.
func (s *Session) BuildSummarySaver() error {
	if s.state == StateReleased {
		return errors.Wrapf(ErrInvalidState, "BuildSummarySaver on released session %q", s.name)
	}
	s.checkpoint = NewCheckpointManager(s, Keep(KeepAll))
	if err := s.closeSummaries(); err != nil {
		return err
	}
	c := s.config
	if !c.SaveLoss && !c.SaveWeights && !c.SaveMetaData && !c.SaveImages {
		return nil
	}

	sinks := &summarySinks{merged: s.recorder.Merge()}
	var err error
	sinks.train, err = summary.NewWriter(filepath.Join(c.LogDir, TrainSummaryDir))
	if err != nil {
		return err
	}
	sinks.test, err = summary.NewWriter(filepath.Join(c.LogDir, TestSummaryDir))
	if err != nil {
		_ = sinks.train.Close()
		return err
	}
	if c.SaveMetaData {
		if err = sinks.test.SetGraph(s.Info()); err != nil {
			_ = sinks.train.Close()
			_ = sinks.test.Close()
			return err
		}
	}
	s.summaries = sinks
	klog.V(1).Infof("Session %q: summaries of %d streams written to %q", s.name, len(sinks.merged.Tags()), c.LogDir)
	return nil
}

// Checkpoints returns the checkpoint manager created by BuildSummarySaver, or a new one that keeps all
// checkpoints if it was not called.
func (s *Session) Checkpoints() *CheckpointManager {
	if s.checkpoint == nil {
		s.checkpoint = NewCheckpointManager(s, Keep(KeepAll))
	}
	return s.checkpoint
}

func (s *Session) sink(train bool) *summary.Writer {
	if s.summaries == nil {
		return nil
	}
	if train {
		return s.summaries.train
	}
	return s.summaries.test
}

// WriteSummaries evaluates the merged streams, and writes them with the given scalars (e.g.: "loss") to the
// training (if train is true) or the evaluation sink. The scalars are only written if save_loss is set.
//
// It's a no-op if BuildSummarySaver didn't open the sinks.
func (s *Session) WriteSummaries(step int64, train bool, scalars map[string]float64) error {
	writer := s.sink(train)
	if writer == nil {
		return nil
	}
	var events []summary.Event
	if s.config.SaveLoss {
		tags := maps.Keys(scalars)
		slices.Sort(tags)
		for _, tag := range tags {
			events = append(events, summary.ScalarEvent(step, tag, scalars[tag]))
		}
	}
	streamEvents, err := s.summaries.merged.Evaluate(step)
	if err != nil {
		return errors.WithMessagef(err, "session %q: evaluating summaries", s.name)
	}
	events = append(events, streamEvents...)
	return writer.AddEvents(events...)
}

// WriteImages writes the batch of images, shaped [batch, height, width, channels] with values in [0, maxValue],
// to the training or evaluation sink, if save_images is set.
func (s *Session) WriteImages(step int64, train bool, tag string, images *tensors.Tensor, maxValue float64) error {
	if !s.config.SaveImages {
		return nil
	}
	writer := s.sink(train)
	if writer == nil {
		return errors.Wrapf(ErrInvalidState, "session %q: WriteImages before BuildSummarySaver", s.name)
	}
	return writer.AddImagesTensor(step, tag, images, maxValue)
}

// closeSummaries closes the sinks, if open.
func (s *Session) closeSummaries() error {
	if s.summaries == nil {
		return nil
	}
	sinks := s.summaries
	s.summaries = nil
	err := sinks.train.Close()
	if testErr := sinks.test.Close(); err == nil {
		err = testErr
	}
	return err
}
