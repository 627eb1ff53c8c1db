// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"flag"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/dtypes/float16"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/lffn/pkg/ml/activator"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/klog/v2"
)

// buildTestModel builds a small model with all kinds of variables: weights, biases, batch normalization
// and PReLU slopes.
func buildTestModel(s *Session, features int) {
	buildGraph(s, func(x *Node) *Node {
		x = Conv(s, "L1", x).Features(features).UseBias(true).Activation(activator.KindPRelu).Done()
		x = DepthwiseConv(s, "L2", x).UseBias(true).BatchNorm(true).Activation(activator.KindRelu).Done()
		return UpsamplingLayer(s, "up", x, 2, features)
	}, s.Config().DType, 1, 8, 8, 3)
}

// variableBytes returns the raw bytes of every variable of the model, indexed by their relative name.
func variableBytes(t *testing.T, s *Session) map[string][]byte {
	m := s.Checkpoints()
	values := make(map[string][]byte)
	for v := range s.Context().IterVariablesInScope() {
		value, err := v.Value()
		require.NoError(t, err)
		require.NoError(t, value.ConstBytes(func(data []byte) {
			values[m.relativeName(v)] = append([]byte(nil), data...)
		}))
	}
	return values
}

func TestCheckpointPath(t *testing.T) {
	s := newTestSession(t, nil)
	dir := s.Config().CheckpointDir
	m := NewCheckpointManager(s)
	assert.Equal(t, filepath.Join(dir, "lffn.ckpt"), m.Path("", 0))
	assert.Equal(t, filepath.Join(dir, "lffn.ckpt"), m.Path(DefaultCheckpointName, 0))
	assert.Equal(t, filepath.Join(dir, "lffn_3.ckpt"), m.Path("default", 3))
	assert.Equal(t, filepath.Join(dir, "best_1.ckpt"), m.Path("best", 1))
	assert.Equal(t, "/tmp/other/best.ckpt", NewCheckpointManager(s, InDir("/tmp/other/")).Path("best", 0))
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newTestSession(t, nil)
	buildTestModel(s, 4)
	require.NoError(t, s.InitializeParameters())
	m := NewCheckpointManager(s)
	require.NoError(t, m.Save("", 2))
	want := variableBytes(t, s)
	// weights, biases and slopes of L1; weights, biases and 5 batch normalization variables of L2; weights and
	// biases of the upsampling.
	assert.Len(t, want, 3+2+5+2)

	index, err := ReadCheckpointIndex(m.Path("", 2))
	require.NoError(t, err)
	assert.Equal(t, "lffn", index.Model)
	assert.Equal(t, 2, index.Trial)
	assert.Equal(t, s.Namespace(), index.Namespace)
	assert.Equal(t, s.Complexity(), index.Complexity)
	assert.Equal(t, "he", index.Params[ParamInitializer])
	require.Len(t, index.Layers, 3)
	assert.Equal(t, "depthwise_conv", index.Layers[1].Kind)
	assert.Len(t, index.Variables, len(want))
	for _, sv := range index.Variables {
		assert.NotContains(t, sv.Name, "lffn")
	}

	// Fresh session, same topology, different initialization.
	loaded := newTestSession(t, func(c *Config) { c.Seed = 7 })
	buildTestModel(loaded, 4)
	require.NoError(t, loaded.InitializeParameters())
	assert.NotEqual(t, want, variableBytes(t, loaded))
	require.NoError(t, NewCheckpointManager(loaded, InDir(s.Config().CheckpointDir)).Load("default", 2))
	assert.Equal(t, StateParametersInitialized, loaded.State())
	assert.Equal(t, want, variableBytes(t, loaded))
}

func TestCheckpointLoadBeforeInitialization(t *testing.T) {
	s := newTestSession(t, nil)
	buildTestModel(s, 4)
	require.NoError(t, s.InitializeParameters())
	require.NoError(t, s.Checkpoints().Save("", 0))

	loaded := newTestSession(t, func(c *Config) { c.CheckpointDir = s.Config().CheckpointDir })
	buildTestModel(loaded, 4)
	assert.Equal(t, StateBuilt, loaded.State())
	require.NoError(t, loaded.Checkpoints().Load("", 0))
	assert.Equal(t, StateParametersInitialized, loaded.State())
	assert.Equal(t, variableBytes(t, s), variableBytes(t, loaded))
}

func TestCheckpointFloat16(t *testing.T) {
	half := func(c *Config) { c.DType = dtypes.Float16 }
	s := newTestSession(t, half)
	buildGraph(s, func(x *Node) *Node {
		return Conv(s, "L1", x).Kernel(1, 1).Features(2).Done()
	}, dtypes.Float16, 1, 4, 4, 3)
	values := []float16.Float16{
		float16.FromFloat32(0.5), float16.FromFloat32(-1), float16.FromFloat32(0.1),
		float16.FromFloat32(2), float16.FromFloat32(-0.25), float16.FromFloat32(65504),
	}
	require.NoError(t, s.Weights()[0].Variable.SetValue(tensors.FromFlatDataAndDimensions(values, 1, 1, 3, 2)))
	require.NoError(t, s.Checkpoints().Save("half", 0))

	loaded := newTestSession(t, func(c *Config) {
		half(c)
		c.CheckpointDir = s.Config().CheckpointDir
	})
	buildGraph(loaded, func(x *Node) *Node {
		return Conv(loaded, "L1", x).Kernel(1, 1).Features(2).Done()
	}, dtypes.Float16, 1, 4, 4, 3)
	require.NoError(t, loaded.Checkpoints().Load("half", 0))
	value, err := loaded.Weights()[0].Variable.Value()
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float16, value.Shape().DType)
	assert.Equal(t, values, tensors.MustCopyFlatData[float16.Float16](value))
}

func TestLoadMissingCheckpoint(t *testing.T) {
	s := newTestSession(t, nil)
	buildTestModel(s, 4)
	m := NewCheckpointManager(s)
	for _, name := range []string{"", "default", "missing"} {
		for _, trial := range []int{0, 1, 17} {
			err := m.Load(name, trial)
			require.Error(t, err)
			var fatal *FatalError
			require.True(t, errors.As(err, &fatal), "Load(%q, %d) should return a *FatalError", name, trial)
			assert.Equal(t, m.Path(name, trial), fatal.Path)
			assert.ErrorIs(t, err, ErrCheckpointNotFound)
			assert.True(t, IsFatal(err))
		}
	}
	assert.Equal(t, StateBuilt, s.State())
}

// mustLoadChildEnv is set when TestMustLoadExitReleasesSession runs as the child process that exits.
const mustLoadChildEnv = "SRGRAPH_MUST_LOAD_CHILD"

func TestMustLoadExitReleasesSession(t *testing.T) {
	if os.Getenv(mustLoadChildEnv) != "" {
		klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
		klog.InitFlags(klogFlags)
		require.NoError(t, klogFlags.Set("v", "1"))
		s := newTestSession(t, nil)
		buildTestModel(s, 4)
		MustLoad(s.Checkpoints(), "missing", 0)
		t.Fatal("MustLoad should have exited")
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestMustLoadExitReleasesSession$")
	cmd.Env = append(os.Environ(), mustLoadChildEnv+"=1")
	output, err := cmd.CombinedOutput()
	var exitErr *exec.ExitError
	require.True(t, errors.As(err, &exitErr), "child process should exit with an error, got %v:\n%s", err, output)
	assert.Equal(t, 1, exitErr.ExitCode())
	assert.Contains(t, string(output), `Session "lffn" released`)
	assert.Contains(t, string(output), "missing.ckpt")
}

func TestLoadMismatch(t *testing.T) {
	s := newTestSession(t, nil)
	buildTestModel(s, 4)
	require.NoError(t, s.InitializeParameters())
	require.NoError(t, s.Checkpoints().Save("", 0))
	inSameDir := func(c *Config) { c.CheckpointDir = s.Config().CheckpointDir }

	// Different shapes.
	wider := newTestSession(t, inSameDir)
	buildTestModel(wider, 8)
	err := wider.Checkpoints().Load("", 0)
	require.Error(t, err)
	assert.False(t, IsFatal(err))

	// Variable missing from the checkpoint.
	deeper := newTestSession(t, inSameDir)
	buildTestModel(deeper, 4)
	buildGraph(deeper, func(x *Node) *Node { return Conv(deeper, "L3", x).Done() }, dtypes.Float32, 1, 8, 8, 4)
	err = deeper.Checkpoints().Load("", 0)
	require.Error(t, err)
	assert.False(t, IsFatal(err))

	// Extra variables in the checkpoint are ignored.
	shallower := newTestSession(t, inSameDir)
	buildGraph(shallower, func(x *Node) *Node {
		return Conv(shallower, "L1", x).Features(4).UseBias(true).Activation(activator.KindPRelu).Done()
	}, dtypes.Float32, 1, 8, 8, 3)
	require.NoError(t, shallower.Checkpoints().Load("", 0))
}

func TestCheckpointKeep(t *testing.T) {
	s := newTestSession(t, nil)
	buildTestModel(s, 2)
	require.NoError(t, s.InitializeParameters())
	all := NewCheckpointManager(s)
	for trial := 1; trial <= 3; trial++ {
		require.NoError(t, all.Save("", trial))
	}
	trials, err := all.Trials("")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, trials)

	m := NewCheckpointManager(s, Keep(2))
	require.NoError(t, m.Save("", 0))
	require.NoError(t, m.Save("other", 5))
	require.NoError(t, m.Save("", 4))
	trials, err = m.Trials("")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, trials)
	for _, path := range []string{m.Path("", 0), m.Path("other", 5)} {
		_, err = os.Stat(path + IndexSuffix)
		require.NoError(t, err)
	}
	_, err = os.Stat(m.Path("", 1) + DataSuffix)
	assert.True(t, os.IsNotExist(err))
}
