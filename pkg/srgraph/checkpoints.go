// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/compute/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/fsutil"
	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"k8s.io/klog/v2"
)

const (
	// CheckpointSuffix is the suffix of the checkpoint paths.
	CheckpointSuffix = ".ckpt"

	// IndexSuffix is appended to the checkpoint path to name its index: a JSON file describing the variables.
	IndexSuffix = ".index"

	// DataSuffix is appended to the checkpoint path to name the file with the raw variables values.
	DataSuffix = ".data-00000-of-00001"

	// DefaultCheckpointName is an alias to the model name when used as checkpoint name.
	DefaultCheckpointName = "default"

	// KeepAll disables the removal of older checkpoints.
	KeepAll = -1

	// DirPermMode is the permission (before umask) of the directories created.
	DirPermMode = os.FileMode(0o770)
)

// CheckpointManager saves and restores the variables of a Session.
type CheckpointManager struct {
	s    *Session
	dir  string
	keep int
}

// CheckpointOption configures a CheckpointManager.
type CheckpointOption func(m *CheckpointManager)

// Keep sets the number of trial checkpoints of the same model to keep: after a save, the ones with the lowest
// trial numbers are removed. KeepAll (the default) keeps them all.
func Keep(n int) CheckpointOption {
	return func(m *CheckpointManager) {
		m.keep = n
	}
}

// InDir overrides the checkpoint directory, by default the session's checkpoint_dir.
func InDir(dir string) CheckpointOption {
	return func(m *CheckpointManager) {
		m.dir = strings.TrimRight(dir, "/")
	}
}

// NewCheckpointManager for the session s.
func NewCheckpointManager(s *Session, options ...CheckpointOption) *CheckpointManager {
	m := &CheckpointManager{s: s, dir: s.config.CheckpointDir, keep: KeepAll}
	for _, option := range options {
		option(m)
	}
	return m
}

// Dir returns the checkpoint directory.
func (m *CheckpointManager) Dir() string { return m.dir }

// Path returns the path of the checkpoint for the given name and trial: "<dir>/<name>.ckpt", or
// "<dir>/<name>_<trial>.ckpt" if trial > 0. An empty name or DefaultCheckpointName is replaced by the model name.
//
// The checkpoint is made of the files "<path>"+IndexSuffix and "<path>"+DataSuffix.
func (m *CheckpointManager) Path(name string, trial int) string {
	if name == "" || name == DefaultCheckpointName {
		name = m.s.name
	}
	if trial > 0 {
		name = fmt.Sprintf("%s_%d", name, trial)
	}
	return filepath.Join(m.dir, name+CheckpointSuffix)
}

// CheckpointIndex is the contents of the index file of a checkpoint.
type CheckpointIndex struct {
	Model      string            `json:"model"`
	Trial      int               `json:"trial"`
	Namespace  string            `json:"namespace"`
	Created    time.Time         `json:"created"`
	Complexity int64             `json:"complexity"`
	Params     map[string]string `json:"params"`
	Layers     []LayerInfo       `json:"layers"`
	Variables  []SavedVariable   `json:"variables"`
}

// SavedVariable describes one variable in the checkpoint data file.
type SavedVariable struct {
	// Name of the variable with its scope, relative to the model scope (e.g.: "/L1/weights").
	Name       string       `json:"name"`
	DType      dtypes.DType `json:"dtype"`
	Dimensions []int        `json:"dimensions"`

	// Pos and Length, in bytes, of the values in the data file.
	Pos    int64 `json:"pos"`
	Length int64 `json:"length"`
}

// Shape of the saved variable.
func (v *SavedVariable) Shape() shapes.Shape {
	return shapes.Make(v.DType, v.Dimensions...)
}

// ReadValue reads the value of the variable from the checkpoint data file.
func (v *SavedVariable) ReadValue(dataFile io.ReaderAt) (*tensors.Tensor, error) {
	value := tensors.FromShape(v.Shape())
	var readErr error
	err := value.MutableBytes(func(data []byte) {
		if int64(len(data)) != v.Length {
			readErr = errors.Errorf("variable %q takes %d bytes, but checkpoint has %d bytes",
				v.Name, len(data), v.Length)
			return
		}
		_, readErr = dataFile.ReadAt(data, v.Pos)
		if readErr == io.EOF {
			readErr = errors.Errorf("checkpoint data file truncated reading variable %q", v.Name)
		}
	})
	if err == nil {
		err = readErr
	}
	if err != nil {
		_ = value.FinalizeAll()
		return nil, err
	}
	return value, nil
}

// ReadCheckpointIndex reads the index of the checkpoint at path (without the IndexSuffix).
func ReadCheckpointIndex(path string) (*CheckpointIndex, error) {
	indexPath := path + IndexSuffix
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read checkpoint index %q", indexPath)
	}
	index := &CheckpointIndex{}
	if err := json.Unmarshal(data, index); err != nil {
		return nil, errors.Wrapf(err, "failed to parse checkpoint index %q", indexPath)
	}
	return index, nil
}

// relativeName returns the scope and name of v relative to the model scope.
func (m *CheckpointManager) relativeName(v *context.Variable) string {
	return strings.TrimPrefix(v.ScopeAndName(), m.s.ctx.Scope())
}

// Save all variables of the model (the variables under the model scope) to the checkpoint given by name and trial
// (see Path), overwriting it if it exists.
//
// The data file is written before the index.
func (m *CheckpointManager) Save(name string, trial int) error {
	if m.s.state == StateReleased {
		return errors.Wrapf(ErrInvalidState, "saving checkpoint of released session %q", m.s.name)
	}
	path := m.Path(name, trial)
	if err := os.MkdirAll(m.dir, DirPermMode); err != nil {
		return errors.Wrapf(err, "failed to create checkpoint directory %q", m.dir)
	}
	index := &CheckpointIndex{
		Model:      m.s.name,
		Trial:      trial,
		Namespace:  m.s.namespace,
		Created:    time.Now(),
		Complexity: m.s.Complexity(),
		Params:     make(map[string]string),
		Layers:     m.s.Info().Layers,
	}
	m.s.rootCtx.EnumerateParams(func(scope, key string, value any) {
		if scope == context.RootScope {
			index.Params[key] = fmt.Sprintf("%v", value)
		}
	})

	dataPath := path + DataSuffix
	dataFile, err := os.Create(dataPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create checkpoint data file %q", dataPath)
	}
	writer := bufio.NewWriter(dataFile)
	var pos int64
	for v := range m.s.ctx.IterVariablesInScope() {
		value, err := v.Value()
		if err != nil {
			_ = dataFile.Close()
			return errors.WithMessagef(err, "saving variable %q to %q", v.ScopeAndName(), dataPath)
		}
		var n int
		var writeErr error
		err = value.ConstBytes(func(data []byte) {
			n, writeErr = writer.Write(data)
		})
		if err == nil {
			err = writeErr
		}
		if err != nil {
			_ = dataFile.Close()
			return errors.Wrapf(err, "failed to write variable %q to %q", v.ScopeAndName(), dataPath)
		}
		shape := value.Shape()
		index.Variables = append(index.Variables, SavedVariable{
			Name:       m.relativeName(v),
			DType:      shape.DType,
			Dimensions: shape.Dimensions,
			Pos:        pos,
			Length:     int64(n),
		})
		pos += int64(n)
	}
	if err := writer.Flush(); err != nil {
		_ = dataFile.Close()
		return errors.Wrapf(err, "failed to write checkpoint data file %q", dataPath)
	}
	if err := dataFile.Close(); err != nil {
		return errors.Wrapf(err, "failed to close checkpoint data file %q", dataPath)
	}

	indexPath := path + IndexSuffix
	indexData, err := json.MarshalIndent(index, "", "\t")
	if err != nil {
		return errors.Wrapf(err, "failed to serialize checkpoint index %q", indexPath)
	}
	if err := os.WriteFile(indexPath, indexData, 0o666); err != nil {
		return errors.Wrapf(err, "failed to write checkpoint index %q", indexPath)
	}
	klog.Infof("Model saved [%s].", path)
	return m.removeOldTrials(name)
}

// Load restores the variables of the model from the checkpoint given by name and trial (see Path).
//
// If the checkpoint index doesn't exist, it returns a *FatalError wrapping ErrCheckpointNotFound: the caller is
// expected to terminate (see MustLoad). Every variable of the model must be in the checkpoint, with the same
// shape, otherwise an error is returned. Variables in the checkpoint that are not in the model are ignored.
//
// On success the session moves to StateParametersInitialized.
func (m *CheckpointManager) Load(name string, trial int) error {
	if m.s.state == StateReleased {
		return errors.Wrapf(ErrInvalidState, "loading checkpoint into released session %q", m.s.name)
	}
	path := m.Path(name, trial)
	exists, err := fsutil.FileExists(path + IndexSuffix)
	if err != nil {
		return errors.WithMessagef(err, "checking checkpoint %q", path)
	}
	if !exists {
		return &FatalError{Path: path, Err: errors.WithStack(ErrCheckpointNotFound)}
	}
	index, err := ReadCheckpointIndex(path)
	if err != nil {
		return err
	}
	saved := make(map[string]SavedVariable, len(index.Variables))
	for _, sv := range index.Variables {
		saved[sv.Name] = sv
	}

	dataPath := path + DataSuffix
	dataFile, err := os.Open(dataPath)
	if err != nil {
		return errors.Wrapf(err, "failed to open checkpoint data file %q", dataPath)
	}
	defer func() { _ = dataFile.Close() }()

	var restored int
	for v := range m.s.ctx.IterVariablesInScope() {
		relName := m.relativeName(v)
		sv, found := saved[relName]
		if !found {
			return errors.Errorf("variable %q not found in checkpoint %q, it has %v",
				relName, path, sortedKeys(saved))
		}
		if !v.Shape().Equal(sv.Shape()) {
			return errors.Errorf("variable %q has shape %s, but checkpoint %q has shape %s",
				relName, v.Shape(), path, sv.Shape())
		}
		value, err := sv.ReadValue(dataFile)
		if err != nil {
			return errors.WithMessagef(err, "reading variable %q from %q", relName, dataPath)
		}
		if err := v.SetValue(value); err != nil {
			return errors.WithMessagef(err, "restoring variable %q", relName)
		}
		restored++
	}
	if restored > 0 {
		m.s.state = StateParametersInitialized
	}
	klog.V(1).Infof("Model restored from %q: %d variables", path, restored)
	return nil
}

// MustLoad loads the checkpoint, and terminates the process (klog.Exitf) if it doesn't exist, after
// releasing the session: deferred calls don't run on exit. Other errors panic.
func MustLoad(m *CheckpointManager, name string, trial int) {
	err := m.Load(name, trial)
	if err == nil {
		return
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		m.s.Release()
		klog.Exitf("Failed to load model %q: %v", m.Path(name, trial), fatal)
	}
	panic(err)
}

var reTrialSuffix = regexp.MustCompile(`_(\d+)` + regexp.QuoteMeta(CheckpointSuffix+IndexSuffix) + `$`)

// Trials returns the trial numbers with a saved checkpoint for the given name, in increasing order.
func (m *CheckpointManager) Trials(name string) ([]int, error) {
	base := filepath.Base(m.Path(name, 0))
	base = strings.TrimSuffix(base, CheckpointSuffix)
	matches, err := filepath.Glob(filepath.Join(m.dir, base+"_*"+CheckpointSuffix+IndexSuffix))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list checkpoints of %q in %q", base, m.dir)
	}
	var trials []int
	for _, match := range matches {
		parts := reTrialSuffix.FindStringSubmatch(match)
		if parts == nil || strings.TrimSuffix(filepath.Base(match), parts[0]) != base {
			continue
		}
		trial, err := strconv.Atoi(parts[1])
		if err != nil || trial <= 0 {
			continue
		}
		trials = append(trials, trial)
	}
	slices.Sort(trials)
	return trials, nil
}

// removeOldTrials removes the trial checkpoints of name beyond the configured number to keep.
func (m *CheckpointManager) removeOldTrials(name string) error {
	if m.keep < 0 {
		return nil
	}
	trials, err := m.Trials(name)
	if err != nil {
		return err
	}
	if len(trials) <= m.keep {
		return nil
	}
	for _, trial := range trials[:len(trials)-m.keep] {
		path := m.Path(name, trial)
		for _, fileName := range []string{path + DataSuffix, path + IndexSuffix} {
			if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "failed to remove old checkpoint file %q", fileName)
			}
		}
		klog.V(1).Infof("Removed old checkpoint %q", path)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
