// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package srgraph builds the computation graph of convolutional super-resolution networks.
//
// A Session is threaded explicitly through every layer call (ConvLayer, DepthwiseConvLayer, UpsamplingLayer,
// or the Conv and DepthwiseConv builders). It owns the variables of the model, kept in a GoMLX context under
// the model scope, the ordered list of layers with their weights and biases, and a running complexity estimate.
//
// Layers are kept in an explicit registry: building a layer with a known name either reuses its parameters
// (if requested, or when tracing a new graph) or fails with a DuplicateLayerError.
//
// Checkpoints (see CheckpointManager) save and restore all variables of the model, and the summaries
// (see Session.BuildSummarySaver) record diagnostics of the training to event files.
//
// Example:
//
//	sess, err := srgraph.New("lffn", srgraph.DefaultConfig())
//	if err != nil { ... }
//	defer sess.Release()
//	exec, err := sess.NewExec(func(x *Node) *Node {
//		x = srgraph.Conv(sess, "L1", x).Features(16).UseBias(true).Activation(activator.KindRelu).Done()
//		return srgraph.UpsamplingLayer(sess, "up", x, 2, 16)
//	})
package srgraph

import (
	"os"
	"slices"

	"github.com/gomlx/compute"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/gomlx/gomlx/pkg/support/sets"
	"github.com/gomlx/lffn/pkg/ml/complexity"
	"github.com/gomlx/lffn/pkg/ml/summary"
	"github.com/gomlx/lffn/pkg/ml/weights"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// PreallocateEnv is the environment variable that controls the pre-allocation of the accelerator memory by XLA.
const PreallocateEnv = "XLA_PYTHON_CLIENT_PREALLOCATE"

// DefaultModelScope is the model scope used when the model name can't be used as a scope.
const DefaultModelScope = "model"

// Session holds the state of the construction of a model graph. See package documentation.
//
// It is not safe for concurrent use.
type Session struct {
	name, namespace string
	config          Config

	backend     compute.Backend
	ownsBackend bool

	// rootCtx holds the hyperparameters and the RNG state, ctx is rootCtx scoped at the model scope.
	rootCtx, ctx *context.Context

	state    State
	training bool
	graphs   sets.Set[GraphId]

	complexity *complexity.Accountant
	factory    *weights.Factory
	registry   *registry

	specs           []LayerSpec
	weights, biases []*LayerParameter

	recorder   *summary.Recorder
	summaries  *summarySinks
	checkpoint *CheckpointManager
}

// Option for New.
type Option func(s *Session)

// WithBackend makes the session use the given backend, instead of creating one from Config.Backend.
// The backend is not finalized by Release.
func WithBackend(backend compute.Backend) Option {
	return func(s *Session) {
		s.backend = backend
	}
}

// New creates a Session for the model name.
//
// Unless WithBackend is given, it creates a backend from config.Backend, and it returns an error if it fails.
// If config.Preallocate is false, the accelerator memory pre-allocation is disabled (PreallocateEnv) before
// creating the backend, unless the variable is already set.
//
// The caller must call Release when done with it.
func New(name string, config Config, options ...Option) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.WithMessagef(err, "session %q", name)
	}
	s := &Session{
		name:       name,
		namespace:  uuid.NewString(),
		config:     config,
		graphs:     sets.Make[GraphId](),
		complexity: complexity.New(),
		factory:    weights.NewFactory(config.WeightDev),
		registry:   newRegistry(),
		recorder:   summary.NewRecorder(),
	}
	for _, option := range options {
		option(s)
	}
	if s.backend == nil {
		backend, err := newBackend(config)
		if err != nil {
			return nil, errors.WithMessagef(err, "session %q: failed to create backend", name)
		}
		s.backend, s.ownsBackend = backend, true
	}

	s.rootCtx = context.New()
	config.SetParams(s.rootCtx)
	var err error
	if config.Seed != 0 {
		err = s.rootCtx.SetRNGStateFromSeed(config.Seed)
	} else {
		err = s.rootCtx.ResetRNGState()
	}
	if err != nil {
		s.finalizeBackend()
		return nil, errors.WithMessagef(err, "session %q: failed to seed random number generator", name)
	}
	s.ctx = s.rootCtx.In(modelScope(name)).Checked(false)
	klog.V(1).Infof("Session %q created: namespace=%s, backend=%s", name, s.namespace, s.backend.Name())
	return s, nil
}

func newBackend(config Config) (compute.Backend, error) {
	if !config.Preallocate {
		if _, found := os.LookupEnv(PreallocateEnv); !found {
			if err := os.Setenv(PreallocateEnv, "false"); err != nil {
				return nil, errors.Wrapf(err, "failed to set %s", PreallocateEnv)
			}
		}
	}
	if config.Backend == "" {
		return compute.New()
	}
	return compute.NewWithConfig(config.Backend)
}

// modelScope returns the scope of the model variables for the model name.
func modelScope(name string) string {
	scope := context.EscapeScopeName(name)
	if scope == "" {
		return DefaultModelScope
	}
	return scope
}

// Name of the model.
func (s *Session) Name() string { return s.name }

// Namespace is a unique identifier of the session, saved with the checkpoints and summaries.
func (s *Session) Namespace() string { return s.namespace }

// Config returns the configuration of the session.
func (s *Session) Config() Config { return s.config }

// Backend used by the session.
func (s *Session) Backend() compute.Backend { return s.backend }

// Context returns the context, scoped at the model scope, where the variables of the layers are created.
// It can be used to create extra variables that are saved with the checkpoints.
func (s *Session) Context() *context.Context { return s.ctx }

// State of the session.
func (s *Session) State() State { return s.state }

// Training returns the training flag used for graphs built from now on.
func (s *Session) Training() bool { return s.training }

// SetTraining sets the training flag, which controls batch normalization and dropout.
//
// It applies to the graphs the session enters after the call: graphs already traced keep the flag they were
// built with. Use separate executors (see NewExec) for training and inference.
func (s *Session) SetTraining(training bool) {
	s.training = training
}

// enterGraph stamps the training flag on g the first time the session sees it.
func (s *Session) enterGraph(g *Graph) {
	if s.graphs.Has(g.GraphId()) {
		return
	}
	s.graphs.Insert(g.GraphId())
	s.rootCtx.SetTraining(g, s.training)
}

func (s *Session) checkNotReleased() {
	if s.state == StateReleased {
		panic(errors.Wrapf(ErrInvalidState, "session %q already released", s.name))
	}
}

// NewExec returns an executor of graphFn, that builds the model graph on its input using the layers of the
// session. graphFn is traced once per input shape, and reuses the parameters of the layers already built.
//
// The variables not yet initialized are initialized on the first execution.
func (s *Session) NewExec(graphFn func(x *Node) *Node) (*context.Exec, error) {
	if s.state == StateReleased {
		return nil, errors.Wrapf(ErrInvalidState, "session %q already released", s.name)
	}
	return context.NewExec(s.backend, s.rootCtx, func(_ *context.Context, x *Node) *Node {
		s.enterGraph(x.Graph())
		return graphFn(x)
	})
}

// InitializeParameters initializes every variable of the model with its initializer.
//
// It's a no-op if no layer was built. Otherwise, it's only valid in StateBuilt and moves the session to
// StateParametersInitialized.
func (s *Session) InitializeParameters() error {
	if s.registry.len() == 0 && s.state != StateReleased {
		return nil
	}
	if s.state != StateBuilt {
		return errors.Wrapf(ErrInvalidState, "InitializeParameters in state %s, it requires %s", s.state, StateBuilt)
	}
	if err := s.rootCtx.InitializeVariables(s.backend, nil); err != nil {
		return errors.WithMessagef(err, "session %q: initializing parameters", s.name)
	}
	s.state = StateParametersInitialized
	klog.V(1).Infof("Session %q: %d parameters initialized", s.name, s.NumParameters())
	return nil
}

// Release the variables, the summary sinks and, if owned, the backend. It's idempotent.
func (s *Session) Release() {
	if s.state == StateReleased {
		return
	}
	if err := s.closeSummaries(); err != nil {
		klog.Errorf("Session %q: %+v", s.name, err)
	}
	s.rootCtx.Finalize()
	s.finalizeBackend()
	s.state = StateReleased
	klog.V(1).Infof("Session %q released", s.name)
}

func (s *Session) finalizeBackend() {
	if s.ownsBackend && s.backend != nil {
		s.backend.Finalize()
	}
	s.backend = nil
}

// Layers returns the specs of the layers built, in order of creation.
func (s *Session) Layers() []LayerSpec { return slices.Clone(s.specs) }

// Weights returns the weights of the layers built, in order of creation.
func (s *Session) Weights() []*LayerParameter { return slices.Clone(s.weights) }

// Biases returns the biases of the layers built, in order of creation.
func (s *Session) Biases() []*LayerParameter { return slices.Clone(s.biases) }

// Complexity returns the estimated number of multiply-accumulate operations of the model, per input pixel.
func (s *Session) Complexity() int64 { return s.complexity.Total() }

// ComplexityReport returns the complexity formatted for humans.
func (s *Session) ComplexityReport() string { return s.complexity.String() }

// PixPerInput is the multiplier of the complexity of the layers built from now on.
func (s *Session) PixPerInput() int { return s.complexity.PixPerInput() }

// SetPixPerInput sets the multiplier of the complexity of the layers built from now on.
// It should be set to scale² after an upsampling layer of the given scale.
func (s *Session) SetPixPerInput(pixPerInput int) {
	if pixPerInput < 1 {
		exceptions.Panicf("pix_per_input must be >= 1, got %d", pixPerInput)
	}
	s.complexity.SetPixPerInput(pixPerInput)
}

// NumParameters returns the number of scalar values in the variables of the model, including batch
// normalization statistics and PReLU slopes.
func (s *Session) NumParameters() int {
	if s.ctx == nil {
		return 0
	}
	var total int
	for v := range s.ctx.IterVariablesInScope() {
		total += v.Shape().Size()
	}
	return total
}

// ReceptiveField returns the receptive field, in pixels, of the stack of layers built, assuming they are
// applied in sequence with stride 1.
func (s *Session) ReceptiveField() int {
	field := 1
	for _, spec := range s.specs {
		field += max(spec.KernelHeight, spec.KernelWidth) - 1
	}
	return field
}
