// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"strings"

	"github.com/gomlx/compute/dtypes"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/lffn/pkg/ml/weights"
	"github.com/pkg/errors"
)

// Hyperparameters read from the context by ConfigFromContext.
const (
	// ParamInitializer is the weight initializer policy: "he", "xavier", "uniform", "stddev", "identity" or "zeros".
	ParamInitializer = "initializer"

	// ParamWeightDev is the spread used by the "uniform" and "stddev" initializers.
	ParamWeightDev = "weight_dev"

	// ParamSaveLoss enables logging of the loss (and other caller provided scalars) to the summaries.
	ParamSaveLoss = "save_loss"

	// ParamSaveWeights enables logging of weights, biases and PReLU slopes statistics to the summaries.
	ParamSaveWeights = "save_weights"

	// ParamSaveImages enables saving images to the summaries.
	ParamSaveImages = "save_images"

	// ParamSaveMetaData enables writing the model metadata (layers, complexity) to the evaluation summaries.
	ParamSaveMetaData = "save_meta_data"

	// ParamCheckpointDir is the directory where checkpoints are saved.
	ParamCheckpointDir = "checkpoint_dir"

	// ParamLogDir is the directory of the summaries. It is archived to "<tf_log_dir>_<archive_name>".
	ParamLogDir = "tf_log_dir"

	// ParamDropoutKeepRate is the probability of keeping a value in the layers that use dropout.
	ParamDropoutKeepRate = "dropout_keep_rate"

	// ParamCnnStride is the stride of the convolutions, for layers that don't set their own.
	ParamCnnStride = "cnn_stride"

	// ParamBackend is the backend configuration, e.g. "xla:cuda" or "go". Empty uses GoMLX default.
	ParamBackend = "backend"

	// ParamPreallocate controls whether the accelerator memory is pre-allocated by the backend.
	ParamPreallocate = "preallocate"

	// ParamDType is the dtype of the parameters: "float32", "float64" or "float16".
	ParamDType = "dtype"
)

// Config of a Session.
type Config struct {
	Initializer weights.Policy
	WeightDev   float64

	SaveLoss, SaveWeights, SaveImages, SaveMetaData bool

	CheckpointDir string
	LogDir        string

	DropoutKeepRate float64
	CnnStride       int

	Backend     string
	Preallocate bool
	DType       dtypes.DType

	// Seed for the random initialization of the parameters. If 0 a random seed is used.
	Seed int64
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Initializer:     weights.PolicyHe,
		WeightDev:       weights.DefaultStddev,
		SaveLoss:        true,
		CheckpointDir:   "models",
		LogDir:          "tf_log",
		DropoutKeepRate: 0.8,
		CnnStride:       1,
		Preallocate:     true,
		DType:           dtypes.Float32,
	}
}

// Validate the configuration, and normalizes the directories (trailing separators are removed).
func (c *Config) Validate() error {
	if !c.Initializer.IsAPolicy() {
		return errors.Errorf("invalid initializer %s", c.Initializer)
	}
	if c.WeightDev <= 0 {
		return errors.Errorf("%s must be > 0, got %g", ParamWeightDev, c.WeightDev)
	}
	if c.DropoutKeepRate <= 0 || c.DropoutKeepRate > 1 {
		return errors.Errorf("%s must be in (0, 1], got %g", ParamDropoutKeepRate, c.DropoutKeepRate)
	}
	if c.CnnStride < 1 {
		return errors.Errorf("%s must be >= 1, got %d", ParamCnnStride, c.CnnStride)
	}
	if !c.DType.IsFloat() {
		return errors.Errorf("%s must be a float type, got %s", ParamDType, c.DType)
	}
	for _, dir := range []*string{&c.CheckpointDir, &c.LogDir} {
		trimmed := strings.TrimRight(*dir, "/")
		if trimmed == "" {
			return errors.Errorf("invalid directory %q: %s and %s must name a directory",
				*dir, ParamCheckpointDir, ParamLogDir)
		}
		*dir = trimmed
	}
	return nil
}

// SetParams writes the configuration as hyperparameters of ctx.
// The seed is only set if not 0, so the random number generator of ctx is seeded randomly otherwise.
func (c Config) SetParams(ctx *context.Context) {
	ctx.SetParams(map[string]any{
		ParamInitializer:     c.Initializer.String(),
		ParamWeightDev:       c.WeightDev,
		ParamSaveLoss:        c.SaveLoss,
		ParamSaveWeights:     c.SaveWeights,
		ParamSaveImages:      c.SaveImages,
		ParamSaveMetaData:    c.SaveMetaData,
		ParamCheckpointDir:   c.CheckpointDir,
		ParamLogDir:          c.LogDir,
		ParamDropoutKeepRate: c.DropoutKeepRate,
		ParamCnnStride:       c.CnnStride,
		ParamBackend:         c.Backend,
		ParamPreallocate:     c.Preallocate,
		ParamDType:           c.DType.String(),
	})
	if c.Seed != 0 {
		ctx.SetParam(context.ParamInitialSeed, c.Seed)
	}
}

// CreateDefaultContext returns a new context with the default configuration set as hyperparameters.
// Use ConfigFromContext to read it back after changing it.
func CreateDefaultContext() *context.Context {
	ctx := context.New()
	DefaultConfig().SetParams(ctx)
	// Declared so it can be set from the command line: 0 means a random seed.
	ctx.SetParam(context.ParamInitialSeed, int64(0))
	return ctx
}

// ConfigFromContext reads the configuration from the hyperparameters of ctx. Missing values take the defaults.
func ConfigFromContext(ctx *context.Context) (Config, error) {
	c := DefaultConfig()
	var err error
	c.Initializer, err = weights.ParsePolicy(context.GetParamOr(ctx, ParamInitializer, c.Initializer.String()))
	if err != nil {
		return c, errors.WithMessagef(err, "hyperparameter %q", ParamInitializer)
	}
	c.WeightDev = context.GetParamOr(ctx, ParamWeightDev, c.WeightDev)
	c.SaveLoss = context.GetParamOr(ctx, ParamSaveLoss, c.SaveLoss)
	c.SaveWeights = context.GetParamOr(ctx, ParamSaveWeights, c.SaveWeights)
	c.SaveImages = context.GetParamOr(ctx, ParamSaveImages, c.SaveImages)
	c.SaveMetaData = context.GetParamOr(ctx, ParamSaveMetaData, c.SaveMetaData)
	c.CheckpointDir = context.GetParamOr(ctx, ParamCheckpointDir, c.CheckpointDir)
	c.LogDir = context.GetParamOr(ctx, ParamLogDir, c.LogDir)
	c.DropoutKeepRate = context.GetParamOr(ctx, ParamDropoutKeepRate, c.DropoutKeepRate)
	c.CnnStride = context.GetParamOr(ctx, ParamCnnStride, c.CnnStride)
	c.Backend = context.GetParamOr(ctx, ParamBackend, c.Backend)
	c.Preallocate = context.GetParamOr(ctx, ParamPreallocate, c.Preallocate)
	c.Seed = context.GetParamOr(ctx, context.ParamInitialSeed, c.Seed)
	dtypeName := context.GetParamOr(ctx, ParamDType, c.DType.String())
	c.DType, err = parseDType(dtypeName)
	if err != nil {
		return c, err
	}
	return c, c.Validate()
}

func parseDType(name string) (dtypes.DType, error) {
	switch strings.ToLower(name) {
	case "float32", "f32":
		return dtypes.Float32, nil
	case "float64", "f64":
		return dtypes.Float64, nil
	case "float16", "f16":
		return dtypes.Float16, nil
	}
	return dtypes.InvalidDType, errors.Errorf("hyperparameter %q: unsupported dtype %q, use float32, float64 or float16",
		ParamDType, name)
}
