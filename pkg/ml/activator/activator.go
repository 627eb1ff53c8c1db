// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package activator dispatches an activation Kind to its element-wise transformation.
//
// The set of activations is closed: Kind is an exhaustive enum, and anything that doesn't map to one of
// its values is reported as an UnsupportedActivatorError.
package activator

import (
	"fmt"

	"github.com/gomlx/compute/shapes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"
	"github.com/pkg/errors"
)

const (
	// DefaultLeakyReluAlpha is the negative slope used by KindLeakyRelu.
	DefaultLeakyReluAlpha = 0.1

	// DefaultPReluAlpha is the initial value of every learnable slope of KindPRelu.
	DefaultPReluAlpha = 0.1

	// PReluScope is the sub-scope where PRelu creates its slope variable.
	PReluScope = "prelu"

	// PReluVariable is the name of the PRelu slope variable, within PReluScope.
	PReluVariable = "alphas"
)

// Kind of activation.
//
// It is converted to snake-format strings (e.g.: KindLeakyRelu -> "leaky_relu"), and can be parsed
// with ParseKind.
type Kind int

const (
	KindNone Kind = iota
	KindRelu
	KindSigmoid
	KindTanh
	KindLeakyRelu
	KindPRelu
)

//go:generate go tool enumer -type Kind -trimprefix=Kind -transform=snake -output=gen_kind_enumer.go activator.go

// UnsupportedActivatorError is returned (or thrown, during graph building) for an activation tag that is not
// one of the known kinds.
type UnsupportedActivatorError struct {
	Name string
}

// Error implements error.
func (e *UnsupportedActivatorError) Error() string {
	return fmt.Sprintf("unsupported activator %q: options are %v", e.Name, KindStrings())
}

// ParseKind converts an activation tag to its Kind.
//
// The empty string is converted to KindNone. Unknown tags return an *UnsupportedActivatorError.
func ParseKind(name string) (Kind, error) {
	if name == "" {
		return KindNone, nil
	}
	kind, err := KindString(name)
	if err != nil {
		return KindNone, errors.WithStack(&UnsupportedActivatorError{Name: name})
	}
	return kind, nil
}

// MustParseKind is like ParseKind, but panics on error.
func MustParseKind(name string) Kind {
	kind, err := ParseKind(name)
	if err != nil {
		panic(err)
	}
	return kind
}

// Apply the activation kind to x. The output has the same shape as x.
//
// ctx is only used by KindPRelu, which creates (or reuses) its slope variable under ctx.In(PReluScope). The number
// of slopes is the size of the last (channels) axis of x.
//
// It panics with an *UnsupportedActivatorError if kind is not a valid Kind.
func Apply(ctx *context.Context, kind Kind, x *Node) *Node {
	switch kind {
	case KindNone:
		return x
	case KindRelu:
		return activations.Relu(x)
	case KindSigmoid:
		return Sigmoid(x)
	case KindTanh:
		return Tanh(x)
	case KindLeakyRelu:
		return activations.LeakyReluWith(x, DefaultLeakyReluAlpha)
	case KindPRelu:
		return PRelu(ctx, x)
	}
	panic(errors.WithStack(&UnsupportedActivatorError{Name: kind.String()}))
}

// PReluAlphas returns the learnable slopes used by PRelu, creating the variable if it doesn't exist yet.
// shape is [features], and values are initialized to DefaultPReluAlpha.
//
// ctx must allow reuse (or be unchecked) if the variable was already created.
func PReluAlphas(ctx *context.Context, shape shapes.Shape) *context.Variable {
	return ctx.In(PReluScope).
		WithInitializer(func(g *Graph, shape shapes.Shape) *Node {
			return BroadcastToDims(Scalar(g, shape.DType, DefaultPReluAlpha), shape.Dimensions...)
		}).
		VariableWithShape(PReluVariable, shape)
}

// PRelu is the parametric rectified linear unit: relu(x) + 0.5·alphas·(x - |x|), with one learnable slope
// per channel (last axis of x).
//
// It is equivalent to x for x >= 0 and alphas·x for x < 0.
func PRelu(ctx *context.Context, x *Node) *Node {
	features := x.Shape().Dimensions[x.Rank()-1]
	alphasVar := PReluAlphas(ctx, shapes.Make(x.DType(), features))
	alphas := ExpandLeftToRank(alphasVar.ValueGraph(x.Graph()), x.Rank())
	negative := MulScalar(Mul(alphas, Sub(x, Abs(x))), 0.5)
	return Add(activations.Relu(x), negative)
}
