// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"slices"

	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/lffn/pkg/ml/weights"
	"github.com/pkg/errors"
)

// LayerKind is the type of convolution of a layer.
type LayerKind int

const (
	LayerConv LayerKind = iota
	LayerDepthwiseConv
)

//go:generate go tool enumer -type LayerKind -trimprefix=Layer -transform=snake -output=gen_layerkind_enumer.go registry.go

// Role of a parameter within its layer.
type Role int

const (
	RoleWeight Role = iota
	RoleBias
)

//go:generate go tool enumer -type Role -trimprefix=Role -transform=snake -output=gen_role_enumer.go registry.go

// LayerParameter is a learnable weight or bias of a layer.
type LayerParameter struct {
	// Layer is the name of the layer owning the parameter.
	Layer       string
	Role        Role
	Dimensions  []int
	Initializer weights.Policy
	Variable    *context.Variable
}

// LayerParams holds the parameters of one built layer, and the spec it was built with.
type LayerParams struct {
	Spec   LayerSpec
	Kind   LayerKind
	Weight *LayerParameter

	// Bias is nil if the layer has no bias.
	Bias *LayerParameter

	// graphID of the graph where the layer was first built.
	graphID graph.GraphId
}

// builtIn returns whether the layer was first built in the graph g.
func (p *LayerParams) builtIn(g *graph.Graph) bool {
	return p.graphID == g.GraphId()
}

// registry maps layer names to their parameters.
type registry struct {
	byName map[string]*LayerParams
	order  []*LayerParams
}

func newRegistry() *registry {
	return &registry{byName: make(map[string]*LayerParams)}
}

// lookupOrCreate returns the parameters of the layer named spec.Name, calling create if it doesn't exist yet.
//
// reused is true if the parameters already existed, which happens if spec.Reuse is set, or when the layer is
// built again in a new graph (e.g. a different input shape). Using the same name twice in the same graph
// without spec.Reuse returns a *DuplicateLayerError, and spec.Reuse on a name never built is an error.
func (r *registry) lookupOrCreate(g *graph.Graph, kind LayerKind, spec LayerSpec,
	create func() *LayerParams) (params *LayerParams, reused bool, err error) {
	params, found := r.byName[spec.Name]
	if !found {
		if spec.Reuse {
			return nil, false, errors.Errorf("layer %q reused, but it was never built", spec.Name)
		}
		params = create()
		params.Spec = spec
		params.Kind = kind
		params.graphID = g.GraphId()
		r.byName[spec.Name] = params
		r.order = append(r.order, params)
		return params, false, nil
	}
	if params.builtIn(g) && !spec.Reuse {
		return nil, false, errors.WithStack(&DuplicateLayerError{Name: spec.Name})
	}
	if !params.compatible(kind, spec) {
		return nil, false, errors.Errorf("layer %q reused with an incompatible definition: built as %s %+v, requested %s %+v",
			spec.Name, params.Kind, params.Spec, kind, spec)
	}
	return params, true, nil
}

// compatible returns whether the parameters can serve a layer of the given kind and spec.
func (p *LayerParams) compatible(kind LayerKind, spec LayerSpec) bool {
	s := p.Spec
	return p.Kind == kind &&
		s.KernelHeight == spec.KernelHeight && s.KernelWidth == spec.KernelWidth &&
		s.InputFeatures == spec.InputFeatures && s.OutputFeatures == spec.OutputFeatures &&
		s.UseBias == spec.UseBias
}

// layers returns the layers in the order they were created.
func (r *registry) layers() []*LayerParams {
	return slices.Clone(r.order)
}

func (r *registry) len() int { return len(r.order) }
