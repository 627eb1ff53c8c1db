// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package pixelshuffle implements the channel-to-space rearrangement (also known as "depth to space" or
// "pixel shuffle") used for learned upsampling, and its inverse.
//
// Images are in channels-last layout: [batch, height, width, channels].
//
// For a scale s, DepthToSpace maps the input value at (n, h, w, (dh·s+dw)·C+c) to the output position
// (n, h·s+dh, w·s+dw, c). It's a pure permutation: no value is computed.
package pixelshuffle

import (
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
)

// DepthToSpace rearranges x shaped [N, H, W, scale²·C] into [N, H·scale, W·scale, C].
//
// It panics if x is not rank 4 or its channels are not divisible by scale².
func DepthToSpace(x *Node, scale int) *Node {
	n, h, w, channels := checkImage(x, scale)
	if channels%(scale*scale) != 0 {
		exceptions.Panicf("DepthToSpace: channels (%d) must be divisible by scale²=%d, got x.shape=%s",
			channels, scale*scale, x.Shape())
	}
	if scale == 1 {
		return x
	}
	c := channels / (scale * scale)
	x = Reshape(x, n, h, w, scale, scale, c)  // [n, h, w, dh, dw, c]
	x = TransposeAllDims(x, 0, 1, 3, 2, 4, 5) // [n, h, dh, w, dw, c]
	return Reshape(x, n, h*scale, w*scale, c)
}

// SpaceToDepth is the inverse of DepthToSpace: it rearranges x shaped [N, H·scale, W·scale, C] into
// [N, H, W, scale²·C].
//
// It panics if x is not rank 4 or its spatial dimensions are not divisible by scale.
func SpaceToDepth(x *Node, scale int) *Node {
	n, h, w, c := checkImage(x, scale)
	if h%scale != 0 || w%scale != 0 {
		exceptions.Panicf("SpaceToDepth: spatial dimensions must be divisible by scale=%d, got x.shape=%s",
			scale, x.Shape())
	}
	if scale == 1 {
		return x
	}
	h, w = h/scale, w/scale
	x = Reshape(x, n, h, scale, w, scale, c)  // [n, h, dh, w, dw, c]
	x = TransposeAllDims(x, 0, 1, 3, 2, 4, 5) // [n, h, w, dh, dw, c]
	return Reshape(x, n, h, w, scale*scale*c)
}

func checkImage(x *Node, scale int) (n, h, w, c int) {
	if scale < 1 {
		exceptions.Panicf("pixelshuffle: scale must be >= 1, got %d", scale)
	}
	if x.Rank() != 4 {
		exceptions.Panicf("pixelshuffle: x must be shaped [batch, height, width, channels], got x.shape=%s",
			x.Shape())
	}
	dims := x.Shape().Dimensions
	return dims[0], dims[1], dims[2], dims[3]
}
