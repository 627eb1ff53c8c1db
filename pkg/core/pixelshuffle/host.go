// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package pixelshuffle

import "github.com/pkg/errors"

// HostDepthToSpace is the reference implementation of DepthToSpace on a flat row-major slice, for
// dimensions [n, h, w, scale²·c]. It returns the flat output and its dimensions.
func HostDepthToSpace[T any](flat []T, dims [4]int, scale int) ([]T, [4]int, error) {
	n, h, w, channels := dims[0], dims[1], dims[2], dims[3]
	if scale < 1 || channels%(scale*scale) != 0 {
		return nil, dims, errors.Errorf("invalid scale %d for dimensions %v", scale, dims)
	}
	if len(flat) != n*h*w*channels {
		return nil, dims, errors.Errorf("flat data has %d elements, dimensions %v require %d",
			len(flat), dims, n*h*w*channels)
	}
	c := channels / (scale * scale)
	outDims := [4]int{n, h * scale, w * scale, c}
	out := make([]T, len(flat))
	for b := range n {
		for y := range h {
			for x := range w {
				for dh := range scale {
					for dw := range scale {
						for ch := range c {
							src := ((b*h+y)*w+x)*channels + (dh*scale+dw)*c + ch
							dst := ((b*outDims[1]+y*scale+dh)*outDims[2]+x*scale+dw)*c + ch
							out[dst] = flat[src]
						}
					}
				}
			}
		}
	}
	return out, outDims, nil
}

// HostSpaceToDepth is the reference implementation of SpaceToDepth on a flat row-major slice, for
// dimensions [n, h·scale, w·scale, c].
func HostSpaceToDepth[T any](flat []T, dims [4]int, scale int) ([]T, [4]int, error) {
	n, h, w, c := dims[0], dims[1], dims[2], dims[3]
	if scale < 1 || h%scale != 0 || w%scale != 0 {
		return nil, dims, errors.Errorf("invalid scale %d for dimensions %v", scale, dims)
	}
	if len(flat) != n*h*w*c {
		return nil, dims, errors.Errorf("flat data has %d elements, dimensions %v require %d",
			len(flat), dims, n*h*w*c)
	}
	outDims := [4]int{n, h / scale, w / scale, scale * scale * c}
	out := make([]T, len(flat))
	for b := range n {
		for y := range h {
			for x := range w {
				dh, dw := y%scale, x%scale
				for ch := range c {
					src := ((b*h+y)*w+x)*c + ch
					dst := ((b*outDims[1]+y/scale)*outDims[2]+x/scale)*outDims[3] + (dh*scale+dw)*c + ch
					out[dst] = flat[src]
				}
			}
		}
	}
	return out, outDims, nil
}
