// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package complexity keeps a running estimate of the number of multiply-accumulate operations of a model,
// scaled by the output resolution of each layer.
//
// It's a reporting artifact only: nothing in the computation depends on it.
package complexity

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gomlx/pkg/support/exceptions"
)

// Accountant accumulates the complexity of the layers built so far. The zero value is not valid, use New.
//
// It's not safe for concurrent use.
type Accountant struct {
	total       int64
	pixPerInput int
}

// New returns an Accountant with total 0 and a pixels-per-input multiplier of 1.
func New() *Accountant {
	return &Accountant{pixPerInput: 1}
}

// PixPerInput is the multiplier applied to every term: the number of output pixels per input pixel of the
// layers currently being built.
func (a *Accountant) PixPerInput() int { return a.pixPerInput }

// SetPixPerInput changes the multiplier for the following layers, typically to scale² after an upsampling layer.
func (a *Accountant) SetPixPerInput(pixPerInput int) {
	if pixPerInput < 1 {
		exceptions.Panicf("complexity: pixPerInput must be >= 1, got %d", pixPerInput)
	}
	a.pixPerInput = pixPerInput
}

// AddConv accounts for a convolution kernel with the given dimensions (e.g. [kh, kw, in, out]): it adds
// pixPerInput times the number of elements of the kernel. It returns the amount added.
func (a *Accountant) AddConv(kernelDims ...int) int64 {
	size := int64(1)
	for _, dim := range kernelDims {
		size *= int64(dim)
	}
	return a.add(size)
}

// AddBias accounts for adding a bias with the given number of features. It returns the amount added.
func (a *Accountant) AddBias(features int) int64 {
	return a.add(int64(features))
}

func (a *Accountant) add(n int64) int64 {
	if n < 0 {
		exceptions.Panicf("complexity: negative term %d", n)
	}
	n *= int64(a.pixPerInput)
	a.total += n
	return n
}

// Total complexity accumulated so far.
func (a *Accountant) Total() int64 { return a.total }

// String implements fmt.Stringer, e.g.: "1,234,567 (pix_per_input=4)".
func (a *Accountant) String() string {
	return fmt.Sprintf("%s (pix_per_input=%d)", humanize.Comma(a.total), a.pixPerInput)
}
