// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package complexity

import (
	"testing"

	"github.com/gomlx/gomlx/pkg/support/exceptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountant(t *testing.T) {
	a := New()
	assert.Equal(t, int64(0), a.Total())
	assert.Equal(t, 1, a.PixPerInput())

	// 3x3 convolution from 3 to 16 features, with bias.
	assert.Equal(t, int64(432), a.AddConv(3, 3, 3, 16))
	assert.Equal(t, int64(16), a.AddBias(16))
	assert.Equal(t, int64(448), a.Total())

	// After a 2x upsampling every term counts 4 times.
	a.SetPixPerInput(4)
	assert.Equal(t, int64(4*144), a.AddConv(1, 1, 144, 1))
	assert.Equal(t, int64(448+4*144), a.Total())
	a.AddBias(3)
	assert.Equal(t, int64(448+4*144+12), a.Total())
	assert.Equal(t, "1,036 (pix_per_input=4)", a.String())
}

func TestAccountantInvalid(t *testing.T) {
	a := New()
	require.Error(t, exceptions.TryCatch[error](func() { a.SetPixPerInput(0) }))
	require.Error(t, exceptions.TryCatch[error](func() { a.AddBias(-1) }))
	assert.Equal(t, int64(0), a.Total())
}
