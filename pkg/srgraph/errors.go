// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidState is returned when an operation is called in a Session state that doesn't allow it.
	ErrInvalidState = errors.New("invalid session state")

	// ErrCheckpointNotFound is wrapped by the FatalError returned when loading a checkpoint whose index doesn't exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

// FatalError is an unrecoverable condition: the caller is expected to terminate the process (see MustLoad).
//
// It is returned, rather than acted upon, so the decision of exiting stays with the caller.
type FatalError struct {
	Path string
	Err  error
}

// Error implements error.
func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *FatalError) Unwrap() error { return e.Err }

// IsFatal returns whether err is or wraps a *FatalError.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// DuplicateLayerError is thrown when a layer name is used twice in the same graph without setting reuse.
type DuplicateLayerError struct {
	Name string
}

// Error implements error.
func (e *DuplicateLayerError) Error() string {
	return fmt.Sprintf("layer %q already built in this graph: set reuse to share its parameters, or use a different name",
		e.Name)
}
