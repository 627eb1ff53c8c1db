// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package srgraph

// State of a Session.
type State int

const (
	// StateUninitialized is the state of a new Session, before any layer is built.
	StateUninitialized State = iota

	// StateBuilt means layers were built, but the parameters have no values yet.
	StateBuilt

	// StateParametersInitialized means all parameters have values, either randomly initialized or
	// restored from a checkpoint.
	StateParametersInitialized

	// StateReleased is terminal: the Session can no longer be used.
	StateReleased
)

//go:generate go tool enumer -type State -trimprefix=State -transform=snake -output=gen_state_enumer.go state.go
