// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines ModelSpec, the serialized form of a compiled model.
//
// The spec is what gets persisted and what a training run loads. It records
// runtime kind identifiers, never client-supplied strings: every Kind in a
// LayerSpec was produced by the registry during compilation, and loading a spec
// dispatches through the same closed registry table again.
package model

import "encoding/json"

// SpecVersion is bumped whenever the on-disk layout of ModelSpec changes.
const SpecVersion = 1

// LayerSpec is one instantiated layer in compilation order.
type LayerSpec struct {
	Name      string          `json:"name"`
	Kind      string          `json:"kind"`
	ClassName string          `json:"class_name"`
	Config    json.RawMessage `json:"config"`
	Inbound   []string        `json:"inbound,omitempty"`
}

// ModelSpec is the ordered layer list plus the declared inputs and outputs.
type ModelSpec struct {
	Version int         `json:"version"`
	Name    string      `json:"name,omitempty"`
	Layers  []LayerSpec `json:"layers"`
	Inputs  []string    `json:"inputs"`
	Outputs []string    `json:"outputs"`
}
