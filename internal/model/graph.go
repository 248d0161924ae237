// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines the client-side graph that the compiler consumes.
//
// A ModelGraph is untrusted input. The node's declared type, its parameter
// names and the parameter values all come from the browser and must only be
// interpreted through the layer registry. The registry reference carried in
// NodeData is honoured for exactly one field, the display name; anything else
// the client puts there is ignored.
package model

import "strings"

// GraphNode is a single node on the canvas.
type GraphNode struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	Data     NodeData  `json:"data"`
	Position *Position `json:"position,omitempty"`
}

// Position is the node's place on the canvas. The compiler ignores it.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData is the free-form payload attached to a node by the canvas.
type NodeData struct {
	Params   map[string]any   `json:"params,omitempty"`
	Registry *NodeRegistryRef `json:"registry,omitempty"`
	Label    string           `json:"label,omitempty"`
}

// NodeRegistryRef points a node at a registry entry by display name.
type NodeRegistryRef struct {
	DisplayName string `json:"display_name"`
}

// DeclaredType returns the layer identifier the node asks for. An explicit
// registry display name wins over the node's type tag.
func (n GraphNode) DeclaredType() string {
	if name, ok := n.ExplicitDisplayName(); ok {
		return name
	}
	return n.Type
}

// ExplicitDisplayName reports the registry display name the node carries, if any.
func (n GraphNode) ExplicitDisplayName() (string, bool) {
	if n.Data.Registry == nil {
		return "", false
	}
	name := strings.TrimSpace(n.Data.Registry.DisplayName)
	return name, name != ""
}

// Param returns the raw value of a node parameter.
func (n GraphNode) Param(name string) (any, bool) {
	if n.Data.Params == nil {
		return nil, false
	}
	v, ok := n.Data.Params[name]
	return v, ok
}

// GraphEdge is a directed connection; the target consumes the source's output.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ModelGraph is the full canvas. Edge order is significant: it fixes the
// order of predecessor outputs in multi-input concatenations.
type ModelGraph struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}
