// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

// Package model holds the format-agnostic data types shared by the compiler,
// the training orchestrator and the persistence layer: the client-submitted
// node/edge graph, the serialized compiled model, dataset descriptors and
// training jobs.
//
// Nothing in this package performs I/O. The types are plain values with JSON
// tags compatible with the canvas front-end, so they can be decoded straight
// off the wire and handed to the compiler.
package model
