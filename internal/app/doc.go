// Package app wires the layer registry, the store, the training pool and
// the HTTP surface together and owns their lifecycle, decoupled from any
// specific entrypoint like a CLI.
package app
