// Package nn is the tensor runtime the compiled models execute on.
//
// A Model is an ordered list of layers wired by name. Shape inference lives in
// each layer's Build method; the graph compiler never computes shapes itself
// and instead surfaces the errors layers return from Build. Forward and
// backward passes run in the compiled order and its reverse, so a model is
// only valid for the DAG it was built from.
//
// Kinds other than Concatenate live in internal/layers and are reached
// through the registry.
package nn
