// Package training runs training jobs against compiled models.
//
// A run moves through a fixed sequence of states:
//
//	loading -> dataset_bound -> model_loaded -> training -> evaluating -> finished
//
// Any failure, including a panic inside the runtime, moves the run to failed,
// emits one terminal error event on the progress channel and is returned to
// the caller. Progress events are best-effort and never affect the outcome.
//
// The Pool bounds how many runs execute at once and Locks keeps a model from
// being trained twice concurrently or rewritten while it trains.
package training
