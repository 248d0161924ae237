// Package dag provides an ordered directed graph with cycle detection. The
// graph compiler uses it to hold the canvas edges: predecessor and successor
// lists keep the order in which edges were added, which fixes both the
// traversal order and the order of concatenated inputs.
package dag
