/*
Package compiler turns an untrusted canvas graph into an executable model.

Compilation is a multi-phase process:

 1. Node indexing: node ids are checked for uniqueness and every node is
    resolved against the layer registry. Nodes whose entry is the input
    capability (or whose legacy type tag marks them as input) form the input
    set. A graph without inputs fails before anything else is inspected.

 2. Edge linking: edges are loaded into an ordered dag.Graph. Edge order is
    kept, so predecessor lists and the BFS frontier are deterministic.

 3. Breadth-first build: starting from the inputs in node order, a target is
    instantiated once all of its predecessors have been visited. A target with
    several predecessors receives a Concatenate layer over their outputs along
    the last axis. Layers are built by the runtime, which owns shape inference;
    shape errors are reported against the node that triggered them.

 4. Coverage: unvisited nodes fail the compile with their count, and outputs
    (visited nodes without outgoing edges) are collected.

The result bundles the serialized ModelSpec, the built nn.Model and an
architecture summary. Every failure is a *ValidationError naming the node
involved.
*/
package compiler
