// Package registry is the trusted table of layer kinds a graph may use.
//
// The Registry maps the display names found in layer manifests (e.g. "Dense")
// to a runtime kind identifier and an allow-listed set of typed parameters.
// Manifests are HCL files owned by the server; the Go side of every kind is
// compiled in and registered through a Module. Nothing in the registry is ever
// derived from client input.
//
// At startup the registry is populated from both sides and then validated to
// ensure the manifests and the Go parameter structs are perfectly in sync,
// so a parameter accepted by a manifest always has a typed field to land in.
package registry
