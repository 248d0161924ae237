package registry

import (
	"github.com/specialistvlad/tensorgrid/internal/model"
)

// InputKind is the runtime kind of the input capability.
const InputKind = "input"

// Resolve looks up a display name, falling back to the legacy type table.
func (r *Registry) Resolve(displayNameOrLegacyType string) (*Entry, error) {
	if e, ok := r.entries[displayNameOrLegacyType]; ok {
		return e, nil
	}
	if name, ok := legacyDisplayName(displayNameOrLegacyType); ok {
		if e, ok := r.entries[name]; ok {
			return e, nil
		}
	}
	return nil, &UnknownLayerError{Requested: displayNameOrLegacyType, Valid: r.DisplayNames()}
}

// Resolution is a node resolved against the registry.
type Resolution struct {
	Entry *Entry
	// Params are the node's raw parameters, renamed for legacy nodes.
	Params map[string]any
	Legacy bool
}

// ResolveNode resolves a graph node. A node that names a display name
// explicitly must match it exactly; only nodes identified by their type tag
// go through the legacy table.
func (r *Registry) ResolveNode(n model.GraphNode) (*Resolution, error) {
	if name, ok := n.ExplicitDisplayName(); ok {
		e, found := r.entries[name]
		if !found {
			return nil, &UnknownLayerError{Requested: name, Valid: r.DisplayNames()}
		}
		return &Resolution{Entry: e, Params: n.Data.Params}, nil
	}

	if e, ok := r.entries[n.Type]; ok {
		return &Resolution{Entry: e, Params: n.Data.Params}, nil
	}
	e, err := r.Resolve(n.Type)
	if err != nil {
		return nil, err
	}
	return &Resolution{Entry: e, Params: legacyParams(n.Type, n.Data.Params), Legacy: true}, nil
}

// IsInput reports whether the entry is the input capability.
func (e *Entry) IsInput() bool {
	return e.Kind == InputKind
}
