package registry

import (
	"encoding/json"

	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// CatalogParam describes one allow-listed parameter to the UI.
type CatalogParam struct {
	Type        string          `json:"type"`
	Size        int             `json:"size,omitempty"`
	Required    bool            `json:"required"`
	Default     json.RawMessage `json:"default,omitempty"`
	Max         *float64        `json:"max,omitempty"`
	Description string          `json:"description,omitempty"`
}

// CatalogEntry describes one layer to the UI.
type CatalogEntry struct {
	DisplayName string                  `json:"display_name"`
	Kind        string                  `json:"kind"`
	Category    string                  `json:"category,omitempty"`
	Description string                  `json:"description,omitempty"`
	ParamOrder  []string                `json:"param_order"`
	Params      map[string]CatalogParam `json:"params"`
}

// Catalog exports every entry, sorted by display name.
func (r *Registry) Catalog() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(r.entries))
	for _, name := range r.DisplayNames() {
		e := r.entries[name]
		ce := CatalogEntry{
			DisplayName: e.DisplayName,
			Kind:        e.Kind,
			Category:    e.Category,
			Description: e.Description,
			ParamOrder:  e.ParamNames(),
			Params:      make(map[string]CatalogParam, len(e.Params)),
		}
		for _, pname := range e.order {
			p := e.Params[pname]
			cp := CatalogParam{Size: p.Size, Required: p.Required, Max: p.Max, Description: p.Description}
			if p.Size > 0 {
				cp.Type = p.Type.ElementType().FriendlyName()
			} else {
				cp.Type = p.Type.FriendlyName()
			}
			if p.Default != nil {
				if raw, err := ctyjson.Marshal(*p.Default, p.Default.Type()); err == nil {
					cp.Default = raw
				}
			}
			ce.Params[pname] = cp
		}
		out = append(out, ce)
	}
	return out
}
