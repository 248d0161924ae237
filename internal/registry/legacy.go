package registry

import (
	"fmt"
	"maps"
)

// legacyTypes maps node type tags written before graphs carried a registry
// display name. The table is closed; it is consulted only for nodes that do
// not name a display name explicitly.
var legacyTypes = map[string]string{
	"custominput":   "Input",
	"customdense":   "Dense",
	"customflatten": "Flatten",
	"customconv":    "Conv2D",
	"customdropout": "Dropout",
}

// LegacyInputType is the type tag of input nodes in legacy graphs.
const LegacyInputType = "custominput"

// legacyDisplayName translates a legacy type tag.
func legacyDisplayName(tag string) (string, bool) {
	name, ok := legacyTypes[tag]
	return name, ok
}

// legacyParams rewrites parameter names used by legacy nodes to the names
// the registry entries declare. The input map is not modified.
func legacyParams(tag string, params map[string]any) map[string]any {
	if tag != "customconv" {
		return params
	}
	out := maps.Clone(params)
	if out == nil {
		out = map[string]any{}
	}
	rename := func(from, to string) {
		if v, ok := out[from]; ok {
			if _, exists := out[to]; !exists {
				out[to] = v
			}
			delete(out, from)
		}
	}
	pair := func(x, y, to string) {
		xv, xok := out[x]
		yv, yok := out[y]
		delete(out, x)
		delete(out, y)
		if _, exists := out[to]; exists {
			return
		}
		switch {
		case xok && yok:
			out[to] = fmt.Sprintf("%v,%v", xv, yv)
		case xok:
			out[to] = xv
		case yok:
			out[to] = yv
		}
	}
	rename("filter", "filters")
	pair("kernelX", "kernelY", "kernel_size")
	pair("strideX", "strideY", "strides")
	return out
}
