package registry

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that every layer kind package implements to be registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredKind holds the compiled Go parts of a layer kind.
type RegisteredKind struct {
	// NewParams returns a pointer to a zeroed parameter struct whose fields
	// carry `cty:"<param>"` tags.
	NewParams  func() any
	ParamsType reflect.Type
	Build      func(name string, params any) (nn.Layer, error)
}

// Entry is a manifest-declared layer: a display name bound to a kind.
type Entry struct {
	DisplayName string
	Kind        string
	Category    string
	Description string
	Params      map[string]*ParamSpec
	// order keeps parameter declaration order for catalog output.
	order []string
	file  string
}

// ParamNames returns the allow-listed parameter names in declaration order.
func (e *Entry) ParamNames() []string {
	return append([]string(nil), e.order...)
}

// ParamSpec is one allow-listed parameter.
type ParamSpec struct {
	Name string
	// Type is the cty type values are converted to. Sized params are lists.
	Type     cty.Type
	Size     int
	Required bool
	Default  *cty.Value
	// Max bounds number params, and each element of sized ones.
	Max         *float64
	Description string
}

// Registry holds the kind table and manifest entries for one application instance.
type Registry struct {
	kinds   map[string]*RegisteredKind
	entries map[string]*Entry
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		kinds:   make(map[string]*RegisteredKind),
		entries: make(map[string]*Entry),
	}
}

// RegisterKind registers the Go implementation of a layer kind.
func (r *Registry) RegisterKind(kind string, k *RegisteredKind) {
	if _, exists := r.kinds[kind]; exists {
		panic(fmt.Sprintf("layer kind '%s' already registered", kind))
	}
	if k.ParamsType == nil && k.NewParams != nil {
		k.ParamsType = reflect.TypeOf(k.NewParams()).Elem()
	}
	slog.Debug("Registering layer kind.", "kind", kind)
	r.kinds[kind] = k
}

// Kind returns the registered Go implementation of kind.
func (r *Registry) Kind(kind string) (*RegisteredKind, bool) {
	k, ok := r.kinds[kind]
	return k, ok
}

// Entry returns the manifest entry for an exact display name.
func (r *Registry) Entry(displayName string) (*Entry, bool) {
	e, ok := r.entries[displayName]
	return e, ok
}

// DisplayNames returns every registered display name, sorted.
func (r *Registry) DisplayNames() []string {
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// entryForKind finds the manifest entry bound to kind.
func (r *Registry) entryForKind(kind string) (*Entry, bool) {
	for _, name := range r.DisplayNames() {
		if e := r.entries[name]; e.Kind == kind {
			return e, true
		}
	}
	return nil, false
}
