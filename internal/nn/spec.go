package nn

import (
	"encoding/json"
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/model"
)

// LayerFactory re-creates a layer from its serialized kind and config. The
// registry is the only production implementation.
type LayerFactory interface {
	NewLayer(kind, name string, config json.RawMessage) (Layer, error)
}

// FromSpec instantiates a fresh model from a serialized spec. Weights are
// re-initialised; nothing is shared with the model the spec was compiled from.
func FromSpec(spec model.ModelSpec, f LayerFactory) (*Model, error) {
	if spec.Version != model.SpecVersion {
		return nil, fmt.Errorf("unsupported model spec version %d (want %d)", spec.Version, model.SpecVersion)
	}
	inputs := make(map[string]bool, len(spec.Inputs))
	for _, name := range spec.Inputs {
		inputs[name] = true
	}

	m := NewModel()
	for _, ls := range spec.Layers {
		var (
			l   Layer
			err error
		)
		if ls.Kind == ConcatenateKind {
			l = NewConcatenate(ls.Name)
		} else if l, err = f.NewLayer(ls.Kind, ls.Name, ls.Config); err != nil {
			return nil, fmt.Errorf("layer %q: %w", ls.Name, err)
		}

		if inputs[ls.Name] {
			_, err = m.AddInput(l)
		} else {
			_, err = m.Add(l, ls.Inbound...)
		}
		if err != nil {
			return nil, err
		}
	}
	if len(m.inputs) != len(spec.Inputs) {
		return nil, fmt.Errorf("spec declares %d inputs but only %d were found among its layers", len(spec.Inputs), len(m.inputs))
	}
	if err := m.SetOutputs(spec.Outputs...); err != nil {
		return nil, err
	}
	return m, nil
}
