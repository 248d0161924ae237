// Package flatten implements the layer that collapses every non-batch axis.
package flatten

import (
	"fmt"
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Kind is the runtime kind id.
const Kind = "flatten"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params is empty: Flatten takes no arguments.
type Params struct{}

// Layer reshapes (batch, d1, ..., dn) to (batch, d1*...*dn).
type Layer struct {
	name string
	in   []int
}

// New returns an unbuilt layer.
func New(name string) *Layer { return &Layer{name: name} }

func (l *Layer) Name() string        { return l.name }
func (l *Layer) ClassName() string   { return "Flatten" }
func (l *Layer) Params() []*nn.Param { return nil }

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	in, err := nn.RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	if len(in) == 0 {
		return nil, nn.ShapeErrorf(l.name, "cannot flatten a scalar input")
	}
	size, err := tensor.CheckedSize(in, nn.MaxSampleElements)
	if err != nil {
		return nil, fmt.Errorf("layer %q: %w", l.name, err)
	}
	l.in = append([]int(nil), in...)
	return []int{size}, nil
}

func (l *Layer) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	x := inputs[0]
	return x.Reshape(x.Rows(), x.RowSize()), nil
}

func (l *Layer) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	return []*tensor.Tensor{grad.Reshape(append([]int{grad.Rows()}, l.in...)...)}, nil
}

// Register registers the kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, &registry.RegisteredKind{
		NewParams:  func() any { return new(Params) },
		ParamsType: reflect.TypeOf(Params{}),
		Build:      func(name string, _ any) (nn.Layer, error) { return New(name), nil },
	})
}
