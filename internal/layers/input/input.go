// Package input implements the input capability: a layer that declares the
// sample shape of one model input and passes the fed tensor through.
package input

import (
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params are the dimension slots of the canvas input node. Zero means unused.
type Params struct {
	Dim1 int `cty:"dim-1"`
	Dim2 int `cty:"dim-2"`
	Dim3 int `cty:"dim-3"`
}

// Shape returns the used dimensions in slot order.
func (p Params) Shape() []int {
	var shape []int
	for _, d := range []int{p.Dim1, p.Dim2, p.Dim3} {
		if d != 0 {
			shape = append(shape, d)
		}
	}
	return shape
}

// Layer is an input placeholder.
type Layer struct {
	name  string
	shape []int
}

// New returns an input layer for the given sample shape.
func New(name string, shape []int) (*Layer, error) {
	if len(shape) == 0 {
		return nil, &registry.ParamError{Param: "dim-1", Reason: "is required: an input needs at least one dimension"}
	}
	for i, d := range shape {
		if d <= 0 {
			return nil, &registry.ParamError{Param: dimParam(i), Value: d, Reason: "must be a positive integer"}
		}
	}
	return &Layer{name: name, shape: append([]int(nil), shape...)}, nil
}

func dimParam(i int) string {
	return []string{"dim-1", "dim-2", "dim-3"}[min(i, 2)]
}

func (l *Layer) Name() string        { return l.name }
func (l *Layer) ClassName() string   { return "InputLayer" }
func (l *Layer) Params() []*nn.Param { return nil }
func (l *Layer) Shape() []int        { return append([]int(nil), l.shape...) }

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	if len(inputs) != 0 {
		return nil, nn.ShapeErrorf(l.name, "an input layer cannot have inbound layers")
	}
	return l.Shape(), nil
}

func (l *Layer) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	if len(inputs) != 1 {
		return nil, nn.ShapeErrorf(l.name, "expected 1 fed tensor, got %d", len(inputs))
	}
	x := inputs[0]
	if !tensor.EqualShape(x.SampleShape(), l.shape) {
		return nil, nn.ShapeErrorf(l.name, "expected samples of shape %s, got %s",
			tensor.ShapeString(l.shape), tensor.ShapeString(x.SampleShape()))
	}
	return x, nil
}

func (l *Layer) Backward(*tensor.Tensor) ([]*tensor.Tensor, error) { return nil, nil }

func build(name string, params any) (nn.Layer, error) {
	return New(name, params.(*Params).Shape())
}

// Register registers the kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(registry.InputKind, &registry.RegisteredKind{
		NewParams:  func() any { return new(Params) },
		ParamsType: reflect.TypeOf(Params{}),
		Build:      build,
	})
}
