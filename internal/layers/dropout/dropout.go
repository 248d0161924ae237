// Package dropout implements inverted dropout.
package dropout

import (
	"math/rand"
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Kind is the runtime kind id.
const Kind = "dropout"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params defines the arguments of a dropout layer.
type Params struct {
	Rate float64 `cty:"rate"`
}

// Layer zeroes a Rate fraction of its inputs during training and scales the
// rest by 1/(1-Rate). Inference is the identity.
type Layer struct {
	name string
	rate float64
	rng  *rand.Rand
	mask []float64
}

// New validates p and returns the layer.
func New(name string, p Params) (*Layer, error) {
	if p.Rate < 0 || p.Rate >= 1 {
		return nil, &registry.ParamError{Param: "rate", Value: p.Rate, Reason: "must be in [0, 1)"}
	}
	return &Layer{name: name, rate: p.Rate, rng: nn.Rand(name)}, nil
}

func (l *Layer) Name() string        { return l.name }
func (l *Layer) ClassName() string   { return "Dropout" }
func (l *Layer) Params() []*nn.Param { return nil }

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	in, err := nn.RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	return append([]int(nil), in...), nil
}

func (l *Layer) Forward(inputs []*tensor.Tensor, training bool) (*tensor.Tensor, error) {
	x := inputs[0]
	if !training || l.rate == 0 {
		l.mask = nil
		return x, nil
	}
	scale := 1 / (1 - l.rate)
	l.mask = make([]float64, x.Len())
	y := tensor.New(x.Shape...)
	for i, v := range x.Data {
		if l.rng.Float64() >= l.rate {
			l.mask[i] = scale
			y.Data[i] = v * scale
		}
	}
	return y, nil
}

func (l *Layer) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	if l.mask == nil {
		return []*tensor.Tensor{grad}, nil
	}
	dx := tensor.New(grad.Shape...)
	for i, g := range grad.Data {
		dx.Data[i] = g * l.mask[i]
	}
	return []*tensor.Tensor{dx}, nil
}

func build(name string, params any) (nn.Layer, error) {
	return New(name, *params.(*Params))
}

// Register registers the kind with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, &registry.RegisteredKind{
		NewParams:  func() any { return new(Params) },
		ParamsType: reflect.TypeOf(Params{}),
		Build:      build,
	})
}
