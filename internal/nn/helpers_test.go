package nn

import (
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// passInput is a minimal input layer.
type passInput struct {
	name  string
	shape []int
}

func (l *passInput) Name() string      { return l.name }
func (l *passInput) ClassName() string { return "InputLayer" }
func (l *passInput) Params() []*Param  { return nil }

func (l *passInput) Build(inputs [][]int) ([]int, error) {
	if len(inputs) != 0 {
		return nil, ShapeErrorf(l.name, "input cannot have inbound layers")
	}
	return l.shape, nil
}

func (l *passInput) Forward(in []*tensor.Tensor, _ bool) (*tensor.Tensor, error) { return in[0], nil }
func (l *passInput) Backward(*tensor.Tensor) ([]*tensor.Tensor, error)           { return nil, nil }

// scale multiplies each feature by its own weight.
type scale struct {
	name string
	w    *Param
	x    *tensor.Tensor
	init float64
}

func newScale(name string, init float64) *scale { return &scale{name: name, init: init} }

func (l *scale) Name() string      { return l.name }
func (l *scale) ClassName() string { return "Scale" }
func (l *scale) Params() []*Param  { return []*Param{l.w} }

func (l *scale) Build(inputs [][]int) ([]int, error) {
	in, err := RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	if l.w, err = NewParam(l.name+"/w", in...); err != nil {
		return nil, err
	}
	for i := range l.w.Value.Data {
		l.w.Value.Data[i] = l.init
	}
	return in, nil
}

func (l *scale) Forward(in []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	l.x = in[0]
	out := tensor.New(l.x.Shape...)
	n := l.x.RowSize()
	for i, v := range l.x.Data {
		out.Data[i] = v * l.w.Value.Data[i%n]
	}
	return out, nil
}

func (l *scale) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	n := l.x.RowSize()
	l.w.Grad.Zero()
	dx := tensor.New(grad.Shape...)
	for i, g := range grad.Data {
		l.w.Grad.Data[i%n] += g * l.x.Data[i]
		dx.Data[i] = g * l.w.Value.Data[i%n]
	}
	return []*tensor.Tensor{dx}, nil
}

// numericGrad estimates df/dx_i by central differences.
func numericGrad(x []float64, f func() float64) []float64 {
	const h = 1e-6
	out := make([]float64, len(x))
	for i := range x {
		orig := x[i]
		x[i] = orig + h
		up := f()
		x[i] = orig - h
		down := f()
		x[i] = orig
		out[i] = (up - down) / (2 * h)
	}
	return out
}
