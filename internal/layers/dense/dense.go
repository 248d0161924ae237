// Package dense implements the fully connected layer.
package dense

import (
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Kind is the runtime kind id.
const Kind = "dense"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params defines the arguments of a dense layer.
type Params struct {
	Units      int    `cty:"units"`
	Activation string `cty:"activation"`
	UseBias    bool   `cty:"use_bias"`
}

// Layer computes act(x·W + b).
type Layer struct {
	name    string
	units   int
	act     nn.Activation
	useBias bool

	w, b *nn.Param
	in   int

	x, z, y *tensor.Tensor
}

// New validates p and returns an unbuilt layer.
func New(name string, p Params) (*Layer, error) {
	if p.Units <= 0 {
		return nil, &registry.ParamError{Param: "units", Value: p.Units, Reason: "must be a positive integer"}
	}
	act, err := nn.ActivationByName(p.Activation)
	if err != nil {
		return nil, &registry.ParamError{Param: "activation", Value: p.Activation, Reason: err.Error()}
	}
	return &Layer{name: name, units: p.Units, act: act, useBias: p.UseBias}, nil
}

func (l *Layer) Name() string      { return l.name }
func (l *Layer) ClassName() string { return "Dense" }

func (l *Layer) Params() []*nn.Param {
	if l.w == nil {
		return nil
	}
	if l.useBias {
		return []*nn.Param{l.w, l.b}
	}
	return []*nn.Param{l.w}
}

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	in, err := nn.RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	if len(in) != 1 {
		return nil, nn.ShapeErrorf(l.name, "expected a rank-1 input, got %s", tensor.ShapeString(in))
	}
	l.in = in[0]
	if l.w, err = nn.NewParam(l.name+"/kernel", l.in, l.units); err != nil {
		return nil, err
	}
	nn.GlorotUniform(nn.Rand(l.name), l.w.Value, l.in, l.units)
	if l.useBias {
		if l.b, err = nn.NewParam(l.name+"/bias", l.units); err != nil {
			return nil, err
		}
	}
	return []int{l.units}, nil
}

func (l *Layer) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	x := inputs[0]
	if x.RowSize() != l.in {
		return nil, nn.ShapeErrorf(l.name, "expected %d features, got %d", l.in, x.RowSize())
	}
	batch := x.Rows()
	z := tensor.New(batch, l.units)
	w := l.w.Value.Data
	nn.ForChunks(batch, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			xr, zr := x.Row(r), z.Row(r)
			if l.useBias {
				copy(zr, l.b.Value.Data)
			}
			for i, xv := range xr {
				if xv == 0 {
					continue
				}
				wi := w[i*l.units : (i+1)*l.units]
				for j, wv := range wi {
					zr[j] += xv * wv
				}
			}
		}
	})
	l.x, l.z = x, z
	l.y = nn.Activate(l.act, z)
	return l.y, nil
}

func (l *Layer) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	dz := nn.Deactivate(l.act, l.z, l.y, grad)
	batch := dz.Rows()
	w, dw := l.w.Value.Data, l.w.Grad.Data

	nn.ForChunks(l.in, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			row := dw[i*l.units : (i+1)*l.units]
			clear(row)
			for b := 0; b < batch; b++ {
				xv := l.x.Row(b)[i]
				if xv == 0 {
					continue
				}
				for j, d := range dz.Row(b) {
					row[j] += xv * d
				}
			}
		}
	})
	if l.useBias {
		db := l.b.Grad.Data
		clear(db)
		for b := 0; b < batch; b++ {
			for j, d := range dz.Row(b) {
				db[j] += d
			}
		}
	}

	dx := tensor.New(batch, l.in)
	nn.ForChunks(batch, func(lo, hi int) {
		for b := lo; b < hi; b++ {
			dzr, dxr := dz.Row(b), dx.Row(b)
			for i := range dxr {
				wi := w[i*l.units : (i+1)*l.units]
				var s float64
				for j, d := range dzr {
					s += d * wi[j]
				}
				dxr[i] = s
			}
		}
	})
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
