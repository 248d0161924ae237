// Package maxpool2d implements 2D max pooling over channels-last inputs.
package maxpool2d

import (
	"math"
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Kind is the runtime kind id.
const Kind = "maxpool2d"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params defines the arguments of a pooling layer. Zero strides default to
// the pool size.
type Params struct {
	PoolSize []int  `cty:"pool_size"`
	Strides  []int  `cty:"strides"`
	Padding  string `cty:"padding"`
}

type Layer struct {
	name    string
	ph, pw  int
	sh, sw  int
	padding string

	h, w, c    int
	oh, ow     int
	padT, padL int

	inShape []int
	argmax  []int
}

// New validates p and returns an unbuilt layer.
func New(name string, p Params) (*Layer, error) {
	if len(p.PoolSize) != 2 || p.PoolSize[0] <= 0 || p.PoolSize[1] <= 0 {
		return nil, &registry.ParamError{Param: "pool_size", Value: p.PoolSize, Reason: "must be two positive integers"}
	}
	strides := p.Strides
	if len(strides) != 2 {
		return nil, &registry.ParamError{Param: "strides", Value: p.Strides, Reason: "must be two integers"}
	}
	if strides[0] == 0 && strides[1] == 0 {
		strides = p.PoolSize
	}
	if strides[0] <= 0 || strides[1] <= 0 {
		return nil, &registry.ParamError{Param: "strides", Value: p.Strides, Reason: "must be positive"}
	}
	padding, err := nn.ParsePadding(p.Padding)
	if err != nil {
		return nil, &registry.ParamError{Param: "padding", Value: p.Padding, Reason: err.Error()}
	}
	return &Layer{
		name: name, ph: p.PoolSize[0], pw: p.PoolSize[1],
		sh: strides[0], sw: strides[1], padding: padding,
	}, nil
}

func (l *Layer) Name() string        { return l.name }
func (l *Layer) ClassName() string   { return "MaxPooling2D" }
func (l *Layer) Params() []*nn.Param { return nil }

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	in, err := nn.RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	if len(in) != 3 {
		return nil, nn.ShapeErrorf(l.name, "expected input of shape (height, width, channels), got %s", tensor.ShapeString(in))
	}
	l.h, l.w, l.c = in[0], in[1], in[2]
	l.oh, l.padT = nn.WindowOutput(l.h, l.ph, l.sh, l.padding)
	l.ow, l.padL = nn.WindowOutput(l.w, l.pw, l.sw, l.padding)
	if l.oh <= 0 || l.ow <= 0 {
		return nil, nn.ShapeErrorf(l.name, "pool %dx%d does not fit input %s", l.ph, l.pw, tensor.ShapeString(in))
	}
	return []int{l.oh, l.ow, l.c}, nil
}

func (l *Layer) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	x := inputs[0]
	batch := x.Rows()
	out := tensor.New(batch, l.oh, l.ow, l.c)
	argmax := make([]int, out.Len())

	nn.ForChunks(batch, func(lo, hi int) {
		for b := lo; b < hi; b++ {
			for oy := 0; oy < l.oh; oy++ {
				for ox := 0; ox < l.ow; ox++ {
					for c := 0; c < l.c; c++ {
						best, at := math.Inf(-1), -1
						for py := 0; py < l.ph; py++ {
							iy := oy*l.sh + py - l.padT
							if iy < 0 || iy >= l.h {
								continue
							}
							for px := 0; px < l.pw; px++ {
								ix := ox*l.sw + px - l.padL
								if ix < 0 || ix >= l.w {
									continue
								}
								idx := ((b*l.h+iy)*l.w+ix)*l.c + c
								if v := x.Data[idx]; at < 0 || v > best {
									best, at = v, idx
								}
							}
						}
						o := ((b*l.oh+oy)*l.ow+ox)*l.c + c
						out.Data[o] = best
						argmax[o] = at
					}
				}
			}
		}
	})

	l.inShape = append([]int(nil), x.Shape...)
	l.argmax = argmax
	return out, nil
}

func (l *Layer) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	dx := tensor.New(l.inShape...)
	for o, g := range grad.Data {
		if at := l.argmax[o]; at >= 0 {
			dx.Data[at] += g
		}
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
