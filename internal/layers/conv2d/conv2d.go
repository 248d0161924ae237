// Package conv2d implements 2D convolution over channels-last inputs.
package conv2d

import (
	"reflect"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Kind is the runtime kind id.
const Kind = "conv2d"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params defines the arguments of a convolution layer.
type Params struct {
	Filters    int    `cty:"filters"`
	KernelSize []int  `cty:"kernel_size"`
	Strides    []int  `cty:"strides"`
	Padding    string `cty:"padding"`
	Activation string `cty:"activation"`
}

// Layer convolves (H, W, C) samples with F kernels of size (kh, kw).
// The kernel is laid out as [kh, kw, C, F].
type Layer struct {
	name    string
	filters int
	kh, kw  int
	sh, sw  int
	padding string
	act     nn.Activation

	h, w, c      int
	oh, ow       int
	padT, padL   int
	kernel, bias *nn.Param

	x, z, y *tensor.Tensor
}

// New validates p and returns an unbuilt layer.
func New(name string, p Params) (*Layer, error) {
	if p.Filters <= 0 {
		return nil, &registry.ParamError{Param: "filters", Value: p.Filters, Reason: "must be a positive integer"}
	}
	if err := positivePair("kernel_size", p.KernelSize); err != nil {
		return nil, err
	}
	if err := positivePair("strides", p.Strides); err != nil {
		return nil, err
	}
	padding, err := nn.ParsePadding(p.Padding)
	if err != nil {
		return nil, &registry.ParamError{Param: "padding", Value: p.Padding, Reason: err.Error()}
	}
	act, err := nn.ActivationByName(p.Activation)
	if err != nil {
		return nil, &registry.ParamError{Param: "activation", Value: p.Activation, Reason: err.Error()}
	}
	return &Layer{
		name: name, filters: p.Filters,
		kh: p.KernelSize[0], kw: p.KernelSize[1],
		sh: p.Strides[0], sw: p.Strides[1],
		padding: padding, act: act,
	}, nil
}

func positivePair(param string, v []int) error {
	if len(v) != 2 || v[0] <= 0 || v[1] <= 0 {
		return &registry.ParamError{Param: param, Value: v, Reason: "must be two positive integers"}
	}
	return nil
}

func (l *Layer) Name() string      { return l.name }
func (l *Layer) ClassName() string { return "Conv2D" }

func (l *Layer) Params() []*nn.Param {
	if l.kernel == nil {
		return nil
	}
	return []*nn.Param{l.kernel, l.bias}
}

func (l *Layer) Build(inputs [][]int) ([]int, error) {
	in, err := nn.RequireSingleInput(l.name, inputs)
	if err != nil {
		return nil, err
	}
	if len(in) != 3 {
		return nil, nn.ShapeErrorf(l.name, "expected input of shape (height, width, channels), got %s", tensor.ShapeString(in))
	}
	l.h, l.w, l.c = in[0], in[1], in[2]
	l.oh, l.padT = nn.WindowOutput(l.h, l.kh, l.sh, l.padding)
	l.ow, l.padL = nn.WindowOutput(l.w, l.kw, l.sw, l.padding)
	if l.oh <= 0 || l.ow <= 0 {
		return nil, nn.ShapeErrorf(l.name, "kernel %dx%d does not fit input %s", l.kh, l.kw, tensor.ShapeString(in))
	}

	if l.kernel, err = nn.NewParam(l.name+"/kernel", l.kh, l.kw, l.c, l.filters); err != nil {
		return nil, err
	}
	nn.GlorotUniform(nn.Rand(l.name), l.kernel.Value, l.kh*l.kw*l.c, l.kh*l.kw*l.filters)
	if l.bias, err = nn.NewParam(l.name+"/bias", l.filters); err != nil {
		return nil, err
	}
	return []int{l.oh, l.ow, l.filters}, nil
}

// at returns the flat offset of x[b, iy, ix, 0], or -1 when (iy, ix) lies
// in the padding.
func (l *Layer) at(b, oy, ox, ky, kx int) int {
	iy := oy*l.sh + ky - l.padT
	ix := ox*l.sw + kx - l.padL
	if iy < 0 || iy >= l.h || ix < 0 || ix >= l.w {
		return -1
	}
	return ((b*l.h+iy)*l.w + ix) * l.c
}

func (l *Layer) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	x := inputs[0]
	if !tensor.EqualShape(x.SampleShape(), []int{l.h, l.w, l.c}) {
		return nil, nn.ShapeErrorf(l.name, "expected samples of shape %s, got %s",
			tensor.ShapeString([]int{l.h, l.w, l.c}), tensor.ShapeString(x.SampleShape()))
	}
	batch, f := x.Rows(), l.filters
	z := tensor.New(batch, l.oh, l.ow, f)
	k := l.kernel.Value.Data

	nn.ForChunks(batch, func(lo, hi int) {
		for b := lo; b < hi; b++ {
			for oy := 0; oy < l.oh; oy++ {
				for ox := 0; ox < l.ow; ox++ {
					out := z.Data[((b*l.oh+oy)*l.ow+ox)*f:][:f]
					copy(out, l.bias.Value.Data)
					for ky := 0; ky < l.kh; ky++ {
						for kx := 0; kx < l.kw; kx++ {
							off := l.at(b, oy, ox, ky, kx)
							if off < 0 {
								continue
							}
							for c := 0; c < l.c; c++ {
								xv := x.Data[off+c]
								kw := k[((ky*l.kw+kx)*l.c+c)*f:][:f]
								for j := range out {
									out[j] += xv * kw[j]
								}
							}
						}
					}
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
	batch, f := dz.Rows(), l.filters
	k, dk := l.kernel.Value.Data, l.kernel.Grad.Data

	// Kernel gradient: every (ky, kx, c) row is owned by one worker.
	nn.ForChunks(l.kh*l.kw*l.c, func(lo, hi int) {
		for kc := lo; kc < hi; kc++ {
			ky, kx, c := kc/(l.kw*l.c), (kc/l.c)%l.kw, kc%l.c
			row := dk[kc*f:][:f]
			clear(row)
			for b := 0; b < batch; b++ {
				for oy := 0; oy < l.oh; oy++ {
					for ox := 0; ox < l.ow; ox++ {
						off := l.at(b, oy, ox, ky, kx)
						if off < 0 {
							continue
						}
						xv := l.x.Data[off+c]
						g := dz.Data[((b*l.oh+oy)*l.ow+ox)*f:][:f]
						for j := range row {
							row[j] += xv * g[j]
						}
					}
				}
			}
		}
	})

	db := l.bias.Grad.Data
	clear(db)
	for i := 0; i < len(dz.Data); i += f {
		for j := 0; j < f; j++ {
			db[j] += dz.Data[i+j]
		}
	}

	dx := tensor.New(l.x.Shape...)
	nn.ForChunks(batch, func(lo, hi int) {
		for b := lo; b < hi; b++ {
			for oy := 0; oy < l.oh; oy++ {
				for ox := 0; ox < l.ow; ox++ {
					g := dz.Data[((b*l.oh+oy)*l.ow+ox)*f:][:f]
					for ky := 0; ky < l.kh; ky++ {
						for kx := 0; kx < l.kw; kx++ {
							off := l.at(b, oy, ox, ky, kx)
							if off < 0 {
								continue
							}
							for c := 0; c < l.c; c++ {
								kw := k[((ky*l.kw+kx)*l.c+c)*f:][:f]
								var s float64
								for j, gv := range g {
									s += gv * kw[j]
								}
								dx.Data[off+c] += s
							}
						}
					}
				}
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
