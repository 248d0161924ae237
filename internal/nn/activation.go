package nn

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// Activation operates on one vector along the last axis.
type Activation interface {
	Name() string
	Apply(z, y []float64)
	// Derive writes dL/dz given the pre-activation z, the output y and dL/dy.
	Derive(z, y, g, dz []float64)
}

var activations = map[string]Activation{
	"linear":  linear{},
	"relu":    relu{},
	"sigmoid": sigmoid{},
	"tanh":    tanhAct{},
	"softmax": softmax{},
}

// ActivationByName resolves an activation id. Empty and "none" mean linear.
func ActivationByName(name string) (Activation, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || key == "none" {
		key = "linear"
	}
	if a, ok := activations[key]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("unknown activation %q (valid: %s)", name, strings.Join(ActivationNames(), ", "))
}

// ActivationNames lists the supported ids.
func ActivationNames() []string {
	names := make([]string, 0, len(activations))
	for k := range activations {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Activate applies a to every last-axis vector of z.
func Activate(a Activation, z *tensor.Tensor) *tensor.Tensor {
	y := tensor.New(z.Shape...)
	n := z.Shape[len(z.Shape)-1]
	for off := 0; off < len(z.Data); off += n {
		a.Apply(z.Data[off:off+n], y.Data[off:off+n])
	}
	return y
}

// Deactivate back-propagates g through a.
func Deactivate(a Activation, z, y, g *tensor.Tensor) *tensor.Tensor {
	dz := tensor.New(z.Shape...)
	n := z.Shape[len(z.Shape)-1]
	for off := 0; off < len(z.Data); off += n {
		a.Derive(z.Data[off:off+n], y.Data[off:off+n], g.Data[off:off+n], dz.Data[off:off+n])
	}
	return dz
}

type linear struct{}

func (linear) Name() string                 { return "linear" }
func (linear) Apply(z, y []float64)         { copy(y, z) }
func (linear) Derive(_, _, g, dz []float64) { copy(dz, g) }

type relu struct{}

func (relu) Name() string { return "relu" }

func (relu) Apply(z, y []float64) {
	for i, v := range z {
		y[i] = math.Max(0, v)
	}
}

func (relu) Derive(z, _, g, dz []float64) {
	for i, v := range z {
		if v > 0 {
			dz[i] = g[i]
		} else {
			dz[i] = 0
		}
	}
}

type sigmoid struct{}

func (sigmoid) Name() string { return "sigmoid" }

func (sigmoid) Apply(z, y []float64) {
	for i, v := range z {
		y[i] = 1 / (1 + math.Exp(-v))
	}
}

func (sigmoid) Derive(_, y, g, dz []float64) {
	for i, s := range y {
		dz[i] = g[i] * s * (1 - s)
	}
}

type tanhAct struct{}

func (tanhAct) Name() string { return "tanh" }

func (tanhAct) Apply(z, y []float64) {
	for i, v := range z {
		y[i] = math.Tanh(v)
	}
}

func (tanhAct) Derive(_, y, g, dz []float64) {
	for i, t := range y {
		dz[i] = g[i] * (1 - t*t)
	}
}

type softmax struct{}

func (softmax) Name() string { return "softmax" }

func (softmax) Apply(z, y []float64) {
	softmaxInto(z, y)
}

func (softmax) Derive(_, y, g, dz []float64) {
	var dot float64
	for i := range y {
		dot += g[i] * y[i]
	}
	for i := range y {
		dz[i] = y[i] * (g[i] - dot)
	}
}

// softmaxInto is a numerically stable softmax of z into y.
func softmaxInto(z, y []float64) {
	maxV := math.Inf(-1)
	for _, v := range z {
		maxV = math.Max(maxV, v)
	}
	var sum float64
	for i, v := range z {
		y[i] = math.Exp(v - maxV)
		sum += y[i]
	}
	for i := range y {
		y[i] /= sum
	}
}
