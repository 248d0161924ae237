package nn

import (
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// ErrShape is wrapped by every shape error raised while building a layer.
var ErrShape = errors.New("incompatible shape")

// ErrTooLarge is wrapped when a layer or model passes a size limit.
var ErrTooLarge = tensor.ErrTooLarge

const (
	// MaxParams caps the trainable weights of a model, and so of any
	// single parameter.
	MaxParams = 1 << 24
	// MaxSampleElements caps the per-sample output of any layer.
	MaxSampleElements = 1 << 24
)

// Layer is a single runtime layer. Layers cache what they need from the last
// Forward call to compute Backward.
type Layer interface {
	Name() string
	ClassName() string
	// Build receives the sample shapes (no batch axis) of every inbound
	// tensor and returns the layer's output sample shape.
	Build(inputs [][]int) ([]int, error)
	Forward(inputs []*tensor.Tensor, training bool) (*tensor.Tensor, error)
	// Backward takes dL/dout and returns dL/din for each inbound tensor.
	// Parameter gradients are written into Params()[i].Grad.
	Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error)
	Params() []*Param
}

// Param is a trainable weight with its gradient buffer.
type Param struct {
	Name  string
	Value *tensor.Tensor
	Grad  *tensor.Tensor
}

// NewParam allocates a zeroed parameter. Shapes holding more than
// MaxParams elements fail with ErrTooLarge before anything is allocated.
func NewParam(name string, shape ...int) (*Param, error) {
	if _, err := tensor.CheckedSize(shape, MaxParams); err != nil {
		return nil, fmt.Errorf("parameter %q: %w", name, err)
	}
	return &Param{Name: name, Value: tensor.New(shape...), Grad: tensor.New(shape...)}, nil
}

// CountParams sums the element counts of ps.
func CountParams(ps []*Param) int {
	n := 0
	for _, p := range ps {
		n += p.Value.Len()
	}
	return n
}

// ShapeErrorf builds an error wrapping ErrShape for the named layer.
func ShapeErrorf(layer, format string, args ...any) error {
	return fmt.Errorf("layer %q: %w: %s", layer, ErrShape, fmt.Sprintf(format, args...))
}

// RequireSingleInput is the Build-time check shared by single-input layers.
func RequireSingleInput(layer string, inputs [][]int) ([]int, error) {
	if len(inputs) != 1 {
		return nil, ShapeErrorf(layer, "expected exactly 1 input, got %d", len(inputs))
	}
	return inputs[0], nil
}

// Rand returns a generator seeded from the layer name, so weights are
// reproducible for a given graph.
func Rand(layer string) *rand.Rand {
	h := fnv.New64a()
	_, _ = h.Write([]byte(layer))
	return rand.New(rand.NewSource(int64(h.Sum64())))
}

// GlorotUniform fills p with samples from U(-l, l), l = sqrt(6/(fanIn+fanOut)).
func GlorotUniform(r *rand.Rand, p *tensor.Tensor, fanIn, fanOut int) {
	limit := math.Sqrt(6 / float64(fanIn+fanOut))
	for i := range p.Data {
		p.Data[i] = (r.Float64()*2 - 1) * limit
	}
}
