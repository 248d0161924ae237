package nn

import (
	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

// ConcatenateKind is the runtime kind id of the merge layer the compiler
// inserts in front of multi-input nodes. It is never client selectable.
const ConcatenateKind = "concatenate"

// Concatenate joins its inputs along the last axis.
type Concatenate struct {
	name   string
	widths []int
	out    []int
}

// NewConcatenate returns a last-axis merge layer.
func NewConcatenate(name string) *Concatenate {
	return &Concatenate{name: name}
}

func (c *Concatenate) Name() string      { return c.name }
func (c *Concatenate) ClassName() string { return "Concatenate" }
func (c *Concatenate) Params() []*Param  { return nil }

func (c *Concatenate) Build(inputs [][]int) ([]int, error) {
	if len(inputs) < 2 {
		return nil, ShapeErrorf(c.name, "concatenation needs at least 2 inputs, got %d", len(inputs))
	}
	first := inputs[0]
	if len(first) == 0 {
		return nil, ShapeErrorf(c.name, "cannot concatenate scalars")
	}
	widths := make([]int, len(inputs))
	total := 0
	for i, s := range inputs {
		if len(s) != len(first) || !tensor.EqualShape(s[:len(s)-1], first[:len(first)-1]) {
			return nil, ShapeErrorf(c.name, "inputs must match on all but the last axis, got %s and %s",
				tensor.ShapeString(first), tensor.ShapeString(s))
		}
		widths[i] = s[len(s)-1]
		total += widths[i]
	}
	out := append([]int(nil), first...)
	out[len(out)-1] = total
	c.widths, c.out = widths, out
	return append([]int(nil), out...), nil
}

func (c *Concatenate) Forward(inputs []*tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	if len(inputs) != len(c.widths) {
		return nil, ShapeErrorf(c.name, "expected %d inputs, got %d", len(c.widths), len(inputs))
	}
	batch := inputs[0].Rows()
	out := tensor.New(append([]int{batch}, c.out...)...)
	total := c.out[len(c.out)-1]
	vectors := tensor.Size(c.out) / total
	for b := 0; b < batch; b++ {
		for v := 0; v < vectors; v++ {
			dst := out.Data[(b*vectors+v)*total:]
			off := 0
			for i, in := range inputs {
				w := c.widths[i]
				copy(dst[off:off+w], in.Data[(b*vectors+v)*w:(b*vectors+v+1)*w])
				off += w
			}
		}
	}
	return out, nil
}

func (c *Concatenate) Backward(grad *tensor.Tensor) ([]*tensor.Tensor, error) {
	batch := grad.Rows()
	total := c.out[len(c.out)-1]
	vectors := tensor.Size(c.out) / total
	grads := make([]*tensor.Tensor, len(c.widths))
	for i, w := range c.widths {
		shape := append([]int{batch}, c.out...)
		shape[len(shape)-1] = w
		grads[i] = tensor.New(shape...)
	}
	for b := 0; b < batch; b++ {
		for v := 0; v < vectors; v++ {
			src := grad.Data[(b*vectors+v)*total:]
			off := 0
			for i, w := range c.widths {
				copy(grads[i].Data[(b*vectors+v)*w:(b*vectors+v+1)*w], src[off:off+w])
				off += w
			}
		}
	}
	return grads, nil
}
