// Package tensor implements dense row-major float64 tensors. The first axis
// is always the batch axis.
package tensor

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTooLarge is returned by CheckedSize for shapes above its limit.
var ErrTooLarge = errors.New("tensor too large")

// Tensor is a dense n-dimensional array stored in row-major order.
type Tensor struct {
	Shape []int
	Data  []float64
}

// New allocates a zeroed tensor of the given shape.
func New(shape ...int) *Tensor {
	return &Tensor{Shape: append([]int(nil), shape...), Data: make([]float64, Size(shape))}
}

// FromData wraps data without copying. It panics if the length does not
// match the shape.
func FromData(shape []int, data []float64) *Tensor {
	if Size(shape) != len(data) {
		panic(fmt.Sprintf("tensor: shape %v needs %d values, got %d", shape, Size(shape), len(data)))
	}
	return &Tensor{Shape: append([]int(nil), shape...), Data: data}
}

// Size is the number of elements of a tensor with the given shape.
func Size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// CheckedSize is Size for untrusted shapes. It fails, without overflowing,
// once the element count would pass limit.
func CheckedSize(shape []int, limit int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension in shape %s", ShapeString(shape))
		}
		if d != 0 && n > limit/d {
			return 0, fmt.Errorf("%w: shape %s has more than %d elements", ErrTooLarge, ShapeString(shape), limit)
		}
		n *= d
	}
	return n, nil
}

// Len returns the total element count.
func (t *Tensor) Len() int { return len(t.Data) }

// Rows returns the size of the batch axis.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// RowSize is the number of elements per batch entry.
func (t *Tensor) RowSize() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return Size(t.Shape[1:])
}

// Row returns a view of batch entry i.
func (t *Tensor) Row(i int) []float64 {
	n := t.RowSize()
	return t.Data[i*n : (i+1)*n]
}

// SampleShape is the shape without the batch axis.
func (t *Tensor) SampleShape() []int {
	if len(t.Shape) == 0 {
		return nil
	}
	return append([]int(nil), t.Shape[1:]...)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{Shape: append([]int(nil), t.Shape...), Data: append([]float64(nil), t.Data...)}
}

// Reshape returns a view sharing t's data with a new shape.
func (t *Tensor) Reshape(shape ...int) *Tensor {
	return FromData(shape, t.Data)
}

// Gather builds a new tensor from the batch entries at idx, in order.
func (t *Tensor) Gather(idx []int) *Tensor {
	n := t.RowSize()
	out := New(append([]int{len(idx)}, t.Shape[1:]...)...)
	for i, j := range idx {
		copy(out.Data[i*n:(i+1)*n], t.Data[j*n:(j+1)*n])
	}
	return out
}

// AddInPlace adds o into t element-wise. Shapes must match in size.
func (t *Tensor) AddInPlace(o *Tensor) {
	if len(t.Data) != len(o.Data) {
		panic(fmt.Sprintf("tensor: add size mismatch %v vs %v", t.Shape, o.Shape))
	}
	for i, v := range o.Data {
		t.Data[i] += v
	}
}

// Zero resets every element to 0.
func (t *Tensor) Zero() {
	clear(t.Data)
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%s", ShapeString(t.Shape))
}

// ShapeString renders a sample shape the way model summaries show it,
// with the batch axis as None: (None, 28, 28, 1).
func ShapeString(sample []int) string {
	parts := make([]string, 0, len(sample)+1)
	parts = append(parts, "None")
	for _, d := range sample {
		parts = append(parts, fmt.Sprint(d))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// TupleString renders a sample shape without a batch axis: (4,) or (28, 28, 1).
func TupleString(sample []int) string {
	if len(sample) == 1 {
		return fmt.Sprintf("(%d,)", sample[0])
	}
	parts := make([]string, len(sample))
	for i, d := range sample {
		parts[i] = fmt.Sprint(d)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// EqualShape reports whether two shapes are identical.
func EqualShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
