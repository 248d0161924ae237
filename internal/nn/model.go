package nn

import (
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/tensor"
)

type node struct {
	layer   Layer
	inbound []int
	shape   []int
	input   bool

	out  *tensor.Tensor
	grad *tensor.Tensor
}

// Model is a DAG of layers executed in insertion order.
type Model struct {
	nodes   []*node
	byName  map[string]int
	inputs  []int
	outputs []int
	// params counts the weights added so far; maxParams overrides MaxParams.
	params    int
	maxParams int

	loss      Loss
	optimizer Optimizer
	metrics   []Metric
}

// NewModel returns an empty model; layers are appended with AddInput and Add.
func NewModel() *Model {
	return &Model{byName: make(map[string]int)}
}

// AddInput appends an input layer and returns its sample shape.
func (m *Model) AddInput(l Layer) ([]int, error) {
	shape, err := m.add(l, nil)
	if err != nil {
		return nil, err
	}
	idx := len(m.nodes) - 1
	m.nodes[idx].input = true
	m.inputs = append(m.inputs, idx)
	return shape, nil
}

// Add appends a layer fed by the named, already added layers and returns
// the layer's output sample shape.
func (m *Model) Add(l Layer, inbound ...string) ([]int, error) {
	if len(inbound) == 0 {
		return nil, fmt.Errorf("layer %q has no inbound layers", l.Name())
	}
	idx := make([]int, len(inbound))
	for i, name := range inbound {
		j, ok := m.byName[name]
		if !ok {
			return nil, fmt.Errorf("layer %q: inbound layer %q not found", l.Name(), name)
		}
		idx[i] = j
	}
	return m.add(l, idx)
}

func (m *Model) add(l Layer, inbound []int) ([]int, error) {
	if _, dup := m.byName[l.Name()]; dup {
		return nil, fmt.Errorf("duplicate layer name %q", l.Name())
	}
	shapes := make([][]int, len(inbound))
	for i, j := range inbound {
		shapes[i] = m.nodes[j].shape
	}
	shape, err := l.Build(shapes)
	if err != nil {
		return nil, err
	}
	if _, err := tensor.CheckedSize(shape, MaxSampleElements); err != nil {
		return nil, fmt.Errorf("layer %q: output: %w", l.Name(), err)
	}
	limit := m.maxParams
	if limit == 0 {
		limit = MaxParams
	}
	params := m.params + CountParams(l.Params())
	if params > limit {
		return nil, fmt.Errorf("layer %q: %w: the model would hold %d parameters, the limit is %d", l.Name(), ErrTooLarge, params, limit)
	}
	m.params = params
	m.byName[l.Name()] = len(m.nodes)
	m.nodes = append(m.nodes, &node{layer: l, inbound: inbound, shape: shape})
	return shape, nil
}

// SetOutputs declares the model outputs by layer name.
func (m *Model) SetOutputs(names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("model declares no outputs")
	}
	m.outputs = m.outputs[:0]
	for _, name := range names {
		j, ok := m.byName[name]
		if !ok {
			return fmt.Errorf("output layer %q not found", name)
		}
		m.outputs = append(m.outputs, j)
	}
	return nil
}

// Layers returns the layers in execution order.
func (m *Model) Layers() []Layer {
	out := make([]Layer, len(m.nodes))
	for i, n := range m.nodes {
		out[i] = n.layer
	}
	return out
}

// Inbound returns the names of the layers feeding name.
func (m *Model) Inbound(name string) []string {
	j, ok := m.byName[name]
	if !ok {
		return nil
	}
	names := make([]string, len(m.nodes[j].inbound))
	for i, k := range m.nodes[j].inbound {
		names[i] = m.nodes[k].layer.Name()
	}
	return names
}

// OutputShape returns the sample shape produced by the named layer.
func (m *Model) OutputShape(name string) []int {
	if j, ok := m.byName[name]; ok {
		return append([]int(nil), m.nodes[j].shape...)
	}
	return nil
}

func (m *Model) names(idx []int) []string {
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = m.nodes[j].layer.Name()
	}
	return out
}

func (m *Model) shapes(idx []int) [][]int {
	out := make([][]int, len(idx))
	for i, j := range idx {
		out[i] = append([]int(nil), m.nodes[j].shape...)
	}
	return out
}

func (m *Model) InputNames() []string  { return m.names(m.inputs) }
func (m *Model) OutputNames() []string { return m.names(m.outputs) }
func (m *Model) InputShapes() [][]int  { return m.shapes(m.inputs) }
func (m *Model) OutputShapes() [][]int { return m.shapes(m.outputs) }

// Params returns every trainable parameter in layer order.
func (m *Model) Params() []*Param {
	var ps []*Param
	for _, n := range m.nodes {
		ps = append(ps, n.layer.Params()...)
	}
	return ps
}

// Forward runs the model on one tensor per declared input.
func (m *Model) Forward(inputs []*tensor.Tensor, training bool) ([]*tensor.Tensor, error) {
	if len(inputs) != len(m.inputs) {
		return nil, fmt.Errorf("model has %d inputs, got %d tensors", len(m.inputs), len(inputs))
	}
	if len(m.outputs) == 0 {
		return nil, fmt.Errorf("model declares no outputs")
	}
	for _, n := range m.nodes {
		n.out = nil
	}
	for i, j := range m.inputs {
		n := m.nodes[j]
		out, err := n.layer.Forward([]*tensor.Tensor{inputs[i]}, training)
		if err != nil {
			return nil, err
		}
		n.out = out
	}
	for _, n := range m.nodes {
		if n.input {
			continue
		}
		ins := make([]*tensor.Tensor, len(n.inbound))
		for i, k := range n.inbound {
			ins[i] = m.nodes[k].out
		}
		out, err := n.layer.Forward(ins, training)
		if err != nil {
			return nil, err
		}
		n.out = out
	}
	outs := make([]*tensor.Tensor, len(m.outputs))
	for i, j := range m.outputs {
		outs[i] = m.nodes[j].out
	}
	return outs, nil
}

// Backward propagates one gradient per declared output through the graph
// recorded by the last Forward call. Fan-out gradients are summed.
func (m *Model) Backward(grads []*tensor.Tensor) error {
	if len(grads) != len(m.outputs) {
		return fmt.Errorf("model has %d outputs, got %d gradients", len(m.outputs), len(grads))
	}
	for _, n := range m.nodes {
		n.grad = nil
	}
	for i, j := range m.outputs {
		accumulate(m.nodes[j], grads[i])
	}
	for i := len(m.nodes) - 1; i >= 0; i-- {
		n := m.nodes[i]
		if n.grad == nil || n.input {
			continue
		}
		ins, err := n.layer.Backward(n.grad)
		if err != nil {
			return err
		}
		for k, src := range n.inbound {
			accumulate(m.nodes[src], ins[k])
		}
	}
	return nil
}

func accumulate(n *node, g *tensor.Tensor) {
	if n.grad == nil {
		n.grad = g.Clone()
		return
	}
	n.grad.AddInPlace(g)
}

// SplitInputs turns a flat (batch, features) tensor into one tensor per
// declared input. With a single input the features are reshaped to the input
// shape; with several, consecutive feature columns are assigned to each
// input in declaration order.
func (m *Model) SplitInputs(x *tensor.Tensor) ([]*tensor.Tensor, error) {
	shapes := m.InputShapes()
	batch := x.Rows()
	if len(shapes) == 1 {
		if x.RowSize() != tensor.Size(shapes[0]) {
			return nil, fmt.Errorf("input %q expects shape %s (%d values per sample), dataset provides %d",
				m.InputNames()[0], tensor.TupleString(shapes[0]), tensor.Size(shapes[0]), x.RowSize())
		}
		return []*tensor.Tensor{x.Reshape(append([]int{batch}, shapes[0]...)...)}, nil
	}

	total := 0
	for _, s := range shapes {
		total += tensor.Size(s)
	}
	if total != x.RowSize() {
		return nil, fmt.Errorf("model inputs take %d values per sample in total, dataset provides %d", total, x.RowSize())
	}
	outs := make([]*tensor.Tensor, len(shapes))
	off := 0
	for i, s := range shapes {
		w := tensor.Size(s)
		t := tensor.New(append([]int{batch}, s...)...)
		for b := 0; b < batch; b++ {
			copy(t.Data[b*w:(b+1)*w], x.Row(b)[off:off+w])
		}
		outs[i] = t
		off += w
	}
	return outs, nil
}
