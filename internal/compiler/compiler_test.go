package compiler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/layers"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := layers.NewRegistry(context.Background(), "")
	require.NoError(t, err)
	return reg
}

func layerNode(id, displayName string, params map[string]any) model.GraphNode {
	return model.GraphNode{
		ID:   id,
		Type: "genericLayer",
		Data: model.NodeData{Params: params, Registry: &model.NodeRegistryRef{DisplayName: displayName}},
	}
}

func inputNode(id string, dims ...any) model.GraphNode {
	params := map[string]any{}
	for i, d := range dims {
		params[[]string{"dim-1", "dim-2", "dim-3"}[i]] = d
	}
	return layerNode(id, "Input", params)
}

func edges(pairs ...string) []model.GraphEdge {
	out := make([]model.GraphEdge, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, model.GraphEdge{Source: pairs[i], Target: pairs[i+1]})
	}
	return out
}

func compile(t *testing.T, g model.ModelGraph) (*compiler.CompiledModel, error) {
	t.Helper()
	ctx, _ := testutil.LoggerContext(t)
	return compiler.Compile(ctx, "test", g, newRegistry(t))
}

func requireKind(t *testing.T, err error, kind compiler.Kind) *compiler.ValidationError {
	t.Helper()
	require.Error(t, err)
	var ve *compiler.ValidationError
	require.True(t, errors.As(err, &ve), "expected a ValidationError, got %T: %v", err, err)
	require.Equal(t, kind, ve.Kind, ve.Error())
	return ve
}

func TestCompileSimpleDense(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", "4"),
			layerNode("out", "Dense", map[string]any{"units": 3}),
		},
		Edges: edges("in", "out"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)

	assert.Len(t, cm.Spec.Layers, 2)
	assert.Equal(t, [][]int{{4}}, cm.Model.InputShapes())
	assert.Equal(t, [][]int{{3}}, cm.Model.OutputShapes())
	assert.Equal(t, []string{"in"}, cm.Spec.Inputs)
	assert.Equal(t, []string{"out"}, cm.Spec.Outputs)
	assert.Equal(t, 15, cm.Summary.TotalParams)
	assert.Equal(t, 15, cm.Summary.TrainableParams)
	assert.Zero(t, cm.Summary.NonTrainableParams)
	assert.Equal(t, "(None, 3)", cm.Summary.Layers[1].OutputShape)
}

func TestCompileMultipleOutputs(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("x", 5),
			layerNode("out1", "Dense", map[string]any{"units": 1}),
			layerNode("out2", "Dense", map[string]any{"units": 5}),
		},
		Edges: edges("x", "out1", "x", "out2"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)
	assert.Equal(t, []string{"out1", "out2"}, cm.Spec.Outputs)
	assert.Equal(t, [][]int{{1}, {5}}, cm.Model.OutputShapes())
}

func TestCompileConcatenatesMultipleInbound(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", 4),
			layerNode("a", "Dense", map[string]any{"units": 2}),
			layerNode("b", "Dense", map[string]any{"units": 3}),
			layerNode("out", "Dense", map[string]any{"units": 1}),
		},
		Edges: edges("in", "a", "in", "b", "b", "out", "a", "out"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)

	var names []string
	for _, l := range cm.Spec.Layers {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"in", "a", "b", "concat_out", "out"}, names)

	merge := cm.Spec.Layers[3]
	assert.Equal(t, nn.ConcatenateKind, merge.Kind)
	assert.Equal(t, []string{"b", "a"}, merge.Inbound, "edge order fixes concatenation order")
	assert.JSONEq(t, `{"axis":-1}`, string(merge.Config))
	assert.Equal(t, []int{5}, cm.Model.OutputShape("concat_out"))
	assert.Equal(t, []string{"concat_out"}, cm.Spec.Layers[4].Inbound)
}

func TestCompileConcatNameAvoidsCollisions(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", 4),
			layerNode("concat_out", "Dense", map[string]any{"units": 2}),
			layerNode("b", "Dense", map[string]any{"units": 2}),
			layerNode("out", "Dense", map[string]any{"units": 1}),
		},
		Edges: edges("in", "concat_out", "in", "b", "concat_out", "out", "b", "out"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, cm.Model.OutputShape("concat_out_1"))
}

func TestCompileShapeMismatchSuggestsFlatten(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", 28, 28, 1),
			layerNode("conv", "Conv2D", map[string]any{"filters": 8}),
			layerNode("out", "Dense", map[string]any{"units": 10}),
		},
		Edges: edges("in", "conv", "conv", "out"),
	}

	_, err := compile(t, g)
	ve := requireKind(t, err, compiler.KindShapeMismatch)
	assert.Equal(t, "out", ve.NodeID)
	assert.ErrorIs(t, err, compiler.ErrShapeMismatch)
	assert.ErrorIs(t, err, nn.ErrShape)
	assert.Contains(t, err.Error(), "Shape mismatch at node 'out'")
	assert.Contains(t, err.Error(), "add a Flatten layer in between")

	g.Nodes = append(g.Nodes, layerNode("flat", "Flatten", nil))
	g.Edges = edges("in", "conv", "conv", "flat", "flat", "out")
	cm, err := compile(t, g)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{10}}, cm.Model.OutputShapes())
}

func TestCompileLegacyGraph(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			{ID: "in", Type: "custominput", Data: model.NodeData{Params: map[string]any{"dim-1": "8", "dim-2": "", "dim-3": 0}}},
			{ID: "d", Type: "customdense", Data: model.NodeData{Params: map[string]any{"units": "2", "activation": "relu"}}},
		},
		Edges: edges("in", "d"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{8}}, cm.Model.InputShapes())
	assert.Equal(t, "dense", cm.Spec.Layers[1].Kind)
}

func TestCompileRejections(t *testing.T) {
	dense := func(id string) model.GraphNode { return layerNode(id, "Dense", map[string]any{"units": 2}) }

	testCases := []struct {
		name     string
		graph    model.ModelGraph
		kind     compiler.Kind
		sentinel error
		nodeID   string
		contains string
	}{
		{
			name:     "no input even with edges",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{dense("a"), dense("b")}, Edges: edges("a", "b", "x", "y")},
			kind:     compiler.KindNoInputLayer,
			sentinel: compiler.ErrNoInputLayer,
			contains: "No Input layer found. Please add an Input node to start the network.",
		},
		{
			name:     "duplicate node id",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2), dense("a"), dense("a")}},
			kind:     compiler.KindDuplicateNode,
			sentinel: compiler.ErrDuplicateNode,
			nodeID:   "a",
		},
		{
			name:     "untrusted display name",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2), layerNode("x", "os.system", nil)}, Edges: edges("in", "x")},
			kind:     compiler.KindUnknownLayer,
			sentinel: registry.ErrUnknownLayer,
			nodeID:   "x",
			contains: "Unknown or untrusted layer type 'os.system' for node 'x'",
		},
		{
			name:     "explicit legacy tag is not translated",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2), layerNode("x", "customdense", map[string]any{"units": 1})}, Edges: edges("in", "x")},
			kind:     compiler.KindUnknownLayer,
			sentinel: compiler.ErrUnknownLayer,
			nodeID:   "x",
		},
		{
			name:     "missing required parameter",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2), layerNode("d", "Dense", nil)}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidParameter,
			sentinel: compiler.ErrInvalidParameter,
			nodeID:   "d",
			contains: "units",
		},
		{
			name:     "non numeric parameter",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2), layerNode("d", "Dense", map[string]any{"units": "many"})}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidParameter,
			sentinel: compiler.ErrInvalidParameter,
			nodeID:   "d",
		},
		{
			name:     "input without dimensions",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", "", 0), dense("d")}, Edges: edges("in", "d")},
			kind:     compiler.KindMissingInput,
			sentinel: compiler.ErrMissingInput,
			nodeID:   "in",
		},
		{
			name:     "non integer dimension",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", "abc"), dense("d")}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidDimension,
			sentinel: compiler.ErrInvalidDimension,
			nodeID:   "in",
			contains: "dim-1",
		},
		{
			name:     "fractional dimension",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4, 2.5), dense("d")}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidDimension,
			sentinel: compiler.ErrInvalidDimension,
			contains: "dim-2",
		},
		{
			name:     "negative dimension",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", -3), dense("d")}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidDimension,
			sentinel: compiler.ErrInvalidDimension,
		},
		{
			name:     "input alone",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4)}},
			kind:     compiler.KindNoTransformation,
			sentinel: compiler.ErrNoTransformation,
			nodeID:   "in",
		},
		{
			name:     "edge to unknown node",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4), dense("d")}, Edges: edges("in", "d", "d", "ghost")},
			kind:     compiler.KindInvalidEdge,
			sentinel: compiler.ErrInvalidEdge,
			nodeID:   "ghost",
		},
		{
			name:     "self edge",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4), dense("d")}, Edges: edges("in", "d", "d", "d")},
			kind:     compiler.KindInvalidEdge,
			sentinel: compiler.ErrInvalidEdge,
			nodeID:   "d",
		},
		{
			name:     "edge into input",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4), dense("d")}, Edges: edges("in", "d", "d", "in")},
			kind:     compiler.KindInvalidEdge,
			sentinel: compiler.ErrInvalidEdge,
			nodeID:   "in",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := compile(t, tc.graph)
			ve := requireKind(t, err, tc.kind)
			assert.ErrorIs(t, err, tc.sentinel)
			if tc.nodeID != "" {
				assert.Equal(t, tc.nodeID, ve.NodeID)
			}
			if tc.contains != "" {
				assert.Contains(t, err.Error(), tc.contains)
			}
		})
	}
}

func TestCompileRejectsOversizedGraphs(t *testing.T) {
	dense := func(id string, units any) model.GraphNode { return layerNode(id, "Dense", map[string]any{"units": units}) }

	testCases := []struct {
		name     string
		graph    model.ModelGraph
		kind     compiler.Kind
		sentinel error
		nodeID   string
		contains string
	}{
		{
			name:     "input dimension above max",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", "2147483647"), dense("d", 1)}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidParameter,
			sentinel: registry.ErrInvalidParameter,
			nodeID:   "in",
			contains: "must be at most 4096",
		},
		{
			name:     "units above max",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4), dense("d", 2147483647)}, Edges: edges("in", "d")},
			kind:     compiler.KindInvalidParameter,
			sentinel: registry.ErrInvalidParameter,
			nodeID:   "d",
			contains: "must be at most 65536",
		},
		{
			name: "input sample too large",
			graph: model.ModelGraph{
				Nodes: []model.GraphNode{inputNode("in", 4096, 4096, 4096), layerNode("flat", "Flatten", nil), dense("d", 1)},
				Edges: edges("in", "flat", "flat", "d"),
			},
			kind:     compiler.KindModelTooLarge,
			sentinel: nn.ErrTooLarge,
			nodeID:   "in",
		},
		{
			name:     "kernel over the parameter budget",
			graph:    model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 4096), dense("d", 8192)}, Edges: edges("in", "d")},
			kind:     compiler.KindModelTooLarge,
			sentinel: compiler.ErrModelTooLarge,
			nodeID:   "d",
			contains: "Node 'd' makes the model too large",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() { _, err = compile(t, tc.graph) })
			ve := requireKind(t, err, tc.kind)
			assert.ErrorIs(t, err, tc.sentinel)
			assert.Equal(t, tc.nodeID, ve.NodeID)
			if tc.contains != "" {
				assert.Contains(t, err.Error(), tc.contains)
			}
		})
	}
}

func TestCompileUnknownLayerListsValidNames(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{inputNode("in", 2), layerNode("x", "Lambda", nil)},
		Edges: edges("in", "x"),
	}
	_, err := compile(t, g)
	ve := requireKind(t, err, compiler.KindUnknownLayer)
	assert.Equal(t, "Lambda", ve.Value)
	assert.Equal(t, []string{"Conv2D", "Dense", "Dropout", "Flatten", "Input", "MaxPooling2D"}, ve.Valid)
}

func TestCompileDisconnected(t *testing.T) {
	base := []model.GraphNode{
		inputNode("in", 4),
		layerNode("d", "Dense", map[string]any{"units": 2}),
		layerNode("x", "Dense", map[string]any{"units": 2}),
		layerNode("y", "Dense", map[string]any{"units": 2}),
		layerNode("z", "Flatten", nil),
	}

	t.Run("counts unreachable nodes", func(t *testing.T) {
		_, err := compile(t, model.ModelGraph{Nodes: base, Edges: edges("in", "d", "x", "y")})
		ve := requireKind(t, err, compiler.KindDisconnected)
		assert.Equal(t, 3, ve.Count)
		assert.Equal(t, "Disconnected graph: 3 node(s) are not connected to the Input layer. Please ensure all layers are linked.", err.Error())
	})

	t.Run("reports a cycle among unreachable nodes", func(t *testing.T) {
		_, err := compile(t, model.ModelGraph{Nodes: base, Edges: edges("in", "d", "d", "z", "x", "y", "y", "x")})
		ve := requireKind(t, err, compiler.KindDisconnected)
		assert.Equal(t, 2, ve.Count)
		assert.Contains(t, err.Error(), "contain a cycle")
	})

	t.Run("cycle fed by the input", func(t *testing.T) {
		_, err := compile(t, model.ModelGraph{Nodes: base[:4], Edges: edges("in", "d", "d", "x", "x", "y", "y", "x")})
		ve := requireKind(t, err, compiler.KindDisconnected)
		assert.Equal(t, 2, ve.Count)
	})
}

func TestCompileFiltersUnlistedParams(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", 4),
			layerNode("d", "Dense", map[string]any{"units": 3, "class_name": "os.system", "__import__": "subprocess"}),
		},
		Edges: edges("in", "d"),
	}

	cm, err := compile(t, g)
	require.NoError(t, err)
	assert.JSONEq(t, `{"units":3,"activation":"linear","use_bias":true}`, string(cm.Spec.Layers[1].Config))
}

func TestCompileIsDeterministic(t *testing.T) {
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("img", 8, 8, 1),
			inputNode("meta", 3),
			layerNode("conv", "Conv2D", map[string]any{"filters": 2, "kernel_size": "3,3", "padding": "same"}),
			layerNode("pool", "MaxPooling2D", nil),
			layerNode("flat", "Flatten", nil),
			layerNode("drop", "Dropout", map[string]any{"rate": 0.25}),
			layerNode("out", "Dense", map[string]any{"units": 4, "activation": "softmax"}),
		},
		Edges: edges("img", "conv", "conv", "pool", "pool", "flat", "flat", "drop", "drop", "out", "meta", "out"),
	}
	before, err := json.Marshal(g)
	require.NoError(t, err)

	first, err := compile(t, g)
	require.NoError(t, err)
	second, err := compile(t, g)
	require.NoError(t, err)

	if diff := cmp.Diff(first.Spec, second.Spec); diff != "" {
		t.Errorf("spec differs between compiles (-first +second):\n%s", diff)
	}
	a, _ := json.Marshal(first.Spec)
	b, _ := json.Marshal(second.Spec)
	assert.Equal(t, string(a), string(b))

	after, err := json.Marshal(g)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "compile must not mutate its input")

	assert.Equal(t, []string{"img", "meta"}, first.Spec.Inputs)
	assert.Equal(t, [][]int{{8, 8, 1}, {3}}, first.Model.InputShapes())
	// 4*4*2 pooled features plus 3 metadata features.
	assert.Equal(t, []int{35}, first.Model.OutputShape("concat_out"))
}

func TestCompiledSpecRebuilds(t *testing.T) {
	reg := newRegistry(t)
	g := model.ModelGraph{
		Nodes: []model.GraphNode{
			inputNode("in", 4),
			layerNode("a", "Dense", map[string]any{"units": 2}),
			layerNode("b", "Dense", map[string]any{"units": 3, "activation": "relu"}),
			layerNode("out", "Dense", map[string]any{"units": 1}),
		},
		Edges: edges("in", "a", "in", "b", "a", "out", "b", "out"),
	}
	cm, err := compiler.Compile(context.Background(), "rebuild", g, reg)
	require.NoError(t, err)

	m, err := nn.FromSpec(cm.Spec, reg)
	require.NoError(t, err)
	assert.Equal(t, cm.Model.InputShapes(), m.InputShapes())
	assert.Equal(t, cm.Model.OutputShapes(), m.OutputShapes())
	assert.Equal(t, nn.CountParams(cm.Model.Params()), nn.CountParams(m.Params()))
}

func TestCompileLogs(t *testing.T) {
	ctx, logs := testutil.LoggerContext(t)
	reg := newRegistry(t)

	_, err := compiler.Compile(ctx, "logged", model.ModelGraph{Nodes: []model.GraphNode{inputNode("in", 2)}}, reg)
	require.Error(t, err)
	assert.Contains(t, logs.String(), "Compile: Graph rejected.")
	assert.Contains(t, logs.String(), "kind=no_transformation")
}

func TestSummaryString(t *testing.T) {
	cm, err := compile(t, model.ModelGraph{
		Nodes: []model.GraphNode{inputNode("in", 4), layerNode("out", "Dense", map[string]any{"units": 3})},
		Edges: edges("in", "out"),
	})
	require.NoError(t, err)

	out := cm.Summary.String()
	assert.Contains(t, out, "out (Dense)")
	assert.Contains(t, out, "(None, 3)")
	assert.Contains(t, out, "Total params: 15")
}
