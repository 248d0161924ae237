package registry

import (
	"errors"
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(typ, displayName string, params map[string]any) model.GraphNode {
	n := model.GraphNode{ID: "n1", Type: typ, Data: model.NodeData{Params: params}}
	if displayName != "" {
		n.Data.Registry = &model.NodeRegistryRef{DisplayName: displayName}
	}
	return n
}

func TestResolveNode(t *testing.T) {
	r := mustTestRegistry(t)

	tests := []struct {
		name       string
		node       model.GraphNode
		wantName   string
		wantLegacy bool
		wantErr    string
	}{
		{name: "explicit display name", node: node("whatever", "Dense", nil), wantName: "Dense"},
		{name: "explicit display name is trimmed", node: node("", "  Conv2D ", nil), wantName: "Conv2D"},
		{name: "type tag naming an entry", node: node("Dense", "", nil), wantName: "Dense"},
		{name: "legacy type tag", node: node("customdense", "", nil), wantName: "Dense", wantLegacy: true},
		{name: "legacy input", node: node(LegacyInputType, "", nil), wantName: "Input", wantLegacy: true},
		{name: "blank display name falls back to type", node: node("customconv", " ", nil), wantName: "Conv2D", wantLegacy: true},
		{
			name:    "explicit display name never uses legacy table",
			node:    node("customdense", "customdense", nil),
			wantErr: "unknown or untrusted layer type 'customdense'",
		},
		{name: "unknown type", node: node("os.system", "", nil), wantErr: "unknown or untrusted layer type 'os.system'"},
		{name: "case sensitive", node: node("dense", "", nil), wantErr: "unknown or untrusted layer type 'dense'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.ResolveNode(tt.node)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.True(t, errors.Is(err, ErrUnknownLayer))
				var ule *UnknownLayerError
				require.ErrorAs(t, err, &ule)
				assert.Equal(t, []string{"Conv2D", "Dense", "Input"}, ule.Valid)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, res.Entry.DisplayName)
			assert.Equal(t, tt.wantLegacy, res.Legacy)
		})
	}

	t.Run("entry kind helpers", func(t *testing.T) {
		res, err := r.ResolveNode(node("Input", "", nil))
		require.NoError(t, err)
		assert.True(t, res.Entry.IsInput())
	})
}

func TestLegacyConvParams(t *testing.T) {
	r := mustTestRegistry(t)
	raw := map[string]any{"filter": 8.0, "kernelX": 5.0, "kernelY": 3.0, "strideX": 2.0}

	res, err := r.ResolveNode(node("customconv", "", raw))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"filters": 8.0, "kernel_size": "5,3", "strides": 2.0}, res.Params)
	assert.Len(t, raw, 4, "caller's params are not modified")

	layer, _, err := r.Instantiate(res.Entry, "conv", res.Params)
	require.NoError(t, err)
	p := layer.(*stubLayer).params.(*convParams)
	assert.Equal(t, convParams{Filters: 8, KernelSize: []int{5, 3}, Strides: []int{2, 2}}, *p)
}

func TestResolve(t *testing.T) {
	r := mustTestRegistry(t)

	e, err := r.Resolve("customflatten")
	assert.Nil(t, e)
	var ule *UnknownLayerError
	require.ErrorAs(t, err, &ule, "legacy names only resolve when their target entry is loaded")

	e, err = r.Resolve("customdropout")
	require.Error(t, err)
	assert.Nil(t, e)

	e, err = r.Resolve("Input")
	require.NoError(t, err)
	assert.Equal(t, InputKind, e.Kind)
}
