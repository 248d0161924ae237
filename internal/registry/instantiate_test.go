package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterDropsUnlistedParams(t *testing.T) {
	r := mustTestRegistry(t)
	dense, _ := r.Entry("Dense")

	raw := map[string]any{
		"units":       4.0,
		"__class__":   "os.system",
		"eval":        "import os",
		"kernel_size": "3,3",
	}
	layer, cfg, err := r.Instantiate(dense, "dense_1", raw)
	require.NoError(t, err)
	assert.Equal(t, "dense_1", layer.Name())
	assert.Equal(t, denseParams{Units: 4, Activation: "linear"}, *layer.(*stubLayer).params.(*denseParams))
	assert.JSONEq(t, `{"units":4,"activation":"linear"}`, string(cfg))
}

func TestFilter(t *testing.T) {
	r := mustTestRegistry(t)
	dense, _ := r.Entry("Dense")
	conv, _ := r.Entry("Conv2D")

	t.Run("blank values take defaults", func(t *testing.T) {
		layer, _, err := r.Instantiate(dense, "d", map[string]any{"units": "8", "activation": " "})
		require.NoError(t, err)
		assert.Equal(t, denseParams{Units: 8, Activation: "linear"}, *layer.(*stubLayer).params.(*denseParams))
	})

	t.Run("missing required", func(t *testing.T) {
		_, _, err := r.Instantiate(dense, "d", map[string]any{"activation": "relu"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidParameter))
		var pe *ParamError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "units", pe.Param)
		assert.Equal(t, "parameter 'units' is required", err.Error())
	})

	t.Run("unconvertible value", func(t *testing.T) {
		_, _, err := r.Instantiate(dense, "d", map[string]any{"units": "many"})
		var pe *ParamError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "units", pe.Param)
		assert.Equal(t, "many", pe.Value)
		assert.Contains(t, err.Error(), "expected number")
	})

	t.Run("non-scalar value", func(t *testing.T) {
		_, _, err := r.Instantiate(dense, "d", map[string]any{"units": map[string]any{"$gt": 1}})
		assert.ErrorContains(t, err, "expected a scalar value")
	})

	t.Run("value above max", func(t *testing.T) {
		for _, v := range []any{5000.0, "2147483647", json.Number("1e300")} {
			_, _, err := r.Instantiate(dense, "d", map[string]any{"units": v})
			var pe *ParamError
			require.ErrorAs(t, err, &pe, "units=%v", v)
			assert.Equal(t, "units", pe.Param)
			assert.Equal(t, v, pe.Value)
			assert.Contains(t, err.Error(), "must be at most 1024")
		}
		_, _, err := r.Instantiate(dense, "d", map[string]any{"units": 1024.0})
		assert.NoError(t, err)
	})

	t.Run("fractional integer is reported against the param", func(t *testing.T) {
		_, _, err := r.Instantiate(dense, "d", map[string]any{"units": 2.5})
		var pe *ParamError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "units", pe.Param)
		assert.Equal(t, 2.5, pe.Value)
	})

	tuples := []struct {
		name    string
		value   any
		want    []int
		wantErr string
	}{
		{name: "comma string", value: "5, 3", want: []int{5, 3}},
		{name: "json array", value: []any{2.0, 4.0}, want: []int{2, 4}},
		{name: "single scalar is repeated", value: 7.0, want: []int{7, 7}},
		{name: "single string is repeated", value: "2", want: []int{2, 2}},
		{name: "too many values", value: "1,2,3", wantErr: "expected 2 comma-separated values, got 3"},
		{name: "not a number", value: "3,x", wantErr: "expected number"},
		{name: "element above max", value: "3,99", wantErr: "must be at most 16"},
	}
	for _, tt := range tuples {
		t.Run("tuple "+tt.name, func(t *testing.T) {
			layer, _, err := r.Instantiate(conv, "c", map[string]any{"filters": 1.0, "kernel_size": tt.value})
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Contains(t, err.Error(), "parameter 'kernel_size'")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, layer.(*stubLayer).params.(*convParams).KernelSize)
		})
	}
}

func TestNewLayerRebuildsFromConfig(t *testing.T) {
	r := mustTestRegistry(t)
	conv, _ := r.Entry("Conv2D")

	first, cfg, err := r.Instantiate(conv, "c", map[string]any{"filters": json.Number("16"), "strides": "2,2"})
	require.NoError(t, err)

	again, err := r.NewLayer("conv", "c", cfg)
	require.NoError(t, err)
	assert.Equal(t, first.(*stubLayer).params, again.(*stubLayer).params)

	_, err = r.NewLayer("lstm", "x", nil)
	assert.True(t, errors.Is(err, ErrUnknownLayer))

	_, err = r.NewLayer("conv", "c", json.RawMessage(`{"filters":`))
	assert.ErrorContains(t, err, "decoding params")
}

func TestNewLayerWithoutParams(t *testing.T) {
	r := New()
	r.RegisterKind("flatten", stubKind[struct{}]())
	r.RegisterKind("reshape", stubKind[struct{}]())
	fsys := fstest.MapFS{"flatten.hcl": &fstest.MapFile{Data: []byte(`
layer "Flatten" {
  kind = "flatten"
}
`)}}
	require.NoError(t, r.LoadFS(context.Background(), fsys))
	flatten, ok := r.Entry("Flatten")
	require.True(t, ok)

	_, cfg, err := r.Instantiate(flatten, "f", map[string]any{"units": 3.0})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(cfg))

	l, err := r.NewLayer("flatten", "f", cfg)
	require.NoError(t, err)
	assert.Equal(t, "f", l.Name())

	l, err = r.NewLayer("reshape", "r", nil)
	require.NoError(t, err, "kinds no manifest exposes still rebuild from an empty config")
	assert.Equal(t, "r", l.Name())
}

func TestCatalog(t *testing.T) {
	r := mustTestRegistry(t)
	cat := r.Catalog()
	require.Len(t, cat, 3)
	assert.Equal(t, "Conv2D", cat[0].DisplayName)

	conv := cat[0]
	assert.Equal(t, []string{"filters", "kernel_size", "strides"}, conv.ParamOrder)
	assert.Equal(t, CatalogParam{Type: "number", Required: true}, conv.Params["filters"])
	assert.Equal(t, "number", conv.Params["kernel_size"].Type)
	assert.Equal(t, 2, conv.Params["kernel_size"].Size)
	require.NotNil(t, conv.Params["kernel_size"].Max)
	assert.Equal(t, 16.0, *conv.Params["kernel_size"].Max)
	assert.JSONEq(t, `[3,3]`, string(conv.Params["kernel_size"].Default))

	out, err := json.Marshal(cat[1])
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"display_name": "Dense",
		"kind": "dense",
		"category": "core",
		"param_order": ["units", "activation"],
		"params": {
			"units": {"type": "number", "required": true, "max": 1024},
			"activation": {"type": "string", "required": false, "default": "linear"}
		}
	}`, string(out))
}
