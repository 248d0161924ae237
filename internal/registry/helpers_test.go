package registry

import (
	"context"
	"testing"
	"testing/fstest"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/tensor"
	"github.com/stretchr/testify/require"
)

type inputParams struct {
	Dim1 int `cty:"dim-1"`
}

type denseParams struct {
	Units      int    `cty:"units"`
	Activation string `cty:"activation"`
}

type convParams struct {
	Filters    int   `cty:"filters"`
	KernelSize []int `cty:"kernel_size"`
	Strides    []int `cty:"strides"`
}

// stubLayer records the params it was built from.
type stubLayer struct {
	name   string
	params any
}

func (l *stubLayer) Name() string                                           { return l.name }
func (l *stubLayer) ClassName() string                                      { return "Stub" }
func (l *stubLayer) Params() []*nn.Param                                    { return nil }
func (l *stubLayer) Build([][]int) ([]int, error)                           { return []int{1}, nil }
func (l *stubLayer) Forward([]*tensor.Tensor, bool) (*tensor.Tensor, error) { return nil, nil }
func (l *stubLayer) Backward(*tensor.Tensor) ([]*tensor.Tensor, error)      { return nil, nil }

func stubKind[T any]() *RegisteredKind {
	return &RegisteredKind{
		NewParams: func() any { return new(T) },
		Build: func(name string, params any) (nn.Layer, error) {
			return &stubLayer{name: name, params: params}, nil
		},
	}
}

const testManifest = `
layer "Input" {
  kind = "input"
  param "dim-1" {
    type    = number
    default = 0
  }
}

layer "Dense" {
  kind     = "dense"
  category = "core"
  param "units" {
    type     = number
    required = true
    max      = 1024
  }
  param "activation" {
    type    = string
    default = "linear"
  }
}

layer "Conv2D" {
  kind = "conv"
  param "filters" {
    type     = number
    required = true
  }
  param "kernel_size" {
    type    = number
    size    = 2
    default = [3, 3]
    max     = 16
  }
  param "strides" {
    type    = number
    size    = 2
    default = [1, 1]
  }
}
`

func registerStubKinds(r *Registry) {
	r.RegisterKind(InputKind, stubKind[inputParams]())
	r.RegisterKind("dense", stubKind[denseParams]())
	r.RegisterKind("conv", stubKind[convParams]())
}

// newTestRegistry loads manifest sources into a registry with the stub kinds.
func newTestRegistry(t *testing.T, files map[string]string) (*Registry, error) {
	t.Helper()
	fsys := fstest.MapFS{}
	for name, src := range files {
		fsys[name] = &fstest.MapFile{Data: []byte(src)}
	}
	r := New()
	registerStubKinds(r)
	if err := r.LoadFS(context.Background(), fsys); err != nil {
		return r, err
	}
	return r, nil
}

func mustTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := newTestRegistry(t, map[string]string{"layers.hcl": testManifest})
	require.NoError(t, err)
	require.NoError(t, r.ValidateRegistry(context.Background()))
	return r
}
