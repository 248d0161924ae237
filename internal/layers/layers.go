// Package layers bundles the layer kinds compiled into the binary together
// with their default manifests.
package layers

import (
	"context"
	"embed"
	"fmt"

	"github.com/specialistvlad/tensorgrid/internal/layers/conv2d"
	"github.com/specialistvlad/tensorgrid/internal/layers/dense"
	"github.com/specialistvlad/tensorgrid/internal/layers/dropout"
	"github.com/specialistvlad/tensorgrid/internal/layers/flatten"
	"github.com/specialistvlad/tensorgrid/internal/layers/input"
	"github.com/specialistvlad/tensorgrid/internal/layers/maxpool2d"
	"github.com/specialistvlad/tensorgrid/internal/registry"
)

//go:embed manifests/*.hcl
var manifests embed.FS

// CoreModules is the definitive list of all layer kinds that are compiled
// into the binary.
var CoreModules = []registry.Module{
	&input.Module{},
	&dense.Module{},
	&flatten.Module{},
	&conv2d.Module{},
	&maxpool2d.Module{},
	&dropout.Module{},
}

// NewRegistry registers the core kinds, loads manifests from manifestDir
// (or the embedded defaults when empty) and validates parity.
func NewRegistry(ctx context.Context, manifestDir string, modules ...registry.Module) (*registry.Registry, error) {
	reg := registry.New()
	if len(modules) == 0 {
		modules = CoreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}

	var err error
	if manifestDir != "" {
		err = reg.LoadDir(ctx, manifestDir)
	} else {
		err = reg.LoadFS(ctx, manifests)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load layer manifests: %w", err)
	}
	if err := reg.ValidateRegistry(ctx); err != nil {
		return nil, err
	}
	return reg, nil
}
