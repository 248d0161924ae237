package registry

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/fsutil"
)

// LoadDir loads every .hcl manifest found under path.
func (r *Registry) LoadDir(ctx context.Context, path string) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading layer manifests from path...", "path", path)

	filePaths, err := fsutil.FindFilesByExtension(path, ".hcl")
	if err != nil {
		logger.Error("Failed to walk manifest directory", "path", path, "error", err)
		return err
	}
	parser := hclparse.NewParser()
	return r.load(ctx, filePaths, func(p string) (*hcl.File, hcl.Diagnostics) {
		return parser.ParseHCLFile(p)
	})
}

// LoadFS loads every .hcl manifest in fsys, typically the embedded defaults.
func (r *Registry) LoadFS(ctx context.Context, fsys fs.FS) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Registry loading embedded layer manifests...")

	filePaths, err := fsutil.FindInFS(fsys, "", ".hcl")
	if err != nil {
		return err
	}
	parser := hclparse.NewParser()
	return r.load(ctx, filePaths, func(p string) (*hcl.File, hcl.Diagnostics) {
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, hcl.Diagnostics{{Severity: hcl.DiagError, Summary: "Failed to read manifest", Detail: err.Error()}}
		}
		return parser.ParseHCL(src, p)
	})
}

func (r *Registry) load(ctx context.Context, filePaths []string, parse func(string) (*hcl.File, hcl.Diagnostics)) error {
	logger := ctxlog.FromContext(ctx)
	if len(filePaths) == 0 {
		return fmt.Errorf("no .hcl layer manifests found")
	}
	logger.Debug("Found HCL files to load", "files", filePaths)

	for _, filePath := range filePaths {
		file, diags := parse(filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to parse HCL file %s: %w", filePath, diags)
		}

		entries, diags := parseManifest(file, filePath)
		if diags.HasErrors() {
			return fmt.Errorf("failed to process layer definitions in %s: %w", filePath, diags)
		}
		for _, e := range entries {
			if prev, exists := r.entries[e.DisplayName]; exists {
				return fmt.Errorf("layer '%s' declared in %s is already declared in %s", e.DisplayName, filePath, prev.file)
			}
			r.entries[e.DisplayName] = e
		}
		logger.Debug("Successfully loaded definitions from HCL file", "file", filePath, "layers", len(entries))
	}

	logger.Info("Layer registry loaded successfully.", "layer_definitions_loaded", len(r.entries))
	return nil
}
