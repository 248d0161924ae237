package app

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/model"
)

// graphFile accepts a bare graph or a validate request body.
type graphFile struct {
	model.ModelGraph
	Model *model.ModelGraph `json:"model"`
}

// CompileFile compiles the graph stored in path and prints its summary.
func (a *App) CompileFile(path string) (*compiler.CompiledModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph: %w", err)
	}
	var f graphFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing graph %s: %w", path, err)
	}
	g := f.ModelGraph
	if f.Model != nil {
		g = *f.Model
	}

	cm, err := compiler.Compile(a.ctx, "offline", g, a.registry)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(a.outW, cm.Summary.String())
	return cm, nil
}
