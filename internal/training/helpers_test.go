package training

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"testing"

	"github.com/specialistvlad/tensorgrid/internal/compiler"
	"github.com/specialistvlad/tensorgrid/internal/dataset"
	"github.com/specialistvlad/tensorgrid/internal/layers"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/registry"
	"github.com/specialistvlad/tensorgrid/internal/testutil"
	"github.com/stretchr/testify/require"
)

// memorySource serves specs compiled in the test.
type memorySource map[string]model.ModelSpec

func (s memorySource) LoadSpec(_ context.Context, name string) (model.ModelSpec, error) {
	spec, ok := s[name]
	if !ok {
		return model.ModelSpec{}, fmt.Errorf("model '%s' not found", name)
	}
	return spec, nil
}

type panickingSource struct{}

func (panickingSource) LoadSpec(context.Context, string) (model.ModelSpec, error) {
	panic("corrupt artifact")
}

func node(id, displayName string, params map[string]any) model.GraphNode {
	return model.GraphNode{ID: id, Type: "genericLayer", Data: model.NodeData{
		Params:   params,
		Registry: &model.NodeRegistryRef{DisplayName: displayName},
	}}
}

func compileSpec(t *testing.T, reg *registry.Registry, name string, nodes []model.GraphNode, edges ...string) model.ModelSpec {
	t.Helper()
	g := model.ModelGraph{Nodes: nodes}
	for i := 0; i+1 < len(edges); i += 2 {
		g.Edges = append(g.Edges, model.GraphEdge{Source: edges[i], Target: edges[i+1]})
	}
	cm, err := compiler.Compile(context.Background(), name, g, reg)
	require.NoError(t, err)
	return cm.Spec
}

// fixture holds a registry, compiled models and a data directory.
type fixture struct {
	reg      *registry.Registry
	models   memorySource
	root     string
	resolver dataset.Resolver
}

// classificationCSV labels a row 1 when x1 > x2.
func classificationCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("x1,x2,label\n")
	for i := 0; i < rows; i++ {
		x1 := float64(i%7) / 7
		x2 := float64(i%5) / 5
		label := 0
		if x1 > x2 {
			label = 1
		}
		fmt.Fprintf(&b, "%.3f,%.3f,%d\n", x1, x2, label)
	}
	return []byte(b.String())
}

func regressionCSV(rows int) []byte {
	var b strings.Builder
	b.WriteString("x,y\n")
	for i := 0; i < rows; i++ {
		x := float64(i) / float64(rows)
		fmt.Fprintf(&b, "%.4f,%.4f\n", x, 2*x+1)
	}
	return []byte(b.String())
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := layers.NewRegistry(context.Background(), "")
	require.NoError(t, err)

	files := map[string][]byte{
		"class.csv": classificationCSV(40),
		"reg.csv":   regressionCSV(20),
	}
	for i := 0; i < 4; i++ {
		files[fmt.Sprintf("images/red/%d.png", i)] = testutil.SolidPNG(t, 4, 4, color.RGBA{R: 255, A: 255})
		files[fmt.Sprintf("images/blue/%d.png", i)] = testutil.SolidPNG(t, 4, 4, color.RGBA{B: 255, A: 255})
	}
	root := testutil.WriteFiles(t, files)

	models := memorySource{
		"classifier": compileSpec(t, reg, "classifier", []model.GraphNode{
			node("in", "Input", map[string]any{"dim-1": 2}),
			node("out", "Dense", map[string]any{"units": 2}),
		}, "in", "out"),
		"regressor": compileSpec(t, reg, "regressor", []model.GraphNode{
			node("in", "Input", map[string]any{"dim-1": 1}),
			node("out", "Dense", map[string]any{"units": 1}),
		}, "in", "out"),
		"imagenet": compileSpec(t, reg, "imagenet", []model.GraphNode{
			node("img", "Input", map[string]any{"dim-1": 2, "dim-2": 2, "dim-3": 3}),
			node("flat", "Flatten", nil),
			node("out", "Dense", map[string]any{"units": 2}),
		}, "img", "flat", "flat", "out"),
	}
	return &fixture{reg: reg, models: models, root: root, resolver: dataset.DirResolver{Root: root}}
}

func (f *fixture) orchestrator() *Orchestrator {
	return NewOrchestrator(f.models, f.reg, f.resolver)
}

func classificationJob() model.TrainingJob {
	return model.TrainingJob{
		ModelName:   "classifier",
		ProblemType: model.ProblemClassification,
		Dataset: model.DatasetDescriptor{Tabular: &model.TabularDataset{
			Location: "class.csv", TargetField: "label", TrainingSplit: 75, BatchSize: 8,
		}},
		Hyper: model.Hyperparameters{Optimizer: "adam", Metric: "accuracy", Epochs: 2},
	}
}
