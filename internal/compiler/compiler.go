package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/specialistvlad/tensorgrid/internal/dag"
	"github.com/specialistvlad/tensorgrid/internal/model"
	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/specialistvlad/tensorgrid/internal/registry"
)

// Registry is the part of the layer registry the compiler depends on.
type Registry interface {
	ResolveNode(n model.GraphNode) (*registry.Resolution, error)
	Instantiate(e *registry.Entry, name string, raw map[string]any) (nn.Layer, json.RawMessage, error)
}

// CompiledModel is the result of a successful compile.
type CompiledModel struct {
	Spec    model.ModelSpec `json:"spec"`
	Summary Summary         `json:"summary"`
	Model   *nn.Model       `json:"-"`
}

// dimParams are the input node parameters holding the sample shape, in order.
var dimParams = []string{"dim-1", "dim-2", "dim-3"}

var concatConfig = json.RawMessage(`{"axis":-1}`)

type compilation struct {
	graph    model.ModelGraph
	reg      Registry
	byID     map[string]model.GraphNode
	resolved map[string]*registry.Resolution
	inputs   []string
	dag      *dag.Graph

	visited map[string]bool
	model   *nn.Model
	spec    model.ModelSpec
}

// Compile validates g against reg and builds the model. It has no side
// effects beyond logging; the same graph always compiles to the same spec.
func Compile(ctx context.Context, name string, g model.ModelGraph, reg Registry) (*CompiledModel, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Compile: Starting graph compilation.", "model", name, "nodes", len(g.Nodes), "edges", len(g.Edges))

	c := &compilation{
		graph:    g,
		reg:      reg,
		byID:     make(map[string]model.GraphNode, len(g.Nodes)),
		resolved: make(map[string]*registry.Resolution, len(g.Nodes)),
		dag:      dag.New(),
		visited:  make(map[string]bool, len(g.Nodes)),
		model:    nn.NewModel(),
		spec:     model.ModelSpec{Version: model.SpecVersion, Name: name},
	}

	cm, err := c.run()
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			logger.Warn("Compile: Graph rejected.", "model", name, "kind", ve.Kind, "node", ve.NodeID, "error", ve.Error())
		} else {
			logger.Error("Compile: Graph compilation failed.", "model", name, "error", err)
		}
		return nil, err
	}
	logger.Info("Compile: Graph compilation successful.", "model", name, "layers", len(cm.Spec.Layers), "params", cm.Summary.TotalParams)
	return cm, nil
}

func (c *compilation) run() (*CompiledModel, error) {
	if err := c.indexNodes(); err != nil {
		return nil, err
	}
	if len(c.inputs) == 0 {
		return nil, noInputLayer()
	}
	if err := c.linkEdges(); err != nil {
		return nil, err
	}
	if err := c.buildInputs(); err != nil {
		return nil, err
	}
	if err := c.traverse(); err != nil {
		return nil, err
	}
	if err := c.checkCoverage(); err != nil {
		return nil, err
	}
	outputs, err := c.outputs()
	if err != nil {
		return nil, err
	}
	if err := c.model.SetOutputs(outputs...); err != nil {
		return nil, err
	}
	c.spec.Inputs = append([]string(nil), c.inputs...)
	c.spec.Outputs = outputs

	return &CompiledModel{Spec: c.spec, Model: c.model, Summary: Summarize(c.model)}, nil
}

// indexNodes rejects duplicate ids and classifies the input nodes. Nodes
// that fail to resolve are kept; their error surfaces when they are built.
func (c *compilation) indexNodes() error {
	for _, n := range c.graph.Nodes {
		if _, dup := c.byID[n.ID]; dup {
			return duplicateNode(n.ID)
		}
		c.byID[n.ID] = n

		res, err := c.reg.ResolveNode(n)
		if err == nil {
			c.resolved[n.ID] = res
		}
		if (err == nil && res.Entry.IsInput()) || (err != nil && isLegacyInput(n)) {
			c.inputs = append(c.inputs, n.ID)
		}
	}
	return nil
}

func isLegacyInput(n model.GraphNode) bool {
	_, explicit := n.ExplicitDisplayName()
	return !explicit && n.Type == registry.LegacyInputType
}

func (c *compilation) linkEdges() error {
	for _, n := range c.graph.Nodes {
		c.dag.AddNode(n.ID)
	}
	isInput := make(map[string]bool, len(c.inputs))
	for _, id := range c.inputs {
		isInput[id] = true
	}

	for i, e := range c.graph.Edges {
		switch {
		case !c.dag.Has(e.Source):
			return invalidEdge(e.Source, "Edge %d references unknown source node '%s'.", i, e.Source)
		case !c.dag.Has(e.Target):
			return invalidEdge(e.Target, "Edge %d references unknown target node '%s'.", i, e.Target)
		case e.Source == e.Target:
			return invalidEdge(e.Source, "Node '%s' cannot be connected to itself.", e.Source)
		case isInput[e.Target]:
			return invalidEdge(e.Target, "Input node '%s' cannot have incoming connections.", e.Target)
		}
		if err := c.dag.AddEdge(e.Source, e.Target); err != nil {
			return fmt.Errorf("linking edge %d: %w", i, err)
		}
	}

	for _, id := range c.inputs {
		if deps, _ := c.dag.Dependents(id); len(deps) == 0 {
			return noTransformation(id)
		}
	}
	return nil
}

func (c *compilation) buildInputs() error {
	for _, id := range c.inputs {
		n := c.byID[id]
		if _, err := inputShape(n); err != nil {
			return err
		}
		res, ok := c.resolved[id]
		if !ok {
			// Legacy input tag whose Input entry is not loaded.
			_, err := c.reg.ResolveNode(n)
			return c.instantiateError(id, err)
		}
		layer, cfg, err := c.reg.Instantiate(res.Entry, id, res.Params)
		if err != nil {
			return c.instantiateError(id, err)
		}
		if _, err := c.model.AddInput(layer); err != nil {
			return c.instantiateError(id, err)
		}
		c.record(layer, res.Entry.Kind, cfg, nil)
		c.visited[id] = true
	}
	return nil
}

// inputShape reads the dimension params of an input node. Missing, blank
// and zero values are unused slots.
func inputShape(n model.GraphNode) ([]int, error) {
	var shape []int
	for _, param := range dimParams {
		raw, _ := n.Param(param)
		d, ok := parseDim(raw)
		if !ok {
			return nil, invalidDimension(n.ID, param, raw)
		}
		if d > 0 {
			shape = append(shape, d)
		}
	}
	if len(shape) == 0 {
		return nil, missingInput(n.ID)
	}
	return shape, nil
}

// parseDim returns 0 for an unused slot and false for an invalid value.
func parseDim(v any) (int, bool) {
	var f float64
	switch tv := v.(type) {
	case nil:
		return 0, true
	case string:
		s := strings.TrimSpace(tv)
		if s == "" {
			return 0, true
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	case json.Number:
		parsed, err := tv.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case float64:
		f = tv
	case int:
		f = float64(tv)
	case int64:
		f = float64(tv)
	default:
		return 0, false
	}
	if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

func (c *compilation) traverse() error {
	queue := append([]string(nil), c.inputs...)
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		targets, err := c.dag.Dependents(current)
		if err != nil {
			return err
		}
		for _, target := range targets {
			if c.visited[target] {
				continue
			}
			sources, err := c.dag.Dependencies(target)
			if err != nil {
				return err
			}
			if !c.allVisited(sources) {
				continue
			}
			if err := c.buildNode(target, sources); err != nil {
				return err
			}
			c.visited[target] = true
			queue = append(queue, target)
		}
	}
	return nil
}

func (c *compilation) allVisited(ids []string) bool {
	for _, id := range ids {
		if !c.visited[id] {
			return false
		}
	}
	return true
}

func (c *compilation) buildNode(id string, sources []string) error {
	n := c.byID[id]
	res, ok := c.resolved[id]
	if !ok {
		_, err := c.reg.ResolveNode(n)
		return c.instantiateError(id, err)
	}
	if res.Entry.IsInput() {
		return invalidEdge(id, "Input node '%s' cannot have incoming connections.", id)
	}

	inbound := sources
	if len(sources) > 1 {
		merge := nn.NewConcatenate(c.concatName(id))
		if _, err := c.model.Add(merge, sources...); err != nil {
			return c.instantiateError(id, err)
		}
		c.record(merge, nn.ConcatenateKind, concatConfig, sources)
		inbound = []string{merge.Name()}
	}

	layer, cfg, err := c.reg.Instantiate(res.Entry, id, res.Params)
	if err != nil {
		return c.instantiateError(id, err)
	}
	if _, err := c.model.Add(layer, inbound...); err != nil {
		return c.instantiateError(id, err)
	}
	c.record(layer, res.Entry.Kind, cfg, inbound)
	return nil
}

// concatName picks a merge layer name that collides with no node id.
func (c *compilation) concatName(target string) string {
	name := "concat_" + target
	for i := 1; ; i++ {
		if _, taken := c.byID[name]; !taken && c.model.OutputShape(name) == nil {
			return name
		}
		name = fmt.Sprintf("concat_%s_%d", target, i)
	}
}

func (c *compilation) record(l nn.Layer, kind string, cfg json.RawMessage, inbound []string) {
	c.spec.Layers = append(c.spec.Layers, model.LayerSpec{
		Name:      l.Name(),
		Kind:      kind,
		ClassName: l.ClassName(),
		Config:    cfg,
		Inbound:   append([]string(nil), inbound...),
	})
}

func (c *compilation) instantiateError(id string, err error) error {
	var ule *registry.UnknownLayerError
	var pe *registry.ParamError
	switch {
	case errors.As(err, &ule):
		return unknownLayer(id, ule)
	case errors.As(err, &pe):
		return invalidParameter(id, pe)
	case errors.Is(err, nn.ErrTooLarge):
		return modelTooLarge(id, err)
	case errors.Is(err, nn.ErrShape):
		return shapeMismatch(id, err)
	}
	return fmt.Errorf("node '%s': %w", id, err)
}

func (c *compilation) checkCoverage() error {
	var unvisited []string
	for _, id := range c.dag.Nodes() {
		if !c.visited[id] {
			unvisited = append(unvisited, id)
		}
	}
	if len(unvisited) == 0 {
		return nil
	}
	// Built nodes never lie on a cycle, so any cycle is among the unvisited.
	return disconnected(len(unvisited), c.dag.DetectCycles())
}

// outputs returns the nodes without outgoing edges, in node order.
func (c *compilation) outputs() ([]string, error) {
	var out []string
	for _, n := range c.graph.Nodes {
		if deps, _ := c.dag.Dependents(n.ID); len(deps) > 0 {
			continue
		}
		if !c.visited[n.ID] {
			return nil, skippedOutput(n.ID)
		}
		out = append(out, n.ID)
	}
	return out, nil
}
