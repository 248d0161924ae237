package registry

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// manifestRootSchema defines the top-level structure of a manifest file,
// expecting one or more 'layer' blocks.
type manifestRootSchema struct {
	Layers []*hclLayer `hcl:"layer,block"`
}

// hclLayer represents a single 'layer' block for decoding purposes.
type hclLayer struct {
	DisplayName string   `hcl:"name,label"`
	Body        hcl.Body `hcl:",remain"`
}

var layerBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "kind", Required: true},
		{Name: "category"},
		{Name: "description"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "param", LabelNames: []string{"name"}},
	},
}

var paramBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		// `type` is required, but we check for its existence manually
		// to provide a better error message.
		{Name: "type"},
		{Name: "size"},
		{Name: "required"},
		{Name: "default"},
		{Name: "max"},
		{Name: "description"},
	},
}

// parseManifest decodes every 'layer' block of one HCL file.
func parseManifest(file *hcl.File, filePath string) ([]*Entry, hcl.Diagnostics) {
	var allDiags hcl.Diagnostics
	if file == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &manifestRootSchema{}
	diags := gohcl.DecodeBody(file.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	entries := make([]*Entry, 0, len(root.Layers))
	for _, layer := range root.Layers {
		content, contentDiags := layer.Body.Content(layerBodySchema)
		allDiags = append(allDiags, contentDiags...)
		if contentDiags.HasErrors() {
			continue
		}

		entry := &Entry{
			DisplayName: layer.DisplayName,
			Params:      make(map[string]*ParamSpec),
			file:        filePath,
		}
		allDiags = append(allDiags, gohcl.DecodeExpression(content.Attributes["kind"].Expr, nil, &entry.Kind)...)
		if attr, ok := content.Attributes["category"]; ok {
			allDiags = append(allDiags, gohcl.DecodeExpression(attr.Expr, nil, &entry.Category)...)
		}
		if attr, ok := content.Attributes["description"]; ok {
			allDiags = append(allDiags, gohcl.DecodeExpression(attr.Expr, nil, &entry.Description)...)
		}

		for _, block := range content.Blocks.OfType("param") {
			name := block.Labels[0]
			if _, exists := entry.Params[name]; exists {
				allDiags = append(allDiags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate param definition",
					Detail:   fmt.Sprintf("Layer '%s' already defines a param named '%s'.", entry.DisplayName, name),
					Subject:  &block.DefRange,
				})
				continue
			}
			spec, paramDiags := parseParam(block)
			allDiags = append(allDiags, paramDiags...)
			if paramDiags.HasErrors() {
				continue
			}
			entry.Params[name] = spec
			entry.order = append(entry.order, name)
		}

		entries = append(entries, entry)
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}
	return entries, allDiags
}

func parseParam(block *hcl.Block) (*ParamSpec, hcl.Diagnostics) {
	var diags hcl.Diagnostics
	spec := &ParamSpec{Name: block.Labels[0]}

	content, contentDiags := block.Body.Content(paramBodySchema)
	diags = append(diags, contentDiags...)
	if contentDiags.HasErrors() {
		return nil, diags
	}

	typeAttr, exists := content.Attributes["type"]
	if !exists {
		missing := block.Body.MissingItemRange()
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing 'type' attribute",
			Detail:   "The 'type' attribute is required for all param blocks.",
			Subject:  &missing,
		})
		return nil, diags
	}
	base, typeDiags := typeExprToCty(typeAttr.Expr)
	diags = append(diags, typeDiags...)
	if typeDiags.HasErrors() {
		return nil, diags
	}
	spec.Type = base

	if attr, ok := content.Attributes["size"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &spec.Size)...)
		if spec.Size < 0 || (spec.Size > 0 && !base.Equals(cty.Number)) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid tuple size",
				Detail:   fmt.Sprintf("Param '%s': 'size' must be a positive integer on a number param.", spec.Name),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil, diags
		}
		if spec.Size > 0 {
			spec.Type = cty.List(base)
		}
	}
	if attr, ok := content.Attributes["required"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &spec.Required)...)
	}
	if attr, ok := content.Attributes["description"]; ok {
		diags = append(diags, gohcl.DecodeExpression(attr.Expr, nil, &spec.Description)...)
	}
	if attr, ok := content.Attributes["max"]; ok {
		if !base.Equals(cty.Number) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid upper bound",
				Detail:   fmt.Sprintf("Param '%s': 'max' is only allowed on number params.", spec.Name),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil, diags
		}
		var limit float64
		maxDiags := gohcl.DecodeExpression(attr.Expr, nil, &limit)
		diags = append(diags, maxDiags...)
		if maxDiags.HasErrors() {
			return nil, diags
		}
		spec.Max = &limit
	}

	if attr, ok := content.Attributes["default"]; ok {
		// A nil eval context is used because defaults must be literal values.
		raw, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			return nil, diags
		}
		val, err := convert.Convert(raw, spec.Type)
		if err == nil && spec.Size > 0 && val.LengthInt() != spec.Size {
			err = fmt.Errorf("expected %d values, got %d", spec.Size, val.LengthInt())
		}
		if err == nil {
			err = spec.checkMax(val)
		}
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid default value",
				Detail:   fmt.Sprintf("Param '%s': default is not a valid %s: %s.", spec.Name, spec.Type.FriendlyName(), err),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil, diags
		}
		spec.Default = &val
	}

	switch {
	case spec.Required && spec.Default != nil:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Conflicting param settings",
			Detail:   fmt.Sprintf("Param '%s' is required and cannot declare a default.", spec.Name),
			Subject:  &block.DefRange,
		})
	case !spec.Required && spec.Default == nil:
		diags = append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Missing default value",
			Detail:   fmt.Sprintf("Param '%s' is optional and must declare a default.", spec.Name),
			Subject:  &block.DefRange,
		})
	}
	return spec, diags
}
