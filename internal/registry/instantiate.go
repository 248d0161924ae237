package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/nn"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// tupleDelimiter separates the components of tuple values such as "3,3".
const tupleDelimiter = ","

// Filter builds the instantiation parameter set from a node's raw params.
// Only allow-listed names are kept; everything else is dropped. Kept values
// are converted to their declared types and missing ones take defaults.
func (e *Entry) Filter(raw map[string]any) (cty.Value, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	attrs := make(map[string]cty.Value, len(e.Params))
	for _, name := range names {
		spec, allowed := e.Params[name]
		if !allowed {
			continue
		}
		v := raw[name]
		if isBlank(v) {
			continue
		}
		cv, err := spec.coerce(v)
		if err == nil {
			err = spec.checkMax(cv)
		}
		if err != nil {
			return cty.NilVal, &ParamError{Param: name, Value: v, Reason: err.Error()}
		}
		attrs[name] = cv
	}

	for _, name := range e.order {
		if _, ok := attrs[name]; ok {
			continue
		}
		spec := e.Params[name]
		if spec.Default == nil {
			return cty.NilVal, &ParamError{Param: name, Reason: "is required"}
		}
		attrs[name] = *spec.Default
	}
	if len(attrs) == 0 {
		return cty.EmptyObjectVal, nil
	}
	return cty.ObjectVal(attrs), nil
}

// Instantiate filters raw params through the entry's allow-list and builds
// the runtime layer. It also returns the serialized parameter object that
// NewLayer accepts to rebuild the same layer later.
func (r *Registry) Instantiate(e *Entry, name string, raw map[string]any) (nn.Layer, json.RawMessage, error) {
	obj, err := e.Filter(raw)
	if err != nil {
		return nil, nil, err
	}
	layer, err := r.build(e.Kind, name, obj)
	if err != nil {
		var pe *ParamError
		if errors.As(err, &pe) && pe.Value == nil {
			pe.Value = raw[pe.Param]
		}
		return nil, nil, err
	}
	cfg, err := ctyjson.Marshal(obj, obj.Type())
	if err != nil {
		return nil, nil, fmt.Errorf("layer %q: encoding params: %w", name, err)
	}
	return layer, cfg, nil
}

// NewLayer rebuilds a layer from a kind id and a parameter object produced
// by Instantiate. It implements nn.LayerFactory.
func (r *Registry) NewLayer(kind, name string, config json.RawMessage) (nn.Layer, error) {
	k, ok := r.kinds[kind]
	if !ok {
		return nil, &UnknownLayerError{Requested: kind, Valid: r.kindNames()}
	}
	ty, err := r.paramsType(kind, k)
	if err != nil {
		return nil, fmt.Errorf("kind '%s': %w", kind, err)
	}
	if len(config) == 0 {
		config = json.RawMessage("{}")
	}
	obj, err := ctyjson.Unmarshal(config, ty)
	if err != nil {
		return nil, fmt.Errorf("kind '%s': decoding params: %w", kind, err)
	}
	return r.build(kind, name, obj)
}

// paramsType is the object type Filter produces for kind. It comes from the
// manifest entry bound to kind, so kinds without params decode from {}.
func (r *Registry) paramsType(kind string, k *RegisteredKind) (cty.Type, error) {
	if e, ok := r.entryForKind(kind); ok {
		return e.objectType(), nil
	}
	if k.ParamsType != nil && k.ParamsType.Kind() == reflect.Struct && k.ParamsType.NumField() == 0 {
		return cty.EmptyObject, nil
	}
	return gocty.ImpliedType(k.NewParams())
}

func (e *Entry) objectType() cty.Type {
	if len(e.Params) == 0 {
		return cty.EmptyObject
	}
	attrs := make(map[string]cty.Type, len(e.Params))
	for name, spec := range e.Params {
		attrs[name] = spec.Type
	}
	return cty.Object(attrs)
}

func (r *Registry) build(kind, name string, obj cty.Value) (nn.Layer, error) {
	k, ok := r.kinds[kind]
	if !ok {
		return nil, &UnknownLayerError{Requested: kind, Valid: r.kindNames()}
	}
	params := k.NewParams()
	if err := gocty.FromCtyValue(obj, params); err != nil {
		var pathErr cty.PathError
		if errors.As(err, &pathErr) && len(pathErr.Path) > 0 {
			if step, ok := pathErr.Path[0].(cty.GetAttrStep); ok {
				return nil, &ParamError{Param: step.Name, Reason: pathErr.Error()}
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidParameter, err)
	}
	return k.Build(name, params)
}

func (r *Registry) kindNames() []string {
	names := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (p *ParamSpec) coerce(v any) (cty.Value, error) {
	if p.Size > 0 {
		return p.coerceTuple(v)
	}
	cv, err := scalarValue(v)
	if err != nil {
		return cty.NilVal, err
	}
	return convertTo(cv, p.Type)
}

// coerceTuple parses "a,b" strings, JSON arrays and single scalars (which
// are repeated) into a list of exactly Size numbers.
func (p *ParamSpec) coerceTuple(v any) (cty.Value, error) {
	var parts []any
	switch tv := v.(type) {
	case string:
		for _, s := range strings.Split(tv, tupleDelimiter) {
			parts = append(parts, strings.TrimSpace(s))
		}
	case []any:
		parts = tv
	default:
		parts = []any{tv}
	}
	if len(parts) == 1 && p.Size > 1 {
		for len(parts) < p.Size {
			parts = append(parts, parts[0])
		}
	}
	if len(parts) != p.Size {
		return cty.NilVal, fmt.Errorf("expected %d comma-separated values, got %d", p.Size, len(parts))
	}
	elems := make([]cty.Value, len(parts))
	for i, part := range parts {
		cv, err := scalarValue(part)
		if err != nil {
			return cty.NilVal, err
		}
		if elems[i], err = convertTo(cv, p.Type.ElementType()); err != nil {
			return cty.NilVal, err
		}
	}
	return cty.ListVal(elems), nil
}

// checkMax rejects numbers above the declared bound.
func (p *ParamSpec) checkMax(v cty.Value) error {
	if p.Max == nil || v.IsNull() || !v.IsKnown() {
		return nil
	}
	limit := cty.NumberFloatVal(*p.Max)
	elems := []cty.Value{v}
	if v.Type().IsListType() {
		elems = v.AsValueSlice()
	}
	for _, e := range elems {
		if e.GreaterThan(limit).True() {
			return fmt.Errorf("must be at most %s", strconv.FormatFloat(*p.Max, 'f', -1, 64))
		}
	}
	return nil
}

func convertTo(v cty.Value, ty cty.Type) (cty.Value, error) {
	out, err := convert.Convert(v, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("expected %s", ty.FriendlyName())
	}
	return out, nil
}

func scalarValue(v any) (cty.Value, error) {
	switch tv := v.(type) {
	case string:
		return cty.StringVal(strings.TrimSpace(tv)), nil
	case bool:
		return cty.BoolVal(tv), nil
	case float64:
		if math.IsNaN(tv) || math.IsInf(tv, 0) {
			return cty.NilVal, fmt.Errorf("expected a finite number")
		}
		return cty.NumberFloatVal(tv), nil
	case int:
		return cty.NumberIntVal(int64(tv)), nil
	case int64:
		return cty.NumberIntVal(tv), nil
	case json.Number:
		return cty.ParseNumberVal(tv.String())
	}
	return cty.NilVal, fmt.Errorf("expected a scalar value, got %T", v)
}

func isBlank(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
