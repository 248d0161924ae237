package registry

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/ctxlog"
	"github.com/zclconf/go-cty/cty/gocty"
)

// ValidateRegistry performs a strict parity check between manifests and Go code.
// It checks both the presence of params and the compatibility of their types.
func (r *Registry) ValidateRegistry(ctx context.Context) error {
	var errs []string
	logger := ctxlog.FromContext(ctx)

	if len(r.entries) == 0 {
		errs = append(errs, "no layer manifests loaded")
	}

	for _, displayName := range r.DisplayNames() {
		entry := r.entries[displayName]
		kind, ok := r.kinds[entry.Kind]
		if !ok {
			errs = append(errs, fmt.Sprintf("layer '%s': kind '%s' has no registered Go implementation", displayName, entry.Kind))
			continue
		}
		if kind.Build == nil || kind.NewParams == nil {
			errs = append(errs, fmt.Sprintf("layer '%s': kind '%s' is registered without a Build or NewParams function", displayName, entry.Kind))
			continue
		}

		goParams := make(map[string]reflect.StructField)
		paramsType := kind.ParamsType
		for i := 0; i < paramsType.NumField(); i++ {
			field := paramsType.Field(i)
			if !field.IsExported() {
				continue
			}
			tag := field.Tag.Get("cty")
			tagName := strings.Split(tag, ",")[0]
			if tagName != "" && tagName != "-" {
				goParams[tagName] = field
			}
		}

		// Check for presence mismatches
		for name := range goParams {
			if _, ok := entry.Params[name]; !ok {
				errs = append(errs, fmt.Sprintf("layer '%s': Go struct has field for param '%s' which is not declared in manifest", displayName, name))
			}
		}
		for _, name := range entry.order {
			if _, ok := goParams[name]; !ok {
				errs = append(errs, fmt.Sprintf("layer '%s': manifest declares param '%s' which is not found in Go struct", displayName, name))
			}
		}

		// Check for type mismatches
		for _, name := range entry.order {
			goField, ok := goParams[name]
			if !ok {
				continue
			}
			goFieldType, err := gocty.ImpliedType(reflect.Zero(goField.Type).Interface())
			if err != nil {
				errs = append(errs, fmt.Sprintf("layer '%s', param '%s': could not imply cty type from Go field type %s: %v", displayName, name, goField.Type, err))
				continue
			}
			if manifestType := entry.Params[name].Type; !manifestType.Equals(goFieldType) {
				errs = append(errs, fmt.Sprintf("layer '%s', param '%s': type mismatch. Manifest requires '%s' but Go struct field '%s' provides compatible type '%s'",
					displayName, name, manifestType.FriendlyName(), goField.Name, goFieldType.FriendlyName()))
			}
		}
	}

	for kind := range r.kinds {
		if _, ok := r.entryForKind(kind); !ok {
			logger.Warn("Layer kind is registered but no manifest exposes it.", "kind", kind)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("registry validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	logger.Debug("Registry validation passed.", "layers", len(r.entries), "kinds", len(r.kinds))
	return nil
}
