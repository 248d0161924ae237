package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownLayer is wrapped when a requested layer resolves to no entry.
	ErrUnknownLayer = errors.New("unknown or untrusted layer")
	// ErrInvalidParameter is wrapped when a parameter value cannot be used.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// UnknownLayerError names the layer identifier that failed to resolve.
type UnknownLayerError struct {
	Requested string
	Valid     []string
}

func (e *UnknownLayerError) Error() string {
	return fmt.Sprintf("unknown or untrusted layer type '%s' (valid: %s)", e.Requested, strings.Join(e.Valid, ", "))
}

func (e *UnknownLayerError) Unwrap() error { return ErrUnknownLayer }

// ParamError reports a parameter that is missing or cannot be converted.
type ParamError struct {
	Param  string
	Value  any
	Reason string
}

func (e *ParamError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("parameter '%s' %s", e.Param, e.Reason)
	}
	return fmt.Sprintf("parameter '%s' %s, got '%v'", e.Param, e.Reason, e.Value)
}

func (e *ParamError) Unwrap() error { return ErrInvalidParameter }
