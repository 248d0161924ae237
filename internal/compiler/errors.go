package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/specialistvlad/tensorgrid/internal/registry"
)

// Kind classifies a ValidationError.
type Kind string

const (
	KindNoInputLayer     Kind = "no_input_layer"
	KindMissingInput     Kind = "missing_input"
	KindInvalidDimension Kind = "invalid_dimension"
	KindUnknownLayer     Kind = "unknown_layer"
	KindInvalidParameter Kind = "invalid_parameter"
	KindDisconnected     Kind = "disconnected_graph"
	KindSkippedOutput    Kind = "skipped_output"
	KindDuplicateNode    Kind = "duplicate_node"
	KindInvalidEdge      Kind = "invalid_edge"
	KindNoTransformation Kind = "no_transformation"
	KindShapeMismatch    Kind = "shape_mismatch"
	KindModelTooLarge    Kind = "model_too_large"
)

var (
	ErrNoInputLayer     = errors.New("no input layer")
	ErrMissingInput     = errors.New("missing input dimensions")
	ErrInvalidDimension = errors.New("invalid input dimension")
	ErrUnknownLayer     = registry.ErrUnknownLayer
	ErrInvalidParameter = registry.ErrInvalidParameter
	ErrDisconnected     = errors.New("disconnected graph")
	ErrSkippedOutput    = errors.New("skipped output")
	ErrDuplicateNode    = errors.New("duplicate node id")
	ErrInvalidEdge      = errors.New("invalid edge")
	ErrNoTransformation = errors.New("no transformation between input and output")
	ErrShapeMismatch    = errors.New("shape mismatch")
	ErrModelTooLarge    = errors.New("model too large")
)

var sentinels = map[Kind]error{
	KindNoInputLayer:     ErrNoInputLayer,
	KindMissingInput:     ErrMissingInput,
	KindInvalidDimension: ErrInvalidDimension,
	KindUnknownLayer:     ErrUnknownLayer,
	KindInvalidParameter: ErrInvalidParameter,
	KindDisconnected:     ErrDisconnected,
	KindSkippedOutput:    ErrSkippedOutput,
	KindDuplicateNode:    ErrDuplicateNode,
	KindInvalidEdge:      ErrInvalidEdge,
	KindNoTransformation: ErrNoTransformation,
	KindShapeMismatch:    ErrShapeMismatch,
	KindModelTooLarge:    ErrModelTooLarge,
}

// ValidationError is the single error type returned by Compile. It matches
// its Kind's sentinel with errors.Is and unwraps to the underlying cause.
type ValidationError struct {
	Kind   Kind     `json:"kind"`
	NodeID string   `json:"node_id,omitempty"`
	Value  any      `json:"value,omitempty"`
	Valid  []string `json:"valid,omitempty"`
	Count  int      `json:"count,omitempty"`

	msg   string
	cause error
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.cause != nil {
		errs = append(errs, e.cause)
	}
	return errs
}

func newError(kind Kind, nodeID string, format string, args ...any) *ValidationError {
	return &ValidationError{Kind: kind, NodeID: nodeID, msg: fmt.Sprintf(format, args...)}
}

func noInputLayer() error {
	return newError(KindNoInputLayer, "", "No Input layer found. Please add an Input node to start the network.")
}

func duplicateNode(id string) error {
	return newError(KindDuplicateNode, id, "Duplicate node id '%s': every node in the graph must have a unique id.", id)
}

func missingInput(id string) error {
	return newError(KindMissingInput, id,
		"Input node '%s' has no dimensions. Set at least one of %s to a positive integer.", id, strings.Join(dimParams, ", "))
}

func invalidDimension(id, param string, value any) error {
	e := newError(KindInvalidDimension, id,
		"Invalid dimension '%s' for input node '%s': expected a positive integer, got '%v'", param, id, value)
	e.Value = value
	return e
}

func invalidEdge(id, format string, args ...any) error {
	return newError(KindInvalidEdge, id, format, args...)
}

func noTransformation(id string) error {
	return newError(KindNoTransformation, id,
		"Input node '%s' is not connected to any layer. Connect it to at least one layer to define a transformation.", id)
}

func unknownLayer(id string, cause *registry.UnknownLayerError) error {
	e := newError(KindUnknownLayer, id, "Unknown or untrusted layer type '%s' for node '%s'. Supported types are: %s",
		cause.Requested, id, strings.Join(cause.Valid, ", "))
	e.Value, e.Valid, e.cause = cause.Requested, cause.Valid, cause
	return e
}

func invalidParameter(id string, cause *registry.ParamError) error {
	e := newError(KindInvalidParameter, id, "Invalid parameter for node '%s': %s", id, cause.Error())
	e.Value, e.cause = cause.Value, cause
	return e
}

func shapeMismatch(id string, cause error) error {
	e := newError(KindShapeMismatch, id,
		"Shape mismatch at node '%s'. If you are connecting a Convolutional layer to a Dense layer, ensure you add a Flatten layer in between. Technical details: %s",
		id, cause)
	e.cause = cause
	return e
}

func modelTooLarge(id string, cause error) error {
	e := newError(KindModelTooLarge, id,
		"Node '%s' makes the model too large to train. Reduce its size parameters or the input dimensions. Technical details: %s",
		id, cause)
	e.cause = cause
	return e
}

func disconnected(count int, cycle error) error {
	e := newError(KindDisconnected, "",
		"Disconnected graph: %d node(s) are not connected to the Input layer. Please ensure all layers are linked.", count)
	if cycle != nil {
		e.msg += " The unreachable nodes contain a cycle: " + cycle.Error() + "."
		e.cause = cycle
	}
	e.Count = count
	return e
}

func skippedOutput(id string) error {
	return newError(KindSkippedOutput, id, "Output node '%s' was never built; check that all of its inputs are connected.", id)
}
