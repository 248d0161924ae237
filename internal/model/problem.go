package model

import "fmt"

// ProblemType classifies a training job and fixes its loss function.
type ProblemType int

const (
	ProblemClassification      ProblemType = 1
	ProblemRegression          ProblemType = 2
	ProblemImageClassification ProblemType = 3
)

// Loss identifiers understood by the runtime.
const (
	LossSparseCategoricalCrossentropy = "sparse_categorical_crossentropy"
	LossMeanSquaredError              = "mse"
)

// Valid reports whether p is one of the known problem types.
func (p ProblemType) Valid() bool {
	switch p {
	case ProblemClassification, ProblemRegression, ProblemImageClassification:
		return true
	}
	return false
}

// Loss returns the loss selected for the problem type. The mapping is fixed
// and not user configurable.
func (p ProblemType) Loss() (string, error) {
	switch p {
	case ProblemClassification, ProblemImageClassification:
		return LossSparseCategoricalCrossentropy, nil
	case ProblemRegression:
		return LossMeanSquaredError, nil
	}
	return "", fmt.Errorf("unknown problem type %d", int(p))
}

func (p ProblemType) String() string {
	switch p {
	case ProblemClassification:
		return "classification"
	case ProblemRegression:
		return "regression"
	case ProblemImageClassification:
		return "image-classification"
	}
	return fmt.Sprintf("ProblemType(%d)", int(p))
}
