package nn

import (
	"fmt"
	"math"
	"strings"
)

// Optimizer updates parameters from their gradients.
type Optimizer interface {
	Name() string
	Step(params []*Param)
}

// OptimizerByName returns an optimizer with the usual default learning rate.
func OptimizerByName(name string) (Optimizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sgd":
		return &SGD{LearningRate: 0.01}, nil
	case "adam":
		return NewAdam(0.001), nil
	case "rmsprop":
		return &RMSprop{LearningRate: 0.001, Rho: 0.9, Epsilon: 1e-7, state: map[*Param][]float64{}}, nil
	case "adagrad":
		return &Adagrad{LearningRate: 0.001, Initial: 0.1, Epsilon: 1e-7, state: map[*Param][]float64{}}, nil
	}
	return nil, fmt.Errorf("unknown optimizer %q (valid: adam, adagrad, rmsprop, sgd)", name)
}

// SGD is plain gradient descent.
type SGD struct {
	LearningRate float64
}

func (*SGD) Name() string { return "sgd" }

func (o *SGD) Step(params []*Param) {
	for _, p := range params {
		for i, g := range p.Grad.Data {
			p.Value.Data[i] -= o.LearningRate * g
		}
	}
}

// Adam keeps bias-corrected first and second moment estimates.
type Adam struct {
	LearningRate, Beta1, Beta2, Epsilon float64

	t int
	m map[*Param][]float64
	v map[*Param][]float64
}

// NewAdam returns Adam with beta1 0.9, beta2 0.999 and epsilon 1e-7.
func NewAdam(lr float64) *Adam {
	return &Adam{
		LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7,
		m: map[*Param][]float64{}, v: map[*Param][]float64{},
	}
}

func (*Adam) Name() string { return "adam" }

func (o *Adam) Step(params []*Param) {
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		m, ok := o.m[p]
		if !ok {
			m = make([]float64, p.Value.Len())
			o.m[p] = m
			o.v[p] = make([]float64, p.Value.Len())
		}
		v := o.v[p]
		for i, g := range p.Grad.Data {
			m[i] = o.Beta1*m[i] + (1-o.Beta1)*g
			v[i] = o.Beta2*v[i] + (1-o.Beta2)*g*g
			p.Value.Data[i] -= o.LearningRate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + o.Epsilon)
		}
	}
}

// RMSprop divides by a moving average of squared gradients.
type RMSprop struct {
	LearningRate, Rho, Epsilon float64

	state map[*Param][]float64
}

func (*RMSprop) Name() string { return "rmsprop" }

func (o *RMSprop) Step(params []*Param) {
	for _, p := range params {
		s, ok := o.state[p]
		if !ok {
			s = make([]float64, p.Value.Len())
			o.state[p] = s
		}
		for i, g := range p.Grad.Data {
			s[i] = o.Rho*s[i] + (1-o.Rho)*g*g
			p.Value.Data[i] -= o.LearningRate * g / (math.Sqrt(s[i]) + o.Epsilon)
		}
	}
}

// Adagrad accumulates squared gradients from an initial value.
type Adagrad struct {
	LearningRate, Initial, Epsilon float64

	state map[*Param][]float64
}

func (*Adagrad) Name() string { return "adagrad" }

func (o *Adagrad) Step(params []*Param) {
	for _, p := range params {
		s, ok := o.state[p]
		if !ok {
			s = make([]float64, p.Value.Len())
			for i := range s {
				s[i] = o.Initial
			}
			o.state[p] = s
		}
		for i, g := range p.Grad.Data {
			s[i] += g * g
			p.Value.Data[i] -= o.LearningRate * g / (math.Sqrt(s[i]) + o.Epsilon)
		}
	}
}
