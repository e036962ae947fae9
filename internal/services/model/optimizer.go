package model

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"FinTrain/internal/domain/service"
)

// SGD is plain stochastic gradient descent.
type SGD struct {
	params []*service.Parameter
	lr     float64
}

var _ service.Optimizer = (*SGD)(nil)

func NewSGD(params []*service.Parameter, lr float64) *SGD {
	return &SGD{params: params, lr: lr}
}

func (o *SGD) ZeroGrad() { zeroGrad(o.params) }

func (o *SGD) Step() {
	for _, p := range o.params {
		floats.AddScaled(p.Value, -o.lr, p.Grad)
	}
}

// Adam defaults.
const (
	AdamBeta1   = 0.9
	AdamBeta2   = 0.999
	AdamEpsilon = 1e-8
)

// Adam keeps bias-corrected first and second moment estimates per value.
type Adam struct {
	params []*service.Parameter
	lr     float64
	m, v   [][]float64
	t      int
}

var _ service.Optimizer = (*Adam)(nil)

func NewAdam(params []*service.Parameter, lr float64) *Adam {
	o := &Adam{params: params, lr: lr, m: make([][]float64, len(params)), v: make([][]float64, len(params))}
	for i, p := range params {
		o.m[i] = make([]float64, len(p.Value))
		o.v[i] = make([]float64, len(p.Value))
	}
	return o
}

func (o *Adam) ZeroGrad() { zeroGrad(o.params) }

func (o *Adam) Step() {
	o.t++
	c1 := 1 - math.Pow(AdamBeta1, float64(o.t))
	c2 := 1 - math.Pow(AdamBeta2, float64(o.t))
	for i, p := range o.params {
		m, v := o.m[i], o.v[i]
		for j, g := range p.Grad {
			m[j] = AdamBeta1*m[j] + (1-AdamBeta1)*g
			v[j] = AdamBeta2*v[j] + (1-AdamBeta2)*g*g
			p.Value[j] -= o.lr * (m[j] / c1) / (math.Sqrt(v[j]/c2) + AdamEpsilon)
		}
	}
}

func zeroGrad(params []*service.Parameter) {
	for _, p := range params {
		for i := range p.Grad {
			p.Grad[i] = 0
		}
	}
}
