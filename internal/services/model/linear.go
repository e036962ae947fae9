// Package model holds the reference models and optimizers a run can be
// configured with.
package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

// Linear flattens each sample and maps it to a single prediction: [B, ...] -> [B, 1].
type Linear struct {
	inputDim int
	weight   *service.Parameter
	bias     *service.Parameter
	training bool
	input    tensor.Tensor
}

var _ service.Model = (*Linear)(nil)

// NewLinear initialises weights uniformly in +-1/sqrt(inputDim).
func NewLinear(inputDim int, seed int64) *Linear {
	m := &Linear{
		inputDim: inputDim,
		weight:   service.NewParameter("linear.weight", inputDim),
		bias:     service.NewParameter("linear.bias", 1),
		training: true,
	}
	initUniform(m.weight.Value, inputDim, seed)
	return m
}

func (m *Linear) Name() string { return "linear" }
func (m *Linear) OutputShape() service.OutputShape { return service.ShapeScalar }
func (m *Linear) SetTraining(on bool) { m.training = on }
func (m *Linear) Parameters() []*service.Parameter { return []*service.Parameter{m.weight, m.bias} }

func (m *Linear) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	if x.Rank() < 2 || x.Len()/x.Dim(0) != m.inputDim {
		return tensor.Tensor{}, errs.ShapeMismatch("linear forward", "input %v does not flatten to %d features", x.Shape(), m.inputDim)
	}
	out := tensor.MustNew(x.Dim(0), 1)
	for b := 0; b < x.Dim(0); b++ {
		out.Data()[b] = floats.Dot(m.weight.Value, x.Row(b)) + m.bias.Value[0]
	}
	if m.training {
		m.input = x
	}
	return out, nil
}

func (m *Linear) Backward(grad tensor.Tensor) error {
	if !m.training {
		return fmt.Errorf("linear backward: model is in eval mode")
	}
	if m.input.Len() == 0 || grad.Len() != m.input.Dim(0) {
		return errs.ShapeMismatch("linear backward", "gradient %v does not match last input %v", grad.Shape(), m.input.Shape())
	}
	for b, g := range grad.Data() {
		floats.AddScaled(m.weight.Grad, g, m.input.Row(b))
		m.bias.Grad[0] += g
	}
	return nil
}

// StepLinear applies one shared linear map to every timestep:
// [B, T, F] -> [B, T, 1].
type StepLinear struct {
	numFeatures int
	weight      *service.Parameter
	bias        *service.Parameter
	training    bool
	input       tensor.Tensor
}

var _ service.Model = (*StepLinear)(nil)

func NewStepLinear(numFeatures int, seed int64) *StepLinear {
	m := &StepLinear{
		numFeatures: numFeatures,
		weight:      service.NewParameter("step_linear.weight", numFeatures),
		bias:        service.NewParameter("step_linear.bias", 1),
		training:    true,
	}
	initUniform(m.weight.Value, numFeatures, seed)
	return m
}

func (m *StepLinear) Name() string { return "step_linear" }
func (m *StepLinear) OutputShape() service.OutputShape { return service.ShapeSequence }
func (m *StepLinear) SetTraining(on bool) { m.training = on }
func (m *StepLinear) Parameters() []*service.Parameter { return []*service.Parameter{m.weight, m.bias} }

func (m *StepLinear) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	if x.Rank() != 3 || x.Dim(2) != m.numFeatures {
		return tensor.Tensor{}, errs.ShapeMismatch("step_linear forward", "input %v is not [batch,T,%d]", x.Shape(), m.numFeatures)
	}
	steps := x.Len() / m.numFeatures
	out := tensor.MustNew(x.Dim(0), x.Dim(1), 1)
	for s := 0; s < steps; s++ {
		row := x.Data()[s*m.numFeatures : (s+1)*m.numFeatures]
		out.Data()[s] = floats.Dot(m.weight.Value, row) + m.bias.Value[0]
	}
	if m.training {
		m.input = x
	}
	return out, nil
}

func (m *StepLinear) Backward(grad tensor.Tensor) error {
	if !m.training {
		return fmt.Errorf("step_linear backward: model is in eval mode")
	}
	if m.input.Len() == 0 || grad.Len()*m.numFeatures != m.input.Len() {
		return errs.ShapeMismatch("step_linear backward", "gradient %v does not match last input %v", grad.Shape(), m.input.Shape())
	}
	for s, g := range grad.Data() {
		if g == 0 {
			continue
		}
		floats.AddScaled(m.weight.Grad, g, m.input.Data()[s*m.numFeatures:(s+1)*m.numFeatures])
		m.bias.Grad[0] += g
	}
	return nil
}

func initUniform(dst []float64, fanIn int, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	bound := 1 / math.Sqrt(float64(max(fanIn, 1)))
	for i := range dst {
		dst[i] = (rng.Float64()*2 - 1) * bound
	}
}
