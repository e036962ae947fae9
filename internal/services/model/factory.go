package model

import (
	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/config"
)

// New builds the model named by tr.Model for samples of sampleShape.
func New(tr config.Training, sampleShape []int) (service.Model, error) {
	if len(sampleShape) == 0 {
		return nil, errs.Configuration("new model", "empty sample shape")
	}
	switch tr.Model {
	case "linear", "":
		dim := 1
		for _, d := range sampleShape {
			dim *= d
		}
		return NewLinear(dim, tr.Seed), nil
	case "step_linear":
		if len(sampleShape) != 2 {
			return nil, errs.Configuration("new model", "step_linear needs [T,F] samples, got %v", sampleShape)
		}
		return NewStepLinear(sampleShape[1], tr.Seed), nil
	default:
		return nil, errs.Configuration("new model", "unknown model %q", tr.Model)
	}
}

// NewOptimizer builds the optimizer named by tr.Optimizer over m's parameters.
func NewOptimizer(tr config.Training, m service.Model) (service.Optimizer, error) {
	switch tr.Optimizer {
	case "adam", "":
		return NewAdam(m.Parameters(), tr.LearningRate), nil
	case "sgd":
		return NewSGD(m.Parameters(), tr.LearningRate), nil
	default:
		return nil, errs.Configuration("new optimizer", "unknown optimizer %q", tr.Optimizer)
	}
}
