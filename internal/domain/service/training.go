package service

import (
	"context"
	"fmt"

	"FinTrain/internal/domain/models"
	"FinTrain/pkg/tensor"
)

// OutputShape declares the shape a model's output takes, so the loss can
// reduce it to one prediction per example without inspecting ranks.
type OutputShape int

const (
	// ShapeUnknown is the zero value and is always rejected.
	ShapeUnknown OutputShape = iota
	// ShapeScalar is [batch, 1].
	ShapeScalar
	// ShapeSequence is [batch, T, 1], one prediction per input timestep.
	ShapeSequence
)

func (s OutputShape) String() string {
	switch s {
	case ShapeScalar:
		return "scalar"
	case ShapeSequence:
		return "sequence"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Parameter is one named, trainable block of model weights with its
// accumulated gradient.
type Parameter struct {
	Name  string
	Value []float64
	Grad  []float64
}

// NewParameter allocates a parameter of n values.
func NewParameter(name string, n int) *Parameter {
	return &Parameter{Name: name, Value: make([]float64, n), Grad: make([]float64, n)}
}

// Model maps a batch tensor [batch, ...] to an output tensor whose layout is
// described by OutputShape.
type Model interface {
	Name() string
	OutputShape() OutputShape
	// SetTraining toggles gradient bookkeeping. Backward fails when disabled.
	SetTraining(on bool)
	Forward(batch tensor.Tensor) (tensor.Tensor, error)
	// Backward accumulates parameter gradients for the last Forward call given
	// dLoss/dOutput.
	Backward(gradOut tensor.Tensor) error
	Parameters() []*Parameter
}

// Optimizer updates model parameters from accumulated gradients.
type Optimizer interface {
	ZeroGrad()
	Step()
}

// Encoder turns a window into the tensor a model consumes, one sample at a time.
type Encoder interface {
	Encode(w models.Window) (tensor.Tensor, error)
	SampleShape() []int
}

// ComputeContext is the device a run executes on. It is acquired once per run
// and released when the run ends.
type ComputeContext interface {
	Device() string
	Acquire(ctx context.Context) error
	// ToDevice moves a batch onto the device.
	ToDevice(t tensor.Tensor) tensor.Tensor
	Release() error
}
