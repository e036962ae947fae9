// Package training drives the epoch loop over a model, an optimizer and the
// RMSE loss.
package training

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

// RMSE is root mean squared error over one prediction per example. Sequence
// outputs are scored at timestep numRows-1 only.
type RMSE struct {
	numRows int
}

func NewRMSE(numRows int) *RMSE {
	return &RMSE{numRows: numRows}
}

// ReduceOutput extracts one prediction per example from a model output.
// ShapeScalar expects [B, 1]; ShapeSequence expects [B, T, 1] with
// T >= numRows and picks timestep numRows-1.
func ReduceOutput(out tensor.Tensor, shape service.OutputShape, numRows int) ([]float64, error) {
	switch shape {
	case service.ShapeScalar:
		if out.Rank() != 2 || out.Dim(1) != 1 {
			return nil, errs.ShapeMismatch("rmse", "%s output must be [batch,1], got %v", shape, out.Shape())
		}
		return append([]float64(nil), out.Data()...), nil

	case service.ShapeSequence:
		if out.Rank() != 3 || out.Dim(2) != 1 {
			return nil, errs.ShapeMismatch("rmse", "%s output must be [batch,T,1], got %v", shape, out.Shape())
		}
		if numRows < 1 || out.Dim(1) < numRows {
			return nil, errs.ShapeMismatch("rmse", "%s output has %d timesteps, need %d", shape, out.Dim(1), numRows)
		}
		pred := make([]float64, out.Dim(0))
		for b := range pred {
			pred[b] = out.At(b, numRows-1, 0)
		}
		return pred, nil

	default:
		return nil, errs.ShapeMismatch("rmse", "unsupported output shape %s for %v", shape, out.Shape())
	}
}

// Evaluate returns sqrt(mean((pred-labels)^2)).
func (l *RMSE) Evaluate(out tensor.Tensor, shape service.OutputShape, labels []float64) (float64, error) {
	diff, err := l.residuals(out, shape, labels)
	if err != nil {
		return 0, err
	}
	return rmse(diff), nil
}

// Gradient returns dLoss/dOutput in the output's own shape. Entries outside
// the scored timestep are zero. A zero loss has a zero gradient.
func (l *RMSE) Gradient(out tensor.Tensor, shape service.OutputShape, labels []float64) (tensor.Tensor, error) {
	diff, err := l.residuals(out, shape, labels)
	if err != nil {
		return tensor.Tensor{}, err
	}

	grad := tensor.MustNew(out.Shape()...)
	loss := rmse(diff)
	if loss == 0 {
		return grad, nil
	}
	floats.Scale(1/(float64(len(diff))*loss), diff)

	for b, g := range diff {
		if shape == service.ShapeSequence {
			grad.Set(g, b, l.numRows-1, 0)
		} else {
			grad.Set(g, b, 0)
		}
	}
	return grad, nil
}

func (l *RMSE) residuals(out tensor.Tensor, shape service.OutputShape, labels []float64) ([]float64, error) {
	pred, err := ReduceOutput(out, shape, l.numRows)
	if err != nil {
		return nil, err
	}
	if len(pred) != len(labels) {
		return nil, errs.ShapeMismatch("rmse", "%d predictions for %d labels", len(pred), len(labels))
	}
	floats.Sub(pred, labels)
	return pred, nil
}

func rmse(diff []float64) float64 {
	return math.Sqrt(floats.Dot(diff, diff) / float64(len(diff)))
}
