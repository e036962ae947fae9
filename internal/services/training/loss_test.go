package training

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

func filled(v float64, shape ...int) tensor.Tensor {
	t := tensor.MustNew(shape...)
	for i := range t.Data() {
		t.Data()[i] = v
	}
	return t
}

func constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestRMSE_ScalarBatch(t *testing.T) {
	loss := NewRMSE(30)
	out := filled(0.5, 64, 1)

	v, err := loss.Evaluate(out, service.ShapeScalar, constant(1.5, 64))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = loss.Evaluate(out, service.ShapeScalar, constant(0.5, 64))
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestRMSE_SequenceBatchScoresLastWindowRow(t *testing.T) {
	loss := NewRMSE(30)
	out := filled(100, 64, 30, 1)
	for b := 0; b < 64; b++ {
		out.Set(float64(b), b, 29, 0)
	}
	labels := make([]float64, 64)
	for b := range labels {
		labels[b] = float64(b) + 2
	}

	v, err := loss.Evaluate(out, service.ShapeSequence, labels)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-12)

	// Longer sequences are fine; only timestep num_rows-1 is scored.
	long := filled(7, 2, 40, 1)
	v, err = loss.Evaluate(long, service.ShapeSequence, []float64{7, 7})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)
}

func TestRMSE_ShapeMismatch(t *testing.T) {
	loss := NewRMSE(30)
	cases := []struct {
		name   string
		out    tensor.Tensor
		shape  service.OutputShape
		labels int
	}{
		{"unknown tag", filled(0, 4, 1), service.ShapeUnknown, 4},
		{"scalar rank 3", filled(0, 4, 30, 1), service.ShapeScalar, 4},
		{"scalar wide", filled(0, 4, 2), service.ShapeScalar, 4},
		{"sequence rank 2", filled(0, 4, 1), service.ShapeSequence, 4},
		{"sequence too short", filled(0, 4, 29, 1), service.ShapeSequence, 4},
		{"sequence trailing dim", filled(0, 4, 30, 2), service.ShapeSequence, 4},
		{"label count", filled(0, 4, 1), service.ShapeScalar, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := loss.Evaluate(c.out, c.shape, make([]float64, c.labels))
			require.Error(t, err)
			assert.True(t, errors.Is(err, errs.ErrShapeMismatch))

			_, err = loss.Gradient(c.out, c.shape, make([]float64, c.labels))
			assert.True(t, errors.Is(err, errs.ErrShapeMismatch))
		})
	}
}

func TestRMSE_NonNegativeAndZeroOnlyWhenEqual(t *testing.T) {
	loss := NewRMSE(1)
	preds := [][]float64{{0, 0, 0}, {1, -2, 3}, {1e-9, 0, 0}, {-5, 5, 0.25}}
	labels := []float64{0, 0, 0}
	for _, p := range preds {
		out, err := tensor.FromData(append([]float64(nil), p...), len(p), 1)
		require.NoError(t, err)
		v, err := loss.Evaluate(out, service.ShapeScalar, labels)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, 0.0)

		equal := p[0] == 0 && p[1] == 0 && p[2] == 0
		assert.Equal(t, equal, v == 0, "pred %v", p)
	}
}

func TestRMSE_GradientMatchesFiniteDifference(t *testing.T) {
	loss := NewRMSE(2)
	out, err := tensor.FromData([]float64{9, 0.3, 9, -0.7, 9, 1.1}, 3, 2, 1)
	require.NoError(t, err)
	labels := []float64{0.1, 0.2, 0.4}

	grad, err := loss.Gradient(out, service.ShapeSequence, labels)
	require.NoError(t, err)
	assert.Equal(t, out.Shape(), grad.Shape())

	const h = 1e-6
	for i := range out.Data() {
		orig := out.Data()[i]
		out.Data()[i] = orig + h
		up, _ := loss.Evaluate(out, service.ShapeSequence, labels)
		out.Data()[i] = orig - h
		down, _ := loss.Evaluate(out, service.ShapeSequence, labels)
		out.Data()[i] = orig

		assert.InDelta(t, (up-down)/(2*h), grad.Data()[i], 1e-6, "index %d", i)
	}

	zero, err := loss.Gradient(filled(1, 2, 1), service.ShapeScalar, []float64{1, 1})
	require.NoError(t, err)
	for _, g := range zero.Data() {
		assert.False(t, math.IsNaN(g))
		assert.Equal(t, 0.0, g)
	}
}
