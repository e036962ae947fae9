package training

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/service"
	"FinTrain/internal/services/dataset"
	"FinTrain/pkg/config"
	"FinTrain/pkg/tensor"
)

// biasModel predicts one learnable constant for every example.
type biasModel struct {
	bias     *service.Parameter
	training bool
	calls    *[]string
	failOn   int
	forwards int
}

func newBiasModel(calls *[]string) *biasModel {
	return &biasModel{bias: service.NewParameter("bias", 1), calls: calls, failOn: -1}
}

func (m *biasModel) Name() string { return "bias" }
func (m *biasModel) OutputShape() service.OutputShape { return service.ShapeScalar }
func (m *biasModel) SetTraining(on bool) { m.training = on }
func (m *biasModel) Parameters() []*service.Parameter { return []*service.Parameter{m.bias} }

func (m *biasModel) Forward(x tensor.Tensor) (tensor.Tensor, error) {
	m.forwards++
	if m.forwards == m.failOn {
		return tensor.Tensor{}, errs.ShapeMismatch("forward", "input %v", x.Shape())
	}
	*m.calls = append(*m.calls, fmt.Sprintf("forward(training=%v)", m.training))
	out := tensor.MustNew(x.Dim(0), 1)
	for i := range out.Data() {
		out.Data()[i] = m.bias.Value[0]
	}
	return out, nil
}

func (m *biasModel) Backward(grad tensor.Tensor) error {
	if !m.training {
		return fmt.Errorf("backward in eval mode")
	}
	*m.calls = append(*m.calls, "backward")
	for _, g := range grad.Data() {
		m.bias.Grad[0] += g
	}
	return nil
}

type recordingOptimizer struct {
	model *biasModel
	lr    float64
	calls *[]string
}

func (o *recordingOptimizer) ZeroGrad() {
	*o.calls = append(*o.calls, "zero_grad")
	o.model.bias.Grad[0] = 0
}

func (o *recordingOptimizer) Step() {
	*o.calls = append(*o.calls, "step")
	o.model.bias.Value[0] -= o.lr * o.model.bias.Grad[0]
}

// staticSource replays fixed batches.
type staticSource struct {
	batches []dataset.Batch
}

func (s staticSource) NumBatches() int { return len(s.batches) }

func (s staticSource) Each(_ context.Context, fn func(dataset.Batch) error) error {
	for _, b := range s.batches {
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func source(labels ...[]float64) staticSource {
	var s staticSource
	for i, l := range labels {
		s.batches = append(s.batches, dataset.Batch{Index: i, Inputs: tensor.MustNew(len(l), 3), Labels: l})
	}
	return s
}

type memorySink struct {
	mu     sync.Mutex
	events []models.ProgressEvent
	onEmit func(models.ProgressEvent)
	err    error
}

func (s *memorySink) Emit(_ context.Context, ev models.ProgressEvent) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	if s.onEmit != nil {
		s.onEmit(ev)
	}
	return s.err
}

func (s *memorySink) kinds(kind models.EventKind) []models.ProgressEvent {
	var out []models.ProgressEvent
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

func loopTraining(epochs int) config.Training {
	return config.Training{NumRows: 3, NumEpochs: epochs}
}

func TestLoop_RunReportsEveryEpoch(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, lr: 0.1, calls: &calls}
	sink := &memorySink{}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(3), WithSink(sink), WithRunID("run-1"))
	history, err := loop.Run(context.Background(), Loaders{
		Train: source([]float64{1, 1}, []float64{1, 1}),
		Valid: source([]float64{1, 1}),
	})
	require.NoError(t, err)
	require.Len(t, history, 3)

	for i, h := range history {
		assert.Equal(t, i+1, h.Epoch)
		assert.Nil(t, h.Test)
		assert.True(t, strings.HasSuffix(h.String(), "test output: no test selected"))
	}
	// The bias moves towards the label, so the loss shrinks.
	assert.Less(t, history[2].Train, history[0].Train)
	assert.Less(t, history[2].Valid, history[0].Valid)

	epochs := sink.kinds(models.EventEpochFinished)
	require.Len(t, epochs, 3)
	assert.Equal(t, "run-1", epochs[0].RunID)
	assert.Equal(t, history[1], *epochs[1].Metrics)
}

func TestLoop_PhaseOrderAndEvalHasNoStep(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, lr: 0.1, calls: &calls}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(1))
	_, err := loop.Run(context.Background(), Loaders{
		Train: source([]float64{1}),
		Valid: source([]float64{1}),
		Test:  source([]float64{1}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"zero_grad", "forward(training=true)", "backward", "step",
		"forward(training=false)",
		"forward(training=false)",
	}, calls)
}

func TestLoop_PhaseLossIsRoundedMean(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, calls: &calls}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(1))
	history, err := loop.Run(context.Background(), Loaders{
		Train: source([]float64{1}, []float64{2}),
		Valid: source([]float64{1.0 / 3.0}),
		Test:  source([]float64{0.25}, []float64{0.5}),
	})
	require.NoError(t, err)
	require.Len(t, history, 1)

	assert.Equal(t, 1.5, history[0].Train)
	assert.Equal(t, 0.333333, history[0].Valid)
	require.NotNil(t, history[0].Test)
	assert.Equal(t, 0.375, *history[0].Test)
	assert.Equal(t, "train loss: 1.5, valid loss: 0.333333, test output: 0.375", history[0].String())
}

func TestLoop_ZeroBatchesIsConfigurationError(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, calls: &calls}
	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(2))

	_, err := loop.Run(context.Background(), Loaders{Train: source(), Valid: source([]float64{1})})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = loop.Run(context.Background(), Loaders{Train: source([]float64{1})})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = loop.Run(context.Background(), Loaders{
		Train: source([]float64{1}), Valid: source([]float64{1}), Test: source(),
	})
	assert.True(t, errors.Is(err, errs.ErrConfiguration))
	assert.Empty(t, calls)
}

func TestLoop_ErrorCarriesPhaseAndBatch(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	m.failOn = 4
	opt := &recordingOptimizer{model: m, calls: &calls}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(1))
	history, err := loop.Run(context.Background(), Loaders{
		Train: source([]float64{1}, []float64{1}),
		Valid: source([]float64{1}, []float64{1}),
	})
	require.Error(t, err)
	assert.Empty(t, history)

	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "valid", e.Phase)
	assert.Equal(t, 1, e.Index)
}

func TestLoop_CancellationBetweenEpochs(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, calls: &calls}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &memorySink{}
	sink.onEmit = func(ev models.ProgressEvent) {
		// Cancelling mid-phase must not cut the running epoch short.
		if ev.Kind == models.EventPhaseFinished && ev.Phase == models.PhaseTrain && ev.Epoch == 2 {
			cancel()
		}
	}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(5), WithSink(sink))
	history, err := loop.Run(ctx, Loaders{Train: source([]float64{1}), Valid: source([]float64{1})})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, history, 2)
}

func TestLoop_SinkFailureDoesNotAbort(t *testing.T) {
	var calls []string
	m := newBiasModel(&calls)
	opt := &recordingOptimizer{model: m, calls: &calls}
	sink := &memorySink{err: errors.New("broker down")}

	loop := NewLoop(m, opt, &CPUContext{}, loopTraining(2), WithSink(sink))
	history, err := loop.Run(context.Background(), Loaders{Train: source([]float64{1}), Valid: source([]float64{1})})
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestNewLoaders_NilTest(t *testing.T) {
	l := NewLoaders(nil, nil, nil)
	assert.Nil(t, l.Test)
}
