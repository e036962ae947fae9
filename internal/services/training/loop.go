package training

import (
	"context"
	"math"
	"time"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
	"FinTrain/internal/domain/service"
	"FinTrain/internal/services/dataset"
	"FinTrain/pkg/config"
	"FinTrain/pkg/logger"
)

// BatchSource is one pass worth of batches for a phase.
type BatchSource interface {
	NumBatches() int
	Each(ctx context.Context, fn func(dataset.Batch) error) error
}

// Loaders are the batch sources of one run. Test is optional.
type Loaders struct {
	Train BatchSource
	Valid BatchSource
	Test  BatchSource
}

// NewLoaders adapts dataset loaders. Nil loaders stay unset.
func NewLoaders(train, valid, test *dataset.Loader) Loaders {
	var l Loaders
	if train != nil {
		l.Train = train
	}
	if valid != nil {
		l.Valid = valid
	}
	if test != nil {
		l.Test = test
	}
	return l
}

// Loop runs a fixed number of epochs of train, validate and optional test.
type Loop struct {
	model   service.Model
	opt     service.Optimizer
	device  service.ComputeContext
	loss    *RMSE
	epochs  int
	debug   bool
	runID   string
	metrics repository.Metrics
	sink    repository.ProgressSink
	log     *logger.Logger
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

func WithMetrics(m repository.Metrics) LoopOption {
	return func(l *Loop) { l.metrics = m }
}

func WithSink(s repository.ProgressSink) LoopOption {
	return func(l *Loop) { l.sink = s }
}

func WithLogger(log *logger.Logger) LoopOption {
	return func(l *Loop) { l.log = log }
}

func WithRunID(id string) LoopOption {
	return func(l *Loop) { l.runID = id }
}

// NewLoop builds a loop for tr.NumEpochs epochs scoring sequence outputs at
// timestep tr.NumRows-1. Debug mode follows tr.Debug.
func NewLoop(model service.Model, opt service.Optimizer, device service.ComputeContext, tr config.Training, opts ...LoopOption) *Loop {
	l := &Loop{
		model:   model,
		opt:     opt,
		device:  device,
		loss:    NewRMSE(tr.NumRows),
		epochs:  tr.NumEpochs,
		debug:   tr.Debug,
		metrics: nopMetrics{},
		sink:    nopSink{},
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run trains for the configured number of epochs and returns the metrics of
// every completed epoch. ctx is checked only between epochs; a phase that has
// started always runs to completion.
func (l *Loop) Run(ctx context.Context, loaders Loaders) ([]models.EpochMetrics, error) {
	if l.epochs < 1 {
		return nil, errs.Configuration("training loop", "num_epochs=%d must be positive", l.epochs)
	}
	if err := checkSource(models.PhaseTrain, loaders.Train, true); err != nil {
		return nil, err
	}
	if err := checkSource(models.PhaseValid, loaders.Valid, true); err != nil {
		return nil, err
	}
	if err := checkSource(models.PhaseTest, loaders.Test, false); err != nil {
		return nil, err
	}

	phaseCtx := context.WithoutCancel(ctx)
	history := make([]models.EpochMetrics, 0, l.epochs)
	for epoch := 1; epoch <= l.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return history, err
		}

		m := models.EpochMetrics{Epoch: epoch}
		var err error
		if m.Train, err = l.runPhase(phaseCtx, models.PhaseTrain, loaders.Train, epoch); err != nil {
			return history, err
		}
		if m.Valid, err = l.runPhase(phaseCtx, models.PhaseValid, loaders.Valid, epoch); err != nil {
			return history, err
		}
		if loaders.Test != nil {
			v, err := l.runPhase(phaseCtx, models.PhaseTest, loaders.Test, epoch)
			if err != nil {
				return history, err
			}
			m.Test = &v
		}

		history = append(history, m)
		l.log.Info(m.String(), logger.Int("epoch", epoch), logger.String("run_id", l.runID))
		l.emit(ctx, models.ProgressEvent{Kind: models.EventEpochFinished, Epoch: epoch, Metrics: &m})
	}
	return history, nil
}

func checkSource(phase models.Phase, src BatchSource, required bool) error {
	if src == nil {
		if required {
			return errs.Configuration("training loop", "no %s loader", phase)
		}
		return nil
	}
	if src.NumBatches() == 0 {
		return errs.Configuration("training loop", "%s phase has zero batches", phase)
	}
	return nil
}

// runPhase makes one pass over src and returns the mean batch loss rounded to
// six decimals. Only the train phase updates parameters.
func (l *Loop) runPhase(ctx context.Context, phase models.Phase, src BatchSource, epoch int) (float64, error) {
	train := phase == models.PhaseTrain
	l.model.SetTraining(train)

	var sum float64
	var n int
	var stepErr error
	err := src.Each(ctx, func(b dataset.Batch) error {
		start := time.Now()
		loss, err := l.step(b, train)
		if err != nil {
			stepErr = errs.InPhase(err, string(phase), b.Index)
			return stepErr
		}
		l.metrics.RecordBatch(string(phase), time.Since(start).Seconds())
		sum += loss
		n++

		if l.debug {
			l.log.Debug("batch",
				logger.String("phase", string(phase)),
				logger.Int("epoch", epoch),
				logger.Int("batch", b.Index),
				logger.Int("size", b.Size()),
				logger.Ints("input_shape", b.Inputs.Shape()),
				logger.Float64("first_label", b.Labels[0]),
				logger.Float64("loss", loss),
			)
			l.emit(ctx, models.ProgressEvent{Kind: models.EventBatch, Epoch: epoch, Phase: phase, Batch: b.Index, Loss: loss})
		}
		return nil
	})
	if stepErr != nil {
		return 0, stepErr
	}
	if err != nil {
		return 0, errs.InPhase(err, string(phase), errs.NoIndex)
	}
	if n == 0 {
		return 0, errs.Configuration("training loop", "%s phase produced zero batches", phase)
	}

	mean := round6(sum / float64(n))
	l.metrics.RecordEpochLoss(string(phase), mean)
	l.emit(ctx, models.ProgressEvent{Kind: models.EventPhaseFinished, Epoch: epoch, Phase: phase, Loss: mean})
	return mean, nil
}

func (l *Loop) step(b dataset.Batch, train bool) (float64, error) {
	x := l.device.ToDevice(b.Inputs)
	if train {
		l.opt.ZeroGrad()
	}

	out, err := l.model.Forward(x)
	if err != nil {
		return 0, err
	}
	shape := l.model.OutputShape()
	loss, err := l.loss.Evaluate(out, shape, b.Labels)
	if err != nil {
		return 0, err
	}
	if l.debug {
		l.log.Debug("forward", logger.Ints("output_shape", out.Shape()), logger.String("output", shape.String()))
	}
	if !train {
		return loss, nil
	}

	grad, err := l.loss.Gradient(out, shape, b.Labels)
	if err != nil {
		return 0, err
	}
	if err := l.model.Backward(grad); err != nil {
		return 0, err
	}
	l.opt.Step()
	return loss, nil
}

// emit forwards ev to the sink. Sink failures are logged and never abort
// training.
func (l *Loop) emit(ctx context.Context, ev models.ProgressEvent) {
	ev.RunID = l.runID
	ev.Time = time.Now().UTC()
	if err := l.sink.Emit(ctx, ev); err != nil {
		l.log.Warn("progress sink failed", logger.String("kind", string(ev.Kind)), logger.Error(err))
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

type nopMetrics struct{}

func (nopMetrics) RecordEpochLoss(string, float64) {}
func (nopMetrics) RecordBatch(string, float64) {}
func (nopMetrics) RecordError(string) {}
func (nopMetrics) RecordExamples(string, int) {}

type nopSink struct{}

func (nopSink) Emit(context.Context, models.ProgressEvent) error { return nil }
