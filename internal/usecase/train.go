package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	drepo "FinTrain/internal/domain/repository"
	"FinTrain/internal/domain/service"
	"FinTrain/internal/services/dataset"
	"FinTrain/internal/services/features"
	"FinTrain/internal/services/model"
	"FinTrain/internal/services/training"
	"FinTrain/pkg/config"
	applogger "FinTrain/pkg/logger"
)

// TrainResult summarises a finished or aborted run.
type TrainResult struct {
	RunID    string
	Columns  []string
	Train    int
	Valid    int
	Test     int
	History  []models.EpochMetrics
	Duration time.Duration
}

// Trainer runs one training job end to end: load, clean, augment, build the
// dataset, train, checkpoint.
type Trainer struct {
	source      drepo.CandleSource
	sink        drepo.ProgressSink
	metrics     drepo.Metrics
	log         *applogger.Logger
	tr          config.Training
	checkpoints drepo.CheckpointStore
	loadName    string
	saveName    string
	newRunID    func() string
	newDevice   func(device string) (service.ComputeContext, error)
}

// TrainerOption configures optional collaborators of a Trainer.
type TrainerOption func(*Trainer)

// WithCheckpoints loads parameters from loadName before training and saves
// them under saveName afterwards. Empty names skip the step.
func WithCheckpoints(store drepo.CheckpointStore, loadName, saveName string) TrainerOption {
	return func(t *Trainer) {
		t.checkpoints = store
		t.loadName = loadName
		t.saveName = saveName
	}
}

// WithRunIDGenerator overrides uuid run identifiers.
func WithRunIDGenerator(fn func() string) TrainerOption {
	return func(t *Trainer) { t.newRunID = fn }
}

// WithDeviceFactory overrides how the compute context is created.
func WithDeviceFactory(fn func(device string) (service.ComputeContext, error)) TrainerOption {
	return func(t *Trainer) { t.newDevice = fn }
}

// NewTrainer creates a Trainer. sink and metrics are required; use no-op
// implementations to disable them.
func NewTrainer(
	source drepo.CandleSource,
	sink drepo.ProgressSink,
	metrics drepo.Metrics,
	log *applogger.Logger,
	tr config.Training,
	opts ...TrainerOption,
) *Trainer {
	if log == nil {
		log = applogger.Nop()
	}
	t := &Trainer{
		source:    source,
		sink:      sink,
		metrics:   metrics,
		log:       log,
		tr:        tr,
		newRunID:  uuid.NewString,
		newDevice: training.NewComputeContext,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run executes the job. Cancelling ctx stops training at the next epoch
// boundary; the run is then reported as failed with the context error.
func (t *Trainer) Run(ctx context.Context) (TrainResult, error) {
	start := time.Now()
	res := TrainResult{RunID: t.newRunID()}
	log := t.log.With(applogger.String("run_id", res.RunID))

	err := t.run(ctx, log, &res)
	res.Duration = time.Since(start)
	if err != nil {
		t.metrics.RecordError(errs.KindOf(err))
		log.Error("training run failed",
			applogger.Error(err),
			applogger.String("kind", errs.KindOf(err)),
			applogger.Int("epochs_completed", len(res.History)),
		)
		t.emit(ctx, res.RunID, models.ProgressEvent{Kind: models.EventRunFailed, Epoch: len(res.History), Error: err.Error()})
		return res, err
	}

	ev := models.ProgressEvent{Kind: models.EventRunFinished, Epoch: len(res.History)}
	if n := len(res.History); n > 0 {
		last := res.History[n-1]
		ev.Metrics = &last
	}
	t.emit(ctx, res.RunID, ev)
	log.Info("training run finished",
		applogger.Int("epochs", len(res.History)),
		applogger.Duration("duration", res.Duration),
	)
	return res, nil
}

func (t *Trainer) run(ctx context.Context, log *applogger.Logger, res *TrainResult) error {
	device, err := t.newDevice(t.tr.Device)
	if err != nil {
		return err
	}
	if err := device.Acquire(ctx); err != nil {
		return err
	}
	defer func() {
		if err := device.Release(); err != nil {
			log.Warn("release device", applogger.Error(err))
		}
	}()

	series, err := t.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	log.Info("loaded candles", applogger.String("symbol", series.Symbol), applogger.Int("rows", series.Len()))

	log.Info("cleaning data")
	if series, err = features.Clean(series); err != nil {
		return err
	}
	if t.tr.Indicators {
		if series, err = features.AddIndicators(series); err != nil {
			return err
		}
	}

	ds, err := dataset.Build(series, t.tr)
	if err != nil {
		return err
	}
	res.Columns = ds.Columns
	res.Train, res.Valid, res.Test = len(ds.Split.Train), len(ds.Split.Valid), len(ds.Split.Test)
	t.metrics.RecordExamples(string(models.PhaseTrain), res.Train)
	t.metrics.RecordExamples(string(models.PhaseValid), res.Valid)
	t.metrics.RecordExamples(string(models.PhaseTest), res.Test)
	log.Info("dataset built",
		applogger.Strings("columns", ds.Columns),
		applogger.Int("windows", ds.NumWindows),
		applogger.Int("labels", ds.NumLabels),
		applogger.Int("train", res.Train),
		applogger.Int("valid", res.Valid),
		applogger.Int("test", res.Test),
	)

	enc, err := dataset.NewEncoder(t.tr, len(ds.Columns))
	if err != nil {
		return err
	}
	mdl, err := model.New(t.tr, enc.SampleShape())
	if err != nil {
		return err
	}
	opt, err := model.NewOptimizer(t.tr, mdl)
	if err != nil {
		return err
	}

	if t.checkpoints != nil && t.loadName != "" {
		if err := t.checkpoints.Load(ctx, mdl, t.loadName); err != nil {
			return err
		}
		log.Info("checkpoint loaded", applogger.String("name", t.loadName))
	}

	t.emit(ctx, res.RunID, models.ProgressEvent{Kind: models.EventRunStarted})
	log.Info("training started",
		applogger.String("model", mdl.Name()),
		applogger.String("device", device.Device()),
		applogger.Int("epochs", t.tr.NumEpochs),
	)

	loop := training.NewLoop(mdl, opt, device, t.tr,
		training.WithMetrics(t.metrics),
		training.WithSink(t.sink),
		training.WithLogger(log),
		training.WithRunID(res.RunID),
	)
	train, valid, test := ds.Loaders(enc, t.tr)
	res.History, err = loop.Run(ctx, training.NewLoaders(train, valid, test))
	if err != nil {
		return err
	}

	if t.checkpoints != nil && t.saveName != "" {
		if err := t.checkpoints.Save(context.WithoutCancel(ctx), mdl, t.saveName); err != nil {
			return err
		}
		log.Info("checkpoint saved", applogger.String("name", t.saveName))
	}
	return nil
}

// emit reports lifecycle events even when ctx is already cancelled.
func (t *Trainer) emit(ctx context.Context, runID string, ev models.ProgressEvent) {
	ev.RunID = runID
	ev.Time = time.Now().UTC()
	if err := t.sink.Emit(context.WithoutCancel(ctx), ev); err != nil {
		t.log.Warn("progress sink failed", applogger.String("kind", string(ev.Kind)), applogger.Error(err))
	}
}
