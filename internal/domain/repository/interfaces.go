package repository

import (
	"context"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/service"
)

// CandleSource loads the raw candle series a run trains on.
type CandleSource interface {
	Load(ctx context.Context) (models.Series, error)
}

// CheckpointStore persists model parameters. It is used only at the start and
// end of a run, never inside the training loop.
type CheckpointStore interface {
	Save(ctx context.Context, model service.Model, name string) error
	Load(ctx context.Context, model service.Model, name string) error
}

// ProgressSink receives the append-only stream of training progress events.
type ProgressSink interface {
	Emit(ctx context.Context, ev models.ProgressEvent) error
}

// Metrics records training observability data.
type Metrics interface {
	RecordEpochLoss(phase string, loss float64)
	RecordBatch(phase string, seconds float64)
	RecordError(kind string)
	RecordExamples(split string, n int)
}
