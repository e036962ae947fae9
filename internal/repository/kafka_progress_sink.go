package repository

import (
	"context"

	"FinTrain/internal/domain/models"
	domrepo "FinTrain/internal/domain/repository"
)

// Publisher publishes one keyed message.
type Publisher interface {
	Publish(ctx context.Context, key []byte, value any) error
}

// KafkaProgressSink publishes progress events as JSON keyed by run id, so a
// run's events stay ordered within one partition.
type KafkaProgressSink struct {
	pub Publisher
}

var _ domrepo.ProgressSink = (*KafkaProgressSink)(nil)

func NewKafkaProgressSink(pub Publisher) *KafkaProgressSink {
	return &KafkaProgressSink{pub: pub}
}

func (s *KafkaProgressSink) Emit(ctx context.Context, ev models.ProgressEvent) error {
	if ev.Kind == models.EventBatch {
		return nil
	}
	return s.pub.Publish(ctx, []byte(ev.RunID), ev)
}
