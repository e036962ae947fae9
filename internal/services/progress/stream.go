package progress

import (
	"context"
	"encoding/json"
	"fmt"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
)

// Broadcaster delivers a message to every live subscriber.
type Broadcaster interface {
	Broadcast(msg []byte) bool
}

// StreamSink publishes every event, batch events included, as JSON to live
// subscribers. Events emitted after the broadcaster stopped are dropped.
type StreamSink struct {
	b Broadcaster
}

var _ repository.ProgressSink = (*StreamSink)(nil)

func NewStreamSink(b Broadcaster) *StreamSink {
	return &StreamSink{b: b}
}

func (s *StreamSink) Emit(_ context.Context, ev models.ProgressEvent) error {
	msg, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress event: %w", err)
	}
	s.b.Broadcast(msg)
	return nil
}
