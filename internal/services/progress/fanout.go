package progress

import (
	"context"
	"errors"
	"fmt"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
)

// Fanout delivers every event to each sink in order. One failing sink does
// not stop delivery to the others.
type Fanout struct {
	sinks []repository.ProgressSink
}

var _ repository.ProgressSink = (*Fanout)(nil)

// NewFanout skips nil sinks.
func NewFanout(sinks ...repository.ProgressSink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Add appends a sink.
func (f *Fanout) Add(s repository.ProgressSink) {
	if s != nil {
		f.sinks = append(f.sinks, s)
	}
}

func (f *Fanout) Len() int { return len(f.sinks) }

func (f *Fanout) Emit(ctx context.Context, ev models.ProgressEvent) error {
	var errs []error
	for i, s := range f.sinks {
		if err := s.Emit(ctx, ev); err != nil {
			errs = append(errs, fmt.Errorf("sink %d (%T): %w", i, s, err))
		}
	}
	return errors.Join(errs...)
}
