package progress

import (
	"context"
	"sync"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
)

// Run states reported in RunStatus.State.
const (
	StatePending  = "pending"
	StateRunning  = "running"
	StateFinished = "finished"
	StateFailed   = "failed"
)

// Tracker folds the event stream into the current RunStatus.
type Tracker struct {
	mu     sync.RWMutex
	status models.RunStatus
}

var _ repository.ProgressSink = (*Tracker)(nil)

func NewTracker(runID string, epochs int) *Tracker {
	return &Tracker{status: models.RunStatus{RunID: runID, State: StatePending, Epochs: epochs}}
}

func (t *Tracker) Emit(_ context.Context, ev models.ProgressEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := &t.status
	if ev.RunID != "" {
		st.RunID = ev.RunID
	}
	switch ev.Kind {
	case models.EventRunStarted:
		st.State = StateRunning
	case models.EventEpochFinished:
		if ev.Metrics != nil {
			m := *ev.Metrics
			st.History = append(st.History, m)
			st.Latest = &m
			st.Completed = len(st.History)
		}
	case models.EventRunFinished:
		st.State = StateFinished
	case models.EventRunFailed:
		st.State = StateFailed
		st.Error = ev.Error
	}
	st.UpdatedAt = ev.Time
	return nil
}

// Status returns a snapshot with at most limit epochs of history, newest last.
// limit <= 0 returns the full history.
func (t *Tracker) Status(limit int) models.RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.status
	h := t.status.History
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out.History = append([]models.EpochMetrics(nil), h...)
	if t.status.Latest != nil {
		latest := *t.status.Latest
		out.Latest = &latest
	}
	return out
}
