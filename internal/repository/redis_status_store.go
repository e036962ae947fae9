package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"FinTrain/internal/domain/models"
	domrepo "FinTrain/internal/domain/repository"
	"FinTrain/internal/services/progress"
	"FinTrain/pkg/cache"
)

// MaxStoredEpochs caps the per-run epoch history kept in Redis.
const MaxStoredEpochs = 10000

// RedisStatusStore mirrors run progress into Redis: the latest event under
// run:<id>:last, finished epochs appended to run:<id>:epochs, and the id of
// the most recent run under run:current.
type RedisStatusStore struct {
	store  cache.Store
	ttl    time.Duration
	epochs int
}

var _ domrepo.ProgressSink = (*RedisStatusStore)(nil)

// NewRedisStatusStore creates the store. epochs is the configured epoch
// count reported back in RunStatus.Epochs.
func NewRedisStatusStore(store cache.Store, ttl time.Duration, epochs int) *RedisStatusStore {
	return &RedisStatusStore{store: store, ttl: ttl, epochs: epochs}
}

func lastKey(runID string) string   { return "run:" + runID + ":last" }
func epochsKey(runID string) string { return "run:" + runID + ":epochs" }

const currentKey = "run:current"

func (s *RedisStatusStore) Emit(ctx context.Context, ev models.ProgressEvent) error {
	switch ev.Kind {
	case models.EventBatch, models.EventPhaseFinished:
		return nil
	case models.EventRunStarted:
		if err := s.store.Delete(ctx, lastKey(ev.RunID), epochsKey(ev.RunID)); err != nil {
			return fmt.Errorf("reset run: %w", err)
		}
		if err := s.store.Set(ctx, currentKey, ev.RunID, s.ttl); err != nil {
			return fmt.Errorf("set current run: %w", err)
		}
	case models.EventEpochFinished:
		if ev.Metrics != nil {
			if err := s.store.Append(ctx, epochsKey(ev.RunID), ev.Metrics, MaxStoredEpochs, s.ttl); err != nil {
				return fmt.Errorf("append epoch: %w", err)
			}
		}
	}
	if err := s.store.Set(ctx, lastKey(ev.RunID), ev, s.ttl); err != nil {
		return fmt.Errorf("set last event: %w", err)
	}
	return nil
}

// CurrentRun returns the id of the most recently started run.
func (s *RedisStatusStore) CurrentRun(ctx context.Context) (string, error) {
	var id string
	if err := s.store.Get(ctx, currentKey, &id); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return id, nil
}

// LastEvent returns the latest stored event of a run.
func (s *RedisStatusStore) LastEvent(ctx context.Context, runID string) (models.ProgressEvent, error) {
	var ev models.ProgressEvent
	err := s.store.Get(ctx, lastKey(runID), &ev)
	return ev, err
}

// LoadStatus rebuilds the status of the most recent run with at most limit
// epochs of history. It returns a zero RunStatus when no run was recorded.
func (s *RedisStatusStore) LoadStatus(ctx context.Context, limit int) (models.RunStatus, error) {
	id, err := s.CurrentRun(ctx)
	if err != nil || id == "" {
		return models.RunStatus{}, err
	}
	st := models.RunStatus{RunID: id, State: progress.StatePending, Epochs: s.epochs}

	ev, err := s.LastEvent(ctx, id)
	switch {
	case errors.Is(err, cache.ErrCacheMiss):
	case err != nil:
		return models.RunStatus{}, fmt.Errorf("last event: %w", err)
	default:
		st.Completed = ev.Epoch
		st.UpdatedAt = ev.Time
		switch ev.Kind {
		case models.EventRunFinished:
			st.State = progress.StateFinished
		case models.EventRunFailed:
			st.State = progress.StateFailed
			st.Error = ev.Error
		default:
			st.State = progress.StateRunning
		}
	}

	if limit <= 0 {
		limit = MaxStoredEpochs
	}
	raw, err := s.store.Tail(ctx, epochsKey(id), int64(limit))
	if err != nil {
		return models.RunStatus{}, fmt.Errorf("epoch history: %w", err)
	}
	st.History = make([]models.EpochMetrics, 0, len(raw))
	for _, r := range raw {
		var m models.EpochMetrics
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return models.RunStatus{}, fmt.Errorf("decode epoch: %w", err)
		}
		st.History = append(st.History, m)
	}
	if n := len(st.History); n > 0 {
		latest := st.History[n-1]
		st.Latest = &latest
	}
	return st, nil
}
