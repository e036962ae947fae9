package models

import (
	"fmt"
	"strconv"
	"time"
)

// Phase is one step of an epoch.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseValid Phase = "valid"
	PhaseTest  Phase = "test"
)

// NoTestSelected is reported in place of a test loss when no test set was supplied.
const NoTestSelected = "no test selected"

// EpochMetrics holds the averaged loss of each phase for one epoch.
type EpochMetrics struct {
	Epoch int      `json:"epoch"`
	Train float64  `json:"train_loss"`
	Valid float64  `json:"valid_loss"`
	Test  *float64 `json:"test_loss,omitempty"`
}

// TestOutput renders the test loss or the not-run sentinel.
func (m EpochMetrics) TestOutput() string {
	if m.Test == nil {
		return NoTestSelected
	}
	return strconv.FormatFloat(*m.Test, 'f', -1, 64)
}

func (m EpochMetrics) String() string {
	return fmt.Sprintf("train loss: %s, valid loss: %s, test output: %s",
		strconv.FormatFloat(m.Train, 'f', -1, 64),
		strconv.FormatFloat(m.Valid, 'f', -1, 64),
		m.TestOutput())
}

// EventKind classifies a ProgressEvent.
type EventKind string

const (
	EventRunStarted    EventKind = "run_started"
	EventPhaseFinished EventKind = "phase_finished"
	EventEpochFinished EventKind = "epoch_finished"
	EventBatch         EventKind = "batch"
	EventRunFinished   EventKind = "run_finished"
	EventRunFailed     EventKind = "run_failed"
)

// ProgressEvent is one entry of the append-only training progress stream.
type ProgressEvent struct {
	RunID   string        `json:"run_id"`
	Kind    EventKind     `json:"kind"`
	Epoch   int           `json:"epoch"`
	Phase   Phase         `json:"phase,omitempty"`
	Batch   int           `json:"batch,omitempty"`
	Loss    float64       `json:"loss,omitempty"`
	Metrics *EpochMetrics `json:"metrics,omitempty"`
	Error   string        `json:"error,omitempty"`
	Time    time.Time     `json:"time"`
}

// RunStatus is the latest known state of a training run.
type RunStatus struct {
	RunID     string         `json:"run_id"`
	State     string         `json:"state"`
	Epochs    int            `json:"epochs"`
	Completed int            `json:"completed"`
	Latest    *EpochMetrics  `json:"latest,omitempty"`
	History   []EpochMetrics `json:"history,omitempty"`
	Error     string         `json:"error,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// HistoryRequest selects how many epochs of history to return.
type HistoryRequest struct {
	Limit int `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=10000"`
}
