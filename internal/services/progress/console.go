// Package progress fans training progress events out to the console, the
// in-memory run status and any external sinks.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/repository"
)

// ConsoleSink prints one line per finished epoch plus run start and end.
type ConsoleSink struct {
	mu     sync.Mutex
	w      io.Writer
	label  lipgloss.Style
	failed lipgloss.Style
}

var _ repository.ProgressSink = (*ConsoleSink)(nil)

func NewConsoleSink(w io.Writer) *ConsoleSink {
	r := lipgloss.NewRenderer(w)
	return &ConsoleSink{
		w:      w,
		label:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		failed: r.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
	}
}

func (s *ConsoleSink) Emit(_ context.Context, ev models.ProgressEvent) error {
	var line string
	switch ev.Kind {
	case models.EventRunStarted:
		line = s.label.Render("run "+ev.RunID) + " started"
	case models.EventEpochFinished:
		if ev.Metrics == nil {
			return nil
		}
		line = s.label.Render(fmt.Sprintf("epoch %d", ev.Epoch)) + " " + ev.Metrics.String()
	case models.EventRunFinished:
		line = s.label.Render("run "+ev.RunID) + " finished"
	case models.EventRunFailed:
		line = s.failed.Render("run "+ev.RunID+" failed") + ": " + ev.Error
	default:
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintln(s.w, line)
	return err
}
