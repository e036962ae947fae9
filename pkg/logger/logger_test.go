package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)

	l.Info("epoch finished",
		Int("epoch", 2),
		Float64("train_loss", 0.25),
		String("phase", "train"),
		Duration("took", 1500*time.Millisecond),
		Error(errors.New("none")),
	)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "epoch finished", got["message"])
	assert.Equal(t, float64(2), got["epoch"])
	assert.Equal(t, 0.25, got["train_loss"])
	assert.Equal(t, float64(1500), got["took"])
	assert.Equal(t, "none", got["error"])
}

func TestLoggerLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.WarnLevel)
	l.Info("hidden")
	l.Debug("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.DebugEnabled())

	l.With(String("run_id", "r1")).Warn("shown")
	assert.Contains(t, buf.String(), `"run_id":"r1"`)
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNilErrorOmitted(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, zerolog.InfoLevel)
	l.Info("ok", Error(nil), Strings("columns", []string{"open", "close"}))

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.NotContains(t, got, "error")
	assert.Equal(t, []interface{}{"open", "close"}, got["columns"])
}
