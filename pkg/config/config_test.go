package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "environment: test\n")

	c, err := Load(path)
	require.NoError(t, err)

	tr := c.Training
	assert.Equal(t, 30, tr.NumRows)
	assert.Equal(t, 5, tr.NumIntoFut)
	assert.Equal(t, 10, tr.Step)
	assert.Equal(t, 0.7, tr.SplitFraction)
	assert.Equal(t, 64, tr.BatchSize)
	assert.True(t, tr.Shuffle)
	assert.True(t, tr.DropLast)
	assert.Equal(t, 5, tr.NumWorkers)
	assert.Equal(t, 0.001, tr.LearningRate)
	assert.Equal(t, "sequence", tr.DatasetVariant)
	assert.Equal(t, "cpu", tr.Device)
	assert.Equal(t, "csv", c.Data.Source)
	assert.Equal(t, 10*time.Second, c.Server.ShutdownTimeout)
}

func TestLoadKeepsExplicitFalse(t *testing.T) {
	path := writeConfig(t, `
environment: test
training:
  shuffle: false
  num_rows: 12
  step: 3
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.False(t, c.Training.Shuffle)
	assert.Equal(t, 12, c.Training.NumRows)
	assert.Equal(t, 3, c.Training.Step)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"bad variant", "training:\n  dataset_variant: video\n"},
		{"split out of range", "training:\n  split_fraction: 1.5\n"},
		{"zero step", "training:\n  step: -1\n"},
		{"fractions overlap", "training:\n  split_fraction: 0.8\n  test_fraction: 0.3\n"},
		{"step model on images", "training:\n  model: step_linear\n  dataset_variant: image\n"},
		{"clickhouse without host", "data:\n  source: clickhouse\n"},
		{"kafka without brokers", "kafka:\n  enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, "environment: test\n")
	t.Setenv("NUM_EPOCHS", "3")
	t.Setenv("DATA_PATH", "/tmp/candles.csv")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 3, c.Training.NumEpochs)
	assert.Equal(t, "/tmp/candles.csv", c.Data.Path)
	assert.Equal(t, []string{"a:9092", "b:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "debug", c.Log.Level)

	t.Setenv("NUM_EPOCHS", "many")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)
}

func TestTimeRange(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	c.Data.From = "2024-01-02T00:00:00Z"
	c.Data.To = "2024-01-01T00:00:00Z"
	_, _, err = c.TimeRange()
	assert.Error(t, err)

	c.Data.To = "2024-01-03T00:00:00Z"
	from, to, err := c.TimeRange()
	require.NoError(t, err)
	assert.True(t, from.Before(to))
}
