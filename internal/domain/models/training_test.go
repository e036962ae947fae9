package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochMetricsString(t *testing.T) {
	m := EpochMetrics{Epoch: 0, Train: 0.012345, Valid: 0.5}
	assert.Equal(t, "train loss: 0.012345, valid loss: 0.5, test output: no test selected", m.String())

	test := 0.25
	m.Test = &test
	assert.Equal(t, "0.25", m.TestOutput())
}

func TestCandleFeaturesExcludeTime(t *testing.T) {
	c := Candle{Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10, Indicators: []float64{7, 8}}
	assert.Equal(t, []float64{1, 2, 0.5, 1.5, 10, 7, 8}, c.Features(nil))
	assert.Equal(t, 7, c.NumFeatures())

	s := Series{Indicators: []string{"rsi_14", "ema_8"}}
	assert.Equal(t, []string{"open", "high", "low", "close", "volume", "rsi_14", "ema_8"}, s.Columns())
}
