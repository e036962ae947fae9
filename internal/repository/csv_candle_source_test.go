package repository

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinTrain/internal/domain/errs"
)

const sampleCSV = `time,Open,High,Low,Close,Volume,trades
1700000000000,10,11,9,10.5,100,3
1700000060000,10.5,12,10,,120,4
1700000120000,11,12,10.5,11.5,NaN,5
`

func TestReadCandlesCSV(t *testing.T) {
	s, err := ReadCandlesCSV(context.Background(), strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, 3, s.Len())

	c := s.Candles[0]
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), c.Time)
	assert.Equal(t, []float64{10, 11, 9, 10.5, 100}, []float64{c.Open, c.High, c.Low, c.Close, c.Volume})
	assert.True(t, math.IsNaN(s.Candles[1].Close))
	assert.True(t, math.IsNaN(s.Candles[2].Volume))
}

func TestReadCandlesCSV_Errors(t *testing.T) {
	_, err := ReadCandlesCSV(context.Background(), strings.NewReader(""))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = ReadCandlesCSV(context.Background(), strings.NewReader("open,high,low,close\n1,2,3,4\n"))
	assert.True(t, errors.Is(err, errs.ErrConfiguration))

	_, err = ReadCandlesCSV(context.Background(), strings.NewReader("open,high,low,close,volume\n1,2,3,4,5\n1,2,x,4,5\n"))
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.ErrDataQuality, e.Kind)
	assert.Equal(t, 1, e.Index)

	_, err = ReadCandlesCSV(context.Background(), strings.NewReader("time,open,high,low,close,volume\n1700000000,1,2,3,4,5\n ,1,2,3,4,5\n"))
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.ErrDataQuality, e.Kind)
	assert.Equal(t, 1, e.Index)
}

func TestCSVCandleSource_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	s, err := NewCSVCandleSource(path, "BTCUSDT").Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, 3, s.Len())

	_, err = NewCSVCandleSource(filepath.Join(t.TempDir(), "missing.csv"), "X").Load(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseTime(t *testing.T) {
	ts, err := parseTime("1700000000")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000), ts.Unix())

	ts, err = parseTime("2024-01-02 03:04:05")
	require.NoError(t, err)
	assert.Equal(t, 2024, ts.Year())

	ts, err = parseTime("2024-01-02T03:04:05Z")
	require.NoError(t, err)
	assert.Equal(t, 3, ts.Hour())

	_, err = parseTime("yesterday")
	assert.Error(t, err)

	_, err = parseTime("")
	assert.Error(t, err)
}
