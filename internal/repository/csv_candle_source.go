package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	domrepo "FinTrain/internal/domain/repository"
	applogger "FinTrain/pkg/logger"
)

// CSVCandleSource reads a candle table with a header row. Columns are matched
// by name, case-insensitively: open, high, low, close and volume are required,
// time is optional. Other columns are ignored. Empty and "NaN" cells load as
// missing values for cleaning to fill.
type CSVCandleSource struct {
	path   string
	symbol string
	l      *applogger.Logger
}

var _ domrepo.CandleSource = (*CSVCandleSource)(nil)

func NewCSVCandleSource(path, symbol string) *CSVCandleSource {
	return &CSVCandleSource{path: path, symbol: symbol}
}

// SetLogger injects a structured logger.
func (s *CSVCandleSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVCandleSource) Load(ctx context.Context) (models.Series, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return models.Series{}, fmt.Errorf("open candles: %w", err)
	}
	defer f.Close()

	start := time.Now()
	series, err := ReadCandlesCSV(ctx, f)
	if err != nil {
		return models.Series{}, fmt.Errorf("read %s: %w", s.path, err)
	}
	series.Symbol = s.symbol
	if s.l != nil {
		s.l.Info("csv load_candles ok",
			applogger.String("path", s.path),
			applogger.Int("rows", series.Len()),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return series, nil
}

// ReadCandlesCSV parses candles from r.
func ReadCandlesCSV(ctx context.Context, r io.Reader) (models.Series, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return models.Series{}, errs.Configuration("read csv", "empty candle file")
		}
		return models.Series{}, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	idx := make([]int, len(models.BaseColumns))
	for i, name := range models.BaseColumns {
		j, ok := cols[name]
		if !ok {
			return models.Series{}, errs.Configuration("read csv", "missing column %q in header %v", name, header)
		}
		idx[i] = j
	}
	timeCol, hasTime := cols["time"]

	var candles []models.Candle
	for row := 0; ; row++ {
		if row%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return models.Series{}, err
			}
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return models.Series{}, fmt.Errorf("read row %d: %w", row, err)
		}

		var vals [5]float64
		for i, j := range idx {
			v, err := parseCell(rec[j])
			if err != nil {
				return models.Series{}, errs.DataQuality("read csv", row, "column %s: %v", models.BaseColumns[i], err)
			}
			vals[i] = v
		}
		c := models.Candle{Open: vals[0], High: vals[1], Low: vals[2], Close: vals[3], Volume: vals[4]}
		if hasTime {
			if c.Time, err = parseTime(rec[timeCol]); err != nil {
				return models.Series{}, errs.DataQuality("read csv", row, "column time: %v", err)
			}
		}
		candles = append(candles, c)
	}
	return models.Series{Candles: candles}, nil
}

func parseCell(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// parseTime accepts unix seconds or milliseconds, RFC3339 and "2006-01-02 15:04:05".
func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), nil
		}
		return time.Unix(n, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateTime, s)
}
