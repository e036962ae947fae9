// Package features prepares a raw candle series for windowing: it cleans
// missing values and appends technical indicator columns.
package features

import (
	"math"
	"sort"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
)

// Clean returns a copy of series ordered by time with every missing OHLCV
// value forward-filled from the previous row. Rows keep their order when any
// of them has no timestamp. A missing value with nothing before it to fill
// from is a data quality error.
func Clean(series models.Series) (models.Series, error) {
	out := series
	out.Candles = make([]models.Candle, len(series.Candles))
	copy(out.Candles, series.Candles)

	before := func(i, j int) bool { return out.Candles[i].Time.Before(out.Candles[j].Time) }
	if timed(out.Candles) && !sort.SliceIsSorted(out.Candles, before) {
		sort.SliceStable(out.Candles, before)
	}

	for i := range out.Candles {
		c := &out.Candles[i]
		for col, v := range []*float64{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
			if !missing(*v) {
				continue
			}
			if i == 0 {
				return models.Series{}, errs.DataQuality("clean", i, "%s is missing with no earlier value", models.BaseColumns[col])
			}
			*v = fieldAt(out.Candles[i-1], col)
		}
	}
	return out, nil
}

func timed(candles []models.Candle) bool {
	for _, c := range candles {
		if c.Time.IsZero() {
			return false
		}
	}
	return true
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func fieldAt(c models.Candle, col int) float64 {
	switch col {
	case 0:
		return c.Open
	case 1:
		return c.High
	case 2:
		return c.Low
	case 3:
		return c.Close
	default:
		return c.Volume
	}
}
