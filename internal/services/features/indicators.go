package features

import (
	"github.com/markcheno/go-talib"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
)

// IndicatorColumns are appended after the base columns, in this order.
var IndicatorColumns = []string{"rsi_14", "ema_8", "ema_30", "macd", "macd_signal", "macd_hist"}

// MinIndicatorRows is the shortest series MACD(12,26,9) can be computed on.
const MinIndicatorRows = 26 + 9

// AddIndicators returns a copy of series with IndicatorColumns appended to
// every candle. Rows inside an indicator's warm-up period carry 0 for it.
func AddIndicators(series models.Series) (models.Series, error) {
	n := series.Len()
	if n < MinIndicatorRows {
		return models.Series{}, errs.Configuration("add indicators",
			"series of %d rows is too short for indicators, need %d", n, MinIndicatorRows)
	}

	closes := make([]float64, n)
	for i, c := range series.Candles {
		closes[i] = c.Close
	}

	rsi := talib.Rsi(closes, 14)
	ema8 := talib.Ema(closes, 8)
	ema30 := talib.Ema(closes, 30)
	macd, macdSignal, macdHist := talib.Macd(closes, 12, 26, 9)
	cols := [][]float64{rsi, ema8, ema30, macd, macdSignal, macdHist}

	out := series
	out.Indicators = append(append([]string(nil), series.Indicators...), IndicatorColumns...)
	out.Candles = make([]models.Candle, n)
	for i, c := range series.Candles {
		ind := make([]float64, 0, len(c.Indicators)+len(cols))
		ind = append(ind, c.Indicators...)
		for _, col := range cols {
			ind = append(ind, valueAt(col, i))
		}
		c.Indicators = ind
		out.Candles[i] = c
	}
	return out, nil
}

func valueAt(s []float64, i int) float64 {
	if i < 0 || i >= len(s) || missing(s[i]) {
		return 0
	}
	return s[i]
}
