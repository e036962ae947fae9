package dataset

import (
	"math"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
)

// GenerateLabels computes forward returns (close[a+numIntoFut]-close[a])/close[a]
// at anchors a = 0, step, 2*step, ... Anchors a <= numRows are skipped as
// warm-up, and generation stops once a+numIntoFut is past the last row.
//
// A zero or non-finite anchor close, or a non-finite future close, fails with
// errs.ErrDataQuality naming the offending row.
func GenerateLabels(candles []models.Candle, numRows, numIntoFut, step int) ([]models.Label, error) {
	if step <= 0 || numIntoFut <= 0 || numRows <= 0 {
		return nil, errs.Configuration("generate labels",
			"num_rows=%d num_into_fut=%d step=%d must all be positive", numRows, numIntoFut, step)
	}

	last := len(candles) - 1
	labels := make([]models.Label, 0, len(candles)/step)
	for a := 0; a+numIntoFut <= last; a += step {
		if a <= numRows {
			continue
		}
		vi, vf := candles[a].Close, candles[a+numIntoFut].Close
		if vi == 0 || !finite(vi) {
			return nil, errs.DataQuality("generate labels", a, "anchor close is %v", vi)
		}
		if !finite(vf) {
			return nil, errs.DataQuality("generate labels", a+numIntoFut, "future close is %v", vf)
		}
		labels = append(labels, models.Label{Anchor: a, Value: (vf - vi) / vi})
	}
	return labels, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
