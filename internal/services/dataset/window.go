// Package dataset turns a cleaned candle series into aligned, temporally
// split (window, label) examples and serves them to the training loop in
// batches.
package dataset

import "FinTrain/internal/domain/models"

// WindowCount is the number of windows SliceWindows yields for n rows:
// floor((n-numRows)/step)+1, or 0 when the series is shorter than a window.
func WindowCount(n, numRows, step int) int {
	if numRows <= 0 || step <= 0 || n < numRows {
		return 0
	}
	return (n-numRows)/step + 1
}

// EachWindow visits candles[i*step : i*step+numRows] for i = 0, 1, ... while
// the window fits, in increasing start order. Returning false from fn stops
// the walk.
func EachWindow(candles []models.Candle, numRows, step int, fn func(models.Window) bool) {
	if numRows <= 0 || step <= 0 {
		return
	}
	for start := 0; start+numRows <= len(candles); start += step {
		end := start + numRows
		if !fn(models.Window{Start: start, Candles: candles[start:end:end]}) {
			return
		}
	}
}

// SliceWindows collects every window EachWindow visits. A series shorter
// than numRows yields an empty result.
func SliceWindows(candles []models.Candle, numRows, step int) []models.Window {
	out := make([]models.Window, 0, WindowCount(len(candles), numRows, step))
	EachWindow(candles, numRows, step, func(w models.Window) bool {
		out = append(out, w)
		return true
	})
	return out
}
