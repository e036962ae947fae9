package models

import "time"

// BaseColumns are the price/volume feature columns every Candle carries, in
// feature order. Indicator columns follow them.
var BaseColumns = []string{"open", "high", "low", "close", "volume"}

// Candle represents one OHLCV interval plus the indicator values appended by
// augmentation. Time is kept for ordering and reporting only; it is never a
// model feature.
type Candle struct {
	Time       time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     float64
	Indicators []float64
}

// NumFeatures is the length of Features().
func (c Candle) NumFeatures() int { return len(BaseColumns) + len(c.Indicators) }

// Features appends the candle's feature vector to dst and returns it.
func (c Candle) Features(dst []float64) []float64 {
	dst = append(dst, c.Open, c.High, c.Low, c.Close, c.Volume)
	return append(dst, c.Indicators...)
}

// Series is an ordered, cleaned candle table for a single symbol and resolution.
type Series struct {
	Symbol     string
	Indicators []string
	Candles    []Candle
}

// Len is the number of rows.
func (s Series) Len() int { return len(s.Candles) }

// Columns names the feature columns in Features() order.
func (s Series) Columns() []string {
	cols := make([]string, 0, len(BaseColumns)+len(s.Indicators))
	cols = append(cols, BaseColumns...)
	return append(cols, s.Indicators...)
}
