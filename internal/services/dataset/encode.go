package dataset

import (
	"math"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/config"
	"FinTrain/pkg/tensor"
)

// Variant selects how a window is encoded into a model input.
type Variant string

const (
	// VariantSequence encodes a window as a [numRows, numFeatures] matrix.
	VariantSequence Variant = "sequence"
	// VariantImage rasterises a window into a [1, height, numRows] OHLC chart.
	VariantImage Variant = "image"
)

// NewEncoder returns the encoder for tr.DatasetVariant.
func NewEncoder(tr config.Training, numFeatures int) (service.Encoder, error) {
	switch Variant(tr.DatasetVariant) {
	case VariantSequence:
		return NewSequenceEncoder(tr.NumRows, numFeatures), nil
	case VariantImage:
		return NewImageEncoder(tr.NumRows, tr.ImageHeight), nil
	default:
		return nil, errs.Configuration("new encoder", "unknown dataset variant %q", tr.DatasetVariant)
	}
}

// SequenceEncoder lays out each candle's features as one row.
type SequenceEncoder struct {
	numRows     int
	numFeatures int
}

var _ service.Encoder = (*SequenceEncoder)(nil)

func NewSequenceEncoder(numRows, numFeatures int) *SequenceEncoder {
	return &SequenceEncoder{numRows: numRows, numFeatures: numFeatures}
}

func (e *SequenceEncoder) SampleShape() []int { return []int{e.numRows, e.numFeatures} }

func (e *SequenceEncoder) Encode(w models.Window) (tensor.Tensor, error) {
	if len(w.Candles) != e.numRows {
		return tensor.Tensor{}, errs.ShapeMismatch("sequence encode", "window at %d has %d rows, want %d",
			w.Start, len(w.Candles), e.numRows)
	}
	data := make([]float64, 0, e.numRows*e.numFeatures)
	for i, c := range w.Candles {
		if c.NumFeatures() != e.numFeatures {
			return tensor.Tensor{}, errs.ShapeMismatch("sequence encode", "row %d has %d features, want %d",
				w.Start+i, c.NumFeatures(), e.numFeatures)
		}
		data = c.Features(data)
	}
	for j, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return tensor.Tensor{}, errs.DataQuality("sequence encode", w.Start+j/e.numFeatures, "feature %d is %v",
				j%e.numFeatures, v)
		}
	}
	return tensor.FromData(data, e.numRows, e.numFeatures)
}

// Pixel intensities of the rasterised chart.
const (
	wickIntensity = 0.5
	bodyIntensity = 1.0
)

// ImageEncoder draws each candle as one column of a single-channel image:
// the low-high range at wick intensity and the open-close body on top of it.
// Prices are scaled to the window's own low/high, row 0 being the high.
type ImageEncoder struct {
	numRows int
	height  int
}

var _ service.Encoder = (*ImageEncoder)(nil)

func NewImageEncoder(numRows, height int) *ImageEncoder {
	return &ImageEncoder{numRows: numRows, height: height}
}

func (e *ImageEncoder) SampleShape() []int { return []int{1, e.height, e.numRows} }

func (e *ImageEncoder) Encode(w models.Window) (tensor.Tensor, error) {
	if len(w.Candles) != e.numRows {
		return tensor.Tensor{}, errs.ShapeMismatch("image encode", "window at %d has %d rows, want %d",
			w.Start, len(w.Candles), e.numRows)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, c := range w.Candles {
		for _, v := range [...]float64{c.Open, c.High, c.Low, c.Close} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return tensor.Tensor{}, errs.DataQuality("image encode", w.Start+i, "price is %v", v)
			}
		}
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}

	img := tensor.MustNew(1, e.height, e.numRows)
	for col, c := range w.Candles {
		e.fill(img, col, e.row(c.High, lo, hi), e.row(c.Low, lo, hi), wickIntensity)
		e.fill(img, col, e.row(math.Max(c.Open, c.Close), lo, hi), e.row(math.Min(c.Open, c.Close), lo, hi), bodyIntensity)
	}
	return img, nil
}

// row maps a price to an image row; a flat window maps everything to the middle.
func (e *ImageEncoder) row(p, lo, hi float64) int {
	if hi <= lo {
		return e.height / 2
	}
	r := int(math.Round((hi - p) / (hi - lo) * float64(e.height-1)))
	return min(max(r, 0), e.height-1)
}

func (e *ImageEncoder) fill(img tensor.Tensor, col, top, bottom int, v float64) {
	for r := top; r <= bottom; r++ {
		img.Set(v, 0, r, col)
	}
}
