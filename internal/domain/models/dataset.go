package models

// Window is NumRows consecutive candles starting at row Start of the source
// series. Candles shares storage with the series and must not be mutated.
type Window struct {
	Start   int
	Candles []Candle
}

// End is the index one past the window's last row.
func (w Window) End() int { return w.Start + len(w.Candles) }

// Label is the forward return anchored at row Anchor.
type Label struct {
	Anchor int
	Value  float64
}

// Example is one aligned (window, label) training unit. Index is its
// position in the aligned sequence.
type Example struct {
	Index  int
	Window Window
	Label  Label
}

// Split is a temporal partition of the aligned examples. Test is empty unless
// a held-out tail was requested.
type Split struct {
	Train []Example
	Valid []Example
	Test  []Example
}
