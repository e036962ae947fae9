package dataset

import (
	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
)

// Align drops the leading windows that have no label and pairs the rest with
// labels in order. More labels than windows is a shape mismatch.
func Align(windows []models.Window, labels []models.Label) ([]models.Example, error) {
	if len(labels) > len(windows) {
		return nil, errs.ShapeMismatch("align", "%d labels for %d windows", len(labels), len(windows))
	}
	windows = windows[len(windows)-len(labels):]

	out := make([]models.Example, len(labels))
	for i := range labels {
		out[i] = models.Example{Index: i, Window: windows[i], Label: labels[i]}
	}
	return out, nil
}
