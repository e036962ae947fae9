package dataset

import (
	"math"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
)

// DefaultSplitFraction is the share of examples used for training.
const DefaultSplitFraction = 0.7

// SplitIndex is floor(fraction * n).
func SplitIndex(n int, fraction float64) int {
	return int(math.Floor(fraction * float64(n)))
}

// Split returns examples[:s] as train and examples[s:] as valid, with
// s = floor(fraction*n). Order is preserved.
func Split(examples []models.Example, fraction float64) (models.Split, error) {
	if !(fraction > 0 && fraction < 1) {
		return models.Split{}, errs.Configuration("split", "split fraction %v must be in (0, 1)", fraction)
	}
	s := SplitIndex(len(examples), fraction)
	return models.Split{Train: examples[:s], Valid: examples[s:]}, nil
}

// Partition carves the last floor(testFraction*n) examples into a held-out
// test set, then splits the remainder into train and valid. A zero
// testFraction is the same as Split.
func Partition(examples []models.Example, splitFraction, testFraction float64) (models.Split, error) {
	if testFraction < 0 || testFraction >= 1 {
		return models.Split{}, errs.Configuration("partition", "test fraction %v must be in [0, 1)", testFraction)
	}
	rest := examples
	var test []models.Example
	if t := SplitIndex(len(examples), testFraction); t > 0 {
		rest, test = examples[:len(examples)-t], examples[len(examples)-t:]
	}

	out, err := Split(rest, splitFraction)
	if err != nil {
		return models.Split{}, err
	}
	out.Test = test
	return out, nil
}
