package dataset

import (
	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/config"
)

// Dataset is the aligned, split example set built from one series.
type Dataset struct {
	Columns    []string
	NumWindows int
	NumLabels  int
	Examples   []models.Example
	Split      models.Split
}

// Build slices, labels, aligns and splits a cleaned series. The result is a
// pure function of its inputs.
func Build(series models.Series, tr config.Training) (Dataset, error) {
	n := series.Len()
	windows := SliceWindows(series.Candles, tr.NumRows, tr.Step)
	if len(windows) == 0 {
		return Dataset{}, errs.Configuration("build dataset",
			"series of %d rows yields no windows for num_rows=%d step=%d", n, tr.NumRows, tr.Step)
	}

	labels, err := GenerateLabels(series.Candles, tr.NumRows, tr.NumIntoFut, tr.Step)
	if err != nil {
		return Dataset{}, err
	}
	if len(labels) == 0 {
		return Dataset{}, errs.Configuration("build dataset",
			"series of %d rows yields no labels for num_rows=%d num_into_fut=%d step=%d",
			n, tr.NumRows, tr.NumIntoFut, tr.Step)
	}

	examples, err := Align(windows, labels)
	if err != nil {
		return Dataset{}, err
	}

	split, err := Partition(examples, tr.SplitFraction, tr.TestFraction)
	if err != nil {
		return Dataset{}, err
	}
	if len(split.Train) == 0 || len(split.Valid) == 0 {
		return Dataset{}, errs.Configuration("build dataset",
			"%d examples split into %d train and %d valid; both must be non-empty",
			len(examples), len(split.Train), len(split.Valid))
	}

	return Dataset{
		Columns:    series.Columns(),
		NumWindows: len(windows),
		NumLabels:  len(labels),
		Examples:   examples,
		Split:      split,
	}, nil
}

// Loaders builds the per-set loaders. Only the train set is shuffled. Test is
// nil when no test tail was carved out.
func (d Dataset) Loaders(enc service.Encoder, tr config.Training) (train, valid, test *Loader) {
	common := []LoaderOption{
		WithBatchSize(tr.BatchSize),
		WithDropLast(tr.DropLast),
		WithNumWorkers(tr.NumWorkers),
		WithSeed(tr.Seed),
	}
	train = NewLoader(d.Split.Train, enc, append(common, WithShuffle(tr.Shuffle))...)
	valid = NewLoader(d.Split.Valid, enc, common...)
	if len(d.Split.Test) > 0 {
		test = NewLoader(d.Split.Test, enc, common...)
	}
	return train, valid, test
}
