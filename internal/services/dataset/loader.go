package dataset

import (
	"context"
	"fmt"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"FinTrain/internal/domain/errs"
	"FinTrain/internal/domain/models"
	"FinTrain/internal/domain/service"
	"FinTrain/pkg/tensor"
)

// Batch is one encoded mini-batch. Examples holds the aligned example index
// of every row so failures can be traced back to the data.
type Batch struct {
	Index    int
	Inputs   tensor.Tensor
	Labels   []float64
	Examples []int
}

// Size is the number of examples in the batch.
func (b Batch) Size() int { return len(b.Labels) }

// LoaderConfig controls batching.
type LoaderConfig struct {
	BatchSize  int
	Shuffle    bool
	DropLast   bool
	NumWorkers int
	Seed       int64
}

// LoaderOption configures a Loader.
type LoaderOption func(*LoaderConfig)

func WithBatchSize(n int) LoaderOption { return func(c *LoaderConfig) { c.BatchSize = n } }
func WithShuffle(on bool) LoaderOption { return func(c *LoaderConfig) { c.Shuffle = on } }
func WithDropLast(on bool) LoaderOption { return func(c *LoaderConfig) { c.DropLast = on } }
func WithNumWorkers(n int) LoaderOption { return func(c *LoaderConfig) { c.NumWorkers = n } }
func WithSeed(seed int64) LoaderOption { return func(c *LoaderConfig) { c.Seed = seed } }

// Loader serves a fixed set of examples in batches. Shuffling permutes
// examples within the set only; it never mixes sets. With NumWorkers > 0
// batches are encoded ahead of the consumer by a bounded pool and still
// delivered in order. A Loader is driven by one goroutine at a time.
type Loader struct {
	examples []models.Example
	enc      service.Encoder
	cfg      LoaderConfig
	rng      *rand.Rand
}

// NewLoader builds a loader over examples. Defaults: batch size 64, no
// shuffle, drop last, synchronous encoding.
func NewLoader(examples []models.Example, enc service.Encoder, opts ...LoaderOption) *Loader {
	cfg := LoaderConfig{BatchSize: 64, DropLast: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.NumWorkers < 0 {
		cfg.NumWorkers = 0
	}
	return &Loader{
		examples: examples,
		enc:      enc,
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
	}
}

// NumBatches is the number of batches one pass yields.
func (l *Loader) NumBatches() int {
	n := len(l.examples) / l.cfg.BatchSize
	if !l.cfg.DropLast && len(l.examples)%l.cfg.BatchSize != 0 {
		n++
	}
	return n
}

// Each runs one pass over the examples, calling fn for every batch in order.
// It stops at the first error from encoding or from fn.
func (l *Loader) Each(ctx context.Context, fn func(Batch) error) error {
	order := l.order()
	n := l.NumBatches()
	if l.cfg.NumWorkers == 0 {
		for i := 0; i < n; i++ {
			b, err := l.encode(i, order)
			if err != nil {
				return err
			}
			if err := fn(b); err != nil {
				return err
			}
		}
		return nil
	}
	return l.prefetch(ctx, n, order, fn)
}

type slot struct {
	batch Batch
	err   error
}

// prefetch keeps at most 2*NumWorkers batches in flight, encoded by at most
// NumWorkers goroutines, and hands them to fn in batch order.
func (l *Loader) prefetch(ctx context.Context, n int, order []int, fn func(Batch) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.cfg.NumWorkers)

	ahead := make(chan struct{}, 2*l.cfg.NumWorkers)
	slots := make([]chan slot, n)
	for i := range slots {
		slots[i] = make(chan slot, 1)
	}

	dispatched := make(chan struct{})
	go func() {
		defer close(dispatched)
		for i := 0; i < n; i++ {
			select {
			case ahead <- struct{}{}:
			case <-gctx.Done():
				return
			}
			i := i
			g.Go(func() error {
				b, err := l.encode(i, order)
				slots[i] <- slot{batch: b, err: err}
				return err
			})
		}
	}()

	err := l.drain(ctx, slots, ahead, fn)
	cancel()
	<-dispatched
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

func (l *Loader) drain(ctx context.Context, slots []chan slot, ahead chan struct{}, fn func(Batch) error) error {
	for i := range slots {
		var s slot
		select {
		case s = <-slots[i]:
		case <-ctx.Done():
			return ctx.Err()
		}
		<-ahead
		if s.err != nil {
			return s.err
		}
		if err := fn(s.batch); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) order() []int {
	if l.cfg.Shuffle {
		return l.rng.Perm(len(l.examples))
	}
	order := make([]int, len(l.examples))
	for i := range order {
		order[i] = i
	}
	return order
}

func (l *Loader) encode(i int, order []int) (Batch, error) {
	lo := i * l.cfg.BatchSize
	hi := min(lo+l.cfg.BatchSize, len(order))

	samples := make([]tensor.Tensor, 0, hi-lo)
	b := Batch{Index: i, Labels: make([]float64, 0, hi-lo), Examples: make([]int, 0, hi-lo)}
	for _, k := range order[lo:hi] {
		ex := l.examples[k]
		t, err := l.enc.Encode(ex.Window)
		if err != nil {
			return Batch{}, fmt.Errorf("example %d: %w", ex.Index, err)
		}
		samples = append(samples, t)
		b.Labels = append(b.Labels, ex.Label.Value)
		b.Examples = append(b.Examples, ex.Index)
	}

	inputs, err := tensor.Stack(samples)
	if err != nil {
		return Batch{}, errs.ShapeMismatch("batch", "batch %d: %v", i, err)
	}
	b.Inputs = inputs
	return b, nil
}
