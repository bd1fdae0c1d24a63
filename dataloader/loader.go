package dataloader

import (
	"context"
	"io"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/cspine-ai/go-landmark/datasets"
)

const defaultPrefetch = 2

// Options configures a Loader.
type Options struct {
	// BatchSize is the number of dataset items sampled per batch. Must be
	// positive. The collate function decides the resulting batch dimension.
	BatchSize int
	// Workers is the number of parallel fetch workers. Values below 1 fetch
	// synchronously on the consuming goroutine.
	Workers int
	// Shuffle reshuffles the index order every epoch with a seeded RNG.
	Shuffle bool
	// Seed seeds the shuffle. Epochs derive their order from Seed plus the
	// epoch counter, so runs with the same seed see the same orders.
	Seed int64
	// PinMemory pre-faults the batch backing memory before handing the
	// batch to the consumer.
	PinMemory bool
	// Prefetch bounds how many batches may be in flight ahead of the
	// consumer. Values below 1 use a small default.
	Prefetch int
	// Collate assembles items into a batch. Nil defaults to Stack.
	Collate Collate
}

// Loader produces batches over a dataset. It owns no goroutines itself;
// each call to Batches starts one epoch's worth of iteration.
type Loader struct {
	dataset datasets.Dataset
	opts    Options
	epoch   int64
}

// New creates a Loader over dataset.
//
// Arguments:
//   - dataset: The dataset to iterate.
//   - opts: Loader options; see Options.
//
// Returns:
//   - *Loader: The loader.
//   - error: A configuration error if the options are invalid.
func New(dataset datasets.Dataset, opts Options) (*Loader, error) {
	if dataset == nil {
		return nil, errors.New("dataloader: nil dataset")
	}
	if opts.BatchSize <= 0 {
		return nil, errors.Errorf("dataloader: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.Collate == nil {
		opts.Collate = Stack
	}
	if opts.Prefetch < 1 {
		opts.Prefetch = defaultPrefetch
	}
	return &Loader{dataset: dataset, opts: opts}, nil
}

// Len returns the number of batches per epoch. The final partial batch is
// kept, not dropped.
func (l *Loader) Len() int {
	n := l.dataset.Len()
	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Batches starts one epoch of iteration and returns its iterator. The
// iterator ends with io.EOF once the partition is exhausted; cancelling ctx
// stops the workers and surfaces the context error.
func (l *Loader) Batches(ctx context.Context) *Iterator {
	order := l.order()
	l.epoch++

	chunks := make([][]int, 0, l.Len())
	for start := 0; start < len(order); start += l.opts.BatchSize {
		end := start + l.opts.BatchSize
		if end > len(order) {
			end = len(order)
		}
		chunks = append(chunks, order[start:end])
	}

	it := &Iterator{}
	it.ctx, it.cancel = context.WithCancel(ctx)

	if l.opts.Workers < 1 {
		it.sync = &syncFetcher{loader: l, chunks: chunks}
		return it
	}

	jobs := make(chan job)
	it.queue = make(chan chan result, l.opts.Prefetch)

	g, gctx := errgroup.WithContext(it.ctx)
	it.group = g

	g.Go(func() error {
		defer close(jobs)
		defer close(it.queue)
		for _, indices := range chunks {
			j := job{indices: indices, out: make(chan result, 1)}
			select {
			case it.queue <- j.out:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < l.opts.Workers; w++ {
		g.Go(func() error {
			for j := range jobs {
				batch, err := l.fetch(j.indices)
				j.out <- result{batch: batch, err: err}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	logrus.Debugf("dataloader: epoch started, %d batches, %d workers", len(chunks), l.opts.Workers)
	return it
}

// order returns this epoch's index order.
func (l *Loader) order() []int {
	n := l.dataset.Len()
	if !l.opts.Shuffle {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	return rand.New(rand.NewSource(l.opts.Seed + l.epoch)).Perm(n)
}

// fetch loads and collates one batch worth of items.
func (l *Loader) fetch(indices []int) (Batch, error) {
	items := make([]datasets.SamplePair, len(indices))
	for i, idx := range indices {
		item, err := l.dataset.At(idx)
		if err != nil {
			return Batch{}, errors.Wrapf(err, "dataloader: item %d", idx)
		}
		items[i] = item
	}
	batch, err := l.opts.Collate(items)
	if err != nil {
		return Batch{}, err
	}
	if l.opts.PinMemory {
		prefault(batch)
	}
	return batch, nil
}

// prefault touches every page of the batch backing arrays.
func prefault(b Batch) {
	const pageFloats = 4096 / 4
	for _, t := range []interface{ Data() interface{} }{b.Images, b.Heatmaps} {
		data, ok := t.Data().([]float32)
		if !ok {
			continue
		}
		for i := 0; i < len(data); i += pageFloats {
			_ = data[i]
		}
	}
}

type job struct {
	indices []int
	out     chan result
}

type result struct {
	batch Batch
	err   error
}

// Iterator yields one epoch's batches in dataset order.
type Iterator struct {
	ctx    context.Context
	cancel context.CancelFunc
	queue  chan chan result
	group  *errgroup.Group
	sync   *syncFetcher
	done   bool
}

// Next returns the next batch. It returns io.EOF once the epoch is
// exhausted, the context error if iteration was cancelled, or the first
// fetch error otherwise.
func (it *Iterator) Next() (Batch, error) {
	if it.done {
		return Batch{}, io.EOF
	}
	if it.sync != nil {
		batch, err := it.sync.next(it.ctx)
		if err != nil {
			it.done = true
		}
		return batch, err
	}

	select {
	case out, ok := <-it.queue:
		if !ok {
			it.done = true
			if err := it.group.Wait(); err != nil {
				return Batch{}, err
			}
			return Batch{}, io.EOF
		}
		select {
		case res := <-out:
			if res.err != nil {
				it.done = true
				it.cancel()
				return Batch{}, res.err
			}
			return res.batch, nil
		case <-it.ctx.Done():
			it.done = true
			return Batch{}, it.ctx.Err()
		}
	case <-it.ctx.Done():
		it.done = true
		return Batch{}, it.ctx.Err()
	}
}

// Close stops the epoch's workers. It is safe to call at any point and
// more than once.
func (it *Iterator) Close() error {
	it.cancel()
	it.done = true
	if it.group != nil {
		// Drain so workers blocked on queue admission can exit.
		for range it.queue {
		}
		err := it.group.Wait()
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

// syncFetcher fetches batches on the consuming goroutine when no workers
// are configured.
type syncFetcher struct {
	loader *Loader
	chunks [][]int
	pos    int
}

func (s *syncFetcher) next(ctx context.Context) (Batch, error) {
	if err := ctx.Err(); err != nil {
		return Batch{}, err
	}
	if s.pos >= len(s.chunks) {
		return Batch{}, io.EOF
	}
	batch, err := s.loader.fetch(s.chunks[s.pos])
	if err != nil {
		return Batch{}, err
	}
	s.pos++
	return batch, nil
}
