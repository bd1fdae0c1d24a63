package dataloader

import (
	"context"
	"io"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cspine-ai/go-landmark/datasets"
)

// fakeDataset yields pairs whose tensors are filled with the item index, so
// tests can read batch contents back into index orders.
type fakeDataset struct {
	n    int
	fail int // index that errors; -1 for none
}

func (f fakeDataset) Len() int { return f.n }

func (f fakeDataset) At(i int) (datasets.SamplePair, error) {
	if i == f.fail {
		return datasets.SamplePair{}, errors.Errorf("corrupt item %d", i)
	}
	return fakePair(float32(i)), nil
}

// drain collects the leading index of every batch until io.EOF.
func drain(t *testing.T, it *Iterator) []int {
	t.Helper()
	var order []int
	for {
		batch, err := it.Next()
		if err == io.EOF {
			return order
		}
		require.NoError(t, err, "Iteration should not fail")
		data := batch.Images.Data().([]float32)
		for row := 0; row < batch.Size(); row++ {
			order = append(order, int(data[row*imageSize]))
		}
	}
}

// TestLoaderOrderedIteration validates that an unshuffled loader yields
// every item exactly once in index order, across worker counts.
func TestLoaderOrderedIteration(t *testing.T) {
	for _, workers := range []int{0, 1, 4} {
		t.Run(map[int]string{0: "Sync", 1: "OneWorker", 4: "FourWorkers"}[workers], func(t *testing.T) {
			loader, err := New(fakeDataset{n: 10, fail: -1}, Options{
				BatchSize: 3,
				Workers:   workers,
			})
			require.NoError(t, err, "Loader construction should succeed")
			assert.Equal(t, 4, loader.Len(), "10 items at batch size 3 should make 4 batches")

			it := loader.Batches(context.Background())
			defer it.Close()

			order := drain(t, it)
			assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order,
				"Unshuffled iteration should preserve index order")
		})
	}
}

// TestLoaderShuffleReproducible validates that the same seed yields the
// same epoch orders, and that epochs differ from each other.
func TestLoaderShuffleReproducible(t *testing.T) {
	newLoader := func() *Loader {
		loader, err := New(fakeDataset{n: 16, fail: -1}, Options{
			BatchSize: 4,
			Workers:   2,
			Shuffle:   true,
			Seed:      7,
		})
		require.NoError(t, err)
		return loader
	}

	a, b := newLoader(), newLoader()

	itA := a.Batches(context.Background())
	orderA := drain(t, itA)
	require.NoError(t, itA.Close())

	itB := b.Batches(context.Background())
	orderB := drain(t, itB)
	require.NoError(t, itB.Close())

	assert.Equal(t, orderA, orderB, "Same seed should shuffle identically")
	assert.NotEqual(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, orderA,
		"Shuffled order should differ from index order")

	itA2 := a.Batches(context.Background())
	orderA2 := drain(t, itA2)
	require.NoError(t, itA2.Close())
	assert.NotEqual(t, orderA, orderA2, "Consecutive epochs should reshuffle")
}

// TestLoaderPairConcatBatches validates the training configuration: the
// collate doubles each batch relative to the sampled index count.
func TestLoaderPairConcatBatches(t *testing.T) {
	loader, err := New(fakeDataset{n: 8, fail: -1}, Options{
		BatchSize: 4,
		Workers:   2,
		Collate:   PairConcat,
		PinMemory: true,
	})
	require.NoError(t, err)

	it := loader.Batches(context.Background())
	defer it.Close()

	for i := 0; i < 2; i++ {
		batch, err := it.Next()
		require.NoError(t, err, "Batch %d should load", i)
		assert.Equal(t, 8, batch.Size(), "Each batch should carry twice the sampled index count")
	}
	_, err = it.Next()
	assert.Equal(t, io.EOF, err, "The epoch should end with io.EOF")
	_, err = it.Next()
	assert.Equal(t, io.EOF, err, "Next after the end should keep returning io.EOF")
}

// TestLoaderPropagatesFetchErrors validates that a dataset error surfaces
// from Next instead of hanging the pipeline.
func TestLoaderPropagatesFetchErrors(t *testing.T) {
	for _, workers := range []int{0, 2} {
		t.Run(map[int]string{0: "Sync", 2: "Workers"}[workers], func(t *testing.T) {
			loader, err := New(fakeDataset{n: 6, fail: 4}, Options{
				BatchSize: 2,
				Workers:   workers,
			})
			require.NoError(t, err)

			it := loader.Batches(context.Background())
			defer it.Close()

			var sawErr error
			for {
				_, err := it.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					sawErr = err
					break
				}
			}
			require.Error(t, sawErr, "The corrupt item should surface as an iteration error")
			assert.Contains(t, sawErr.Error(), "corrupt item 4", "The error should name the failing item")
		})
	}
}

// TestLoaderContextCancellation validates that cancelling the context stops
// iteration with the context error.
func TestLoaderContextCancellation(t *testing.T) {
	loader, err := New(fakeDataset{n: 64, fail: -1}, Options{
		BatchSize: 2,
		Workers:   2,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	it := loader.Batches(ctx)
	defer it.Close()

	_, err = it.Next()
	require.NoError(t, err, "The first batch should load before cancellation")

	cancel()
	for {
		_, err = it.Next()
		if err != nil {
			break
		}
	}
	assert.ErrorIs(t, err, context.Canceled, "Cancellation should surface the context error")
}

// TestLoaderOptionValidation validates constructor checks.
func TestLoaderOptionValidation(t *testing.T) {
	_, err := New(nil, Options{BatchSize: 1})
	assert.Error(t, err, "A nil dataset should be rejected")

	_, err = New(fakeDataset{n: 1, fail: -1}, Options{BatchSize: 0})
	assert.Error(t, err, "A non-positive batch size should be rejected")
}
