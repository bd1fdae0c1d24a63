package datasets

import (
	"math/rand"

	"github.com/pkg/errors"
)

// SplitSeed is the fixed seed used to partition datasets, guaranteeing
// reproducible split membership across runs.
const SplitSeed int64 = 42

// Subset is an index-remapped view over a RecordDataset.
type Subset struct {
	dataset RecordDataset
	indices []int
}

// NewSubset creates a view over dataset restricted to indices.
//
// Arguments:
//   - dataset: The underlying dataset.
//   - indices: Indices into dataset, in view order.
//
// Returns:
//   - *Subset: The view.
//   - error: An error if any index is out of range.
func NewSubset(dataset RecordDataset, indices []int) (*Subset, error) {
	for _, idx := range indices {
		if idx < 0 || idx >= dataset.Len() {
			return nil, errors.Errorf("datasets: subset index %d out of range [0, %d)", idx, dataset.Len())
		}
	}
	return &Subset{dataset: dataset, indices: indices}, nil
}

// Len returns the number of records in the view.
func (s *Subset) Len() int {
	return len(s.indices)
}

// Record returns the record at view index i.
func (s *Subset) Record(i int) (Record, error) {
	if i < 0 || i >= len(s.indices) {
		return Record{}, errors.Errorf("datasets: index %d out of range [0, %d)", i, len(s.indices))
	}
	return s.dataset.Record(s.indices[i])
}

// Indices returns a copy of the view's index mapping.
func (s *Subset) Indices() []int {
	out := make([]int, len(s.indices))
	copy(out, s.indices)
	return out
}

// RandomSplit deterministically partitions a dataset into two disjoint,
// exhaustive subsets. Fractional ratios are resolved to lengths by flooring
// each share and assigning the remainder to the first subset. The same
// seed always yields the same membership.
//
// Arguments:
//   - dataset: The dataset to partition.
//   - trainRatio: Fraction of records assigned to the first subset.
//   - testRatio: Fraction assigned to the second; must sum to 1 with trainRatio.
//   - seed: Seed for the shuffle of the index permutation.
//
// Returns:
//   - *Subset: The first (training) subset.
//   - *Subset: The second (evaluation) subset.
//   - error: A configuration error if the ratios are invalid.
func RandomSplit(dataset RecordDataset, trainRatio, testRatio float64, seed int64) (*Subset, *Subset, error) {
	if trainRatio < 0 || testRatio < 0 {
		return nil, nil, errors.Errorf("datasets: negative split ratio (%v, %v)", trainRatio, testRatio)
	}
	sum := trainRatio + testRatio
	if sum < 0.999 || sum > 1.001 {
		return nil, nil, errors.Errorf("datasets: split ratios sum to %v, want 1", sum)
	}

	n := dataset.Len()
	trainLen := int(float64(n) * trainRatio)
	testLen := int(float64(n) * testRatio)
	trainLen += n - trainLen - testLen // remainder goes to the first subset

	perm := rand.New(rand.NewSource(seed)).Perm(n)

	train, err := NewSubset(dataset, perm[:trainLen])
	if err != nil {
		return nil, nil, err
	}
	test, err := NewSubset(dataset, perm[trainLen:])
	if err != nil {
		return nil, nil, err
	}
	return train, test, nil
}
