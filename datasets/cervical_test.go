package datasets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cspine-ai/go-landmark/datasets"
	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
	"github.com/cspine-ai/go-landmark/internal/testutil"
)

func cervicalFixture(t *testing.T) *datasets.CervicalDataset {
	t.Helper()
	dir := testutil.WriteStudies(t, 2, 64, 128)
	base, err := datasets.NewBaseDataset(dir)
	require.NoError(t, err)
	return datasets.NewCervicalDataset(base, datasets.ModeTrain, nil)
}

// TestCervicalDatasetShapes validates that every item yields the fixed
// image and heatmap tensor shapes for both members of the pair.
func TestCervicalDatasetShapes(t *testing.T) {
	ds := cervicalFixture(t)
	assert.Equal(t, 2, ds.Len(), "Wrapper length should match the record source")
	assert.Equal(t, datasets.ModeTrain, ds.Mode(), "Mode should be preserved")

	pair, err := ds.At(0)
	require.NoError(t, err, "Building a sample pair should succeed")

	for name, s := range map[string]datasets.Sample{"first": pair.First, "second": pair.Second} {
		assert.Equal(t, []int{images.Channels, images.Height, images.Width},
			[]int(s.Image.Shape()), "The %s image should have the model input shape", name)
		assert.Equal(t, []int{heatmap.NumChannels, heatmap.Height, heatmap.Width},
			[]int(s.Heatmap.Shape()), "The %s heatmap should have the label shape", name)
	}
}

// TestCervicalDatasetSecondIsMirror validates that the second member of a
// pair is the exact horizontal mirror of the first, pixels and peaks alike.
func TestCervicalDatasetSecondIsMirror(t *testing.T) {
	ds := cervicalFixture(t)

	pair, err := ds.At(0)
	require.NoError(t, err)

	first := pair.First.Image.Data().([]float32)
	second := pair.Second.Image.Data().([]float32)
	plane := images.Height * images.Width
	for c := 0; c < images.Channels; c++ {
		for y := 0; y < images.Height; y += 16 {
			for x := 0; x < images.Width; x++ {
				a := first[c*plane+y*images.Width+x]
				b := second[c*plane+y*images.Width+(images.Width-1-x)]
				require.InDelta(t, a, b, 1e-6,
					"Second image should mirror the first at c=%d y=%d x=%d", c, y, x)
			}
		}
	}

	firstPeaks, err := heatmap.Peaks(pair.First.Heatmap)
	require.NoError(t, err)
	secondPeaks, err := heatmap.Peaks(pair.Second.Heatmap)
	require.NoError(t, err)
	for c := range firstPeaks {
		assert.Equal(t, firstPeaks[c].Y, secondPeaks[c].Y, "Mirrored peak %d should keep its row", c)
	}
}

// TestCervicalDatasetDeterministic validates that repeated reads of the
// same index produce identical tensors.
func TestCervicalDatasetDeterministic(t *testing.T) {
	ds := cervicalFixture(t)

	a, err := ds.At(1)
	require.NoError(t, err)
	b, err := ds.At(1)
	require.NoError(t, err)

	assert.Equal(t, a.First.Image.Data(), b.First.Image.Data(), "Repeated reads should yield identical image data")
	assert.Equal(t, a.First.Heatmap.Data(), b.First.Heatmap.Data(), "Repeated reads should yield identical heatmap data")
}
