package dataloader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/cspine-ai/go-landmark/datasets"
	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
)

// fakeSample builds a well-shaped sample whose tensors are filled with v.
func fakeSample(v float32) datasets.Sample {
	imageData := make([]float32, imageSize)
	heatmapData := make([]float32, heatmapSize)
	for i := range imageData {
		imageData[i] = v
	}
	for i := range heatmapData {
		heatmapData[i] = v
	}
	return datasets.Sample{
		Image: tensor.New(
			tensor.WithShape(images.Channels, images.Height, images.Width),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(imageData),
		),
		Heatmap: tensor.New(
			tensor.WithShape(heatmap.NumChannels, heatmap.Height, heatmap.Width),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(heatmapData),
		),
	}
}

func fakePair(v float32) datasets.SamplePair {
	return datasets.SamplePair{First: fakeSample(v), Second: fakeSample(v + 0.5)}
}

// TestPairConcatDoublesBatch validates that N paired items collate into
// tensors with batch dimension 2N and the fixed channel/spatial dimensions.
func TestPairConcatDoublesBatch(t *testing.T) {
	const n = 3
	items := make([]datasets.SamplePair, n)
	for i := range items {
		items[i] = fakePair(float32(i))
	}

	batch, err := PairConcat(items)
	require.NoError(t, err, "Collating well-shaped pairs should succeed")

	assert.Equal(t, []int{2 * n, images.Channels, images.Height, images.Width},
		[]int(batch.Images.Shape()), "Image batch dimension should be 2N")
	assert.Equal(t, []int{2 * n, heatmap.NumChannels, heatmap.Height, heatmap.Width},
		[]int(batch.Heatmaps.Shape()), "Heatmap batch dimension should be 2N")
	assert.Equal(t, 2*n, batch.Size(), "Batch size accessor should agree")

	// Pair members interleave: item i lands at rows 2i and 2i+1.
	data := batch.Images.Data().([]float32)
	for i := 0; i < n; i++ {
		assert.Equal(t, float32(i), data[2*i*imageSize], "Row %d should hold item %d's first view", 2*i, i)
		assert.Equal(t, float32(i)+0.5, data[(2*i+1)*imageSize], "Row %d should hold item %d's second view", 2*i+1, i)
	}
}

// TestStackKeepsFirstView validates the default collate: batch dimension N,
// first member of each pair only.
func TestStackKeepsFirstView(t *testing.T) {
	items := []datasets.SamplePair{fakePair(1), fakePair(2)}

	batch, err := Stack(items)
	require.NoError(t, err, "Stack collation should succeed")

	assert.Equal(t, 2, batch.Size(), "Stack should keep one row per item")
	data := batch.Images.Data().([]float32)
	assert.Equal(t, float32(1), data[0], "Row 0 should hold item 0's first view")
	assert.Equal(t, float32(2), data[imageSize], "Row 1 should hold item 1's first view")
}

// TestCollateRejectsShapeMismatch validates that a sample with the wrong
// tensor shape fails at the collation site instead of downstream.
func TestCollateRejectsShapeMismatch(t *testing.T) {
	bad := fakePair(0)
	bad.First.Image = tensor.New(
		tensor.WithShape(images.Channels, 64, 64),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(make([]float32, images.Channels*64*64)),
	)

	_, err := PairConcat([]datasets.SamplePair{bad})
	require.Error(t, err, "A mis-shaped image should fail collation")
	assert.Contains(t, err.Error(), "want", "The error should name the expected shape")
}

// TestCollateRejectsNilTensor validates the nil tensor check.
func TestCollateRejectsNilTensor(t *testing.T) {
	bad := fakePair(0)
	bad.Second.Heatmap = nil

	_, err := PairConcat([]datasets.SamplePair{bad})
	assert.Error(t, err, "A nil heatmap should fail collation")
}

// TestCollateRejectsEmptyBatch validates the empty batch check.
func TestCollateRejectsEmptyBatch(t *testing.T) {
	_, err := Stack(nil)
	assert.Error(t, err, "An empty batch should be rejected")
}
