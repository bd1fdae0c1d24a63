// Package dataloader - Iterable batch producers over landmark datasets, with
// a bounded worker pool and pluggable batch collation.
package dataloader

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/cspine-ai/go-landmark/datasets"
	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
)

// Batch is one collated batch: images of shape (B, 3, 256, 128) and
// heatmap labels of shape (B, 24, 64, 32).
type Batch struct {
	Images   *tensor.Dense
	Heatmaps *tensor.Dense
}

// Size returns the batch dimension.
func (b Batch) Size() int {
	if b.Images == nil {
		return 0
	}
	return b.Images.Shape()[0]
}

// Collate assembles sampled items into a single batch.
type Collate func(items []datasets.SamplePair) (Batch, error)

const (
	imageSize   = images.Channels * images.Height * images.Width
	heatmapSize = heatmap.NumChannels * heatmap.Height * heatmap.Width
)

// Stack collates the first member of every pair, producing a batch
// dimension equal to the number of sampled items.
func Stack(items []datasets.SamplePair) (Batch, error) {
	samples := make([]datasets.Sample, len(items))
	for i, item := range items {
		samples[i] = item.First
	}
	return collate(samples)
}

// PairConcat collates both members of every pair along the batch
// dimension, doubling the effective batch size relative to the number of
// sampled items. The training dataloader uses it so each step sees every
// study together with its mirror.
func PairConcat(items []datasets.SamplePair) (Batch, error) {
	samples := make([]datasets.Sample, 0, 2*len(items))
	for _, item := range items {
		samples = append(samples, item.First, item.Second)
	}
	return collate(samples)
}

// collate concatenates samples into fixed-shape batch tensors. A sample
// whose tensors do not match the expected shapes fails here rather than
// surfacing as a shape mismatch somewhere downstream.
func collate(samples []datasets.Sample) (Batch, error) {
	n := len(samples)
	if n == 0 {
		return Batch{}, errors.New("dataloader: empty batch")
	}

	imageData := make([]float32, n*imageSize)
	heatmapData := make([]float32, n*heatmapSize)
	for i, s := range samples {
		if err := copyTensor(imageData[i*imageSize:(i+1)*imageSize], s.Image,
			images.Channels, images.Height, images.Width); err != nil {
			return Batch{}, errors.Wrapf(err, "dataloader: image %d", i)
		}
		if err := copyTensor(heatmapData[i*heatmapSize:(i+1)*heatmapSize], s.Heatmap,
			heatmap.NumChannels, heatmap.Height, heatmap.Width); err != nil {
			return Batch{}, errors.Wrapf(err, "dataloader: heatmap %d", i)
		}
	}

	return Batch{
		Images: tensor.New(
			tensor.WithShape(n, images.Channels, images.Height, images.Width),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(imageData),
		),
		Heatmaps: tensor.New(
			tensor.WithShape(n, heatmap.NumChannels, heatmap.Height, heatmap.Width),
			tensor.Of(tensor.Float32),
			tensor.WithBacking(heatmapData),
		),
	}, nil
}

func copyTensor(dst []float32, t *tensor.Dense, want ...int) error {
	if t == nil {
		return errors.New("nil tensor")
	}
	shape := t.Shape()
	if len(shape) != len(want) {
		return errors.Errorf("got shape %v, want %v", shape, want)
	}
	for i, dim := range want {
		if shape[i] != dim {
			return errors.Errorf("got shape %v, want %v", shape, want)
		}
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return errors.Errorf("got %T backing, want []float32", t.Data())
	}
	copy(dst, data)
	return nil
}
