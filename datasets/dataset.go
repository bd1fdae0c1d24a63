// Package datasets - Cervical spine landmark datasets: raw annotated records,
// deterministic splitting, and tensor-level sample views.
package datasets

import (
	"image"

	"gorgonia.org/tensor"

	"github.com/cspine-ai/go-landmark/heatmap"
)

// Record is one raw annotated study: the decoded image and its landmark
// annotations in original image coordinates.
type Record struct {
	// Path is the path of the source image file.
	Path string
	// Image is the decoded image.
	Image image.Image
	// Landmarks are the annotated keypoints, one per vertebra landmark.
	Landmarks []heatmap.Landmark
}

// RecordDataset is a fixed-size indexable collection of raw records.
type RecordDataset interface {
	// Len returns the number of records.
	Len() int
	// Record returns the record at index i.
	Record(i int) (Record, error)
}

// Sample is one training observation: a CHW float32 image tensor paired
// with its heatmap label tensor.
type Sample struct {
	// Image has shape (3, 256, 128).
	Image *tensor.Dense
	// Heatmap has shape (24, 64, 32).
	Heatmap *tensor.Dense
}

// SamplePair is the two paired observations a dataset item yields: the
// study view and its sagittal mirror.
type SamplePair struct {
	First  Sample
	Second Sample
}

// Dataset is a fixed-size indexable collection of sample pairs, consumed
// by the dataloader.
type Dataset interface {
	// Len returns the number of items.
	Len() int
	// At returns the item at index i.
	At(i int) (SamplePair, error)
}
