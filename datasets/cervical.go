package datasets

import (
	"image"

	"github.com/pkg/errors"

	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
	"github.com/cspine-ai/go-landmark/transforms"
)

// Mode selects the role a CervicalDataset plays in the pipeline.
type Mode string

const (
	// ModeTrain is the training split.
	ModeTrain Mode = "train"
	// ModeVal is the validation split.
	ModeVal Mode = "val"
	// ModeTest is the test split.
	ModeTest Mode = "test"
)

// CervicalDataset turns raw records into tensor sample pairs: the study
// view and its sagittal mirror, each an image tensor with a rendered
// heatmap label.
type CervicalDataset struct {
	dataset   RecordDataset
	mode      Mode
	transform transforms.Compose
	norm      *images.Normalization
	sigma     float32
}

// CervicalOption configures a CervicalDataset.
type CervicalOption func(*CervicalDataset)

// WithNormalization sets per-channel normalization applied during tensor
// conversion.
func WithNormalization(norm *images.Normalization) CervicalOption {
	return func(d *CervicalDataset) { d.norm = norm }
}

// WithSigma sets the Gaussian blob width of the rendered heatmap labels.
func WithSigma(sigma float32) CervicalOption {
	return func(d *CervicalDataset) { d.sigma = sigma }
}

// NewCervicalDataset wraps dataset for the given mode. A nil transform
// defaults to resizing records to the model input geometry; a custom
// pipeline must end at that geometry itself.
//
// Arguments:
//   - dataset: The raw record source, usually a split Subset.
//   - mode: The split role.
//   - transform: Optional transform pipeline; nil applies the default resize.
//   - opts: Optional dataset settings.
//
// Returns:
//   - *CervicalDataset: The wrapped dataset.
func NewCervicalDataset(dataset RecordDataset, mode Mode, transform transforms.Compose, opts ...CervicalOption) *CervicalDataset {
	if transform == nil {
		transform = transforms.Compose{
			transforms.Resize{Width: images.Width, Height: images.Height},
		}
	}
	d := &CervicalDataset{
		dataset:   dataset,
		mode:      mode,
		transform: transform,
		sigma:     heatmap.DefaultSigma,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the split role of the dataset.
func (d *CervicalDataset) Mode() Mode {
	return d.mode
}

// Len returns the number of items.
func (d *CervicalDataset) Len() int {
	return d.dataset.Len()
}

// At builds the sample pair for index i: the transformed record and its
// horizontal mirror.
func (d *CervicalDataset) At(i int) (SamplePair, error) {
	record, err := d.dataset.Record(i)
	if err != nil {
		return SamplePair{}, err
	}

	img, landmarks, err := d.transform.Apply(record.Image, record.Landmarks)
	if err != nil {
		return SamplePair{}, errors.Wrapf(err, "datasets: transform %s", record.Path)
	}

	first, err := d.sample(img, landmarks, record.Path)
	if err != nil {
		return SamplePair{}, err
	}

	mirrorImg, mirrorLandmarks, err := transforms.HorizontalFlip{}.Apply(img, landmarks)
	if err != nil {
		return SamplePair{}, errors.Wrapf(err, "datasets: mirror %s", record.Path)
	}
	second, err := d.sample(mirrorImg, mirrorLandmarks, record.Path)
	if err != nil {
		return SamplePair{}, err
	}

	return SamplePair{First: first, Second: second}, nil
}

func (d *CervicalDataset) sample(img image.Image, landmarks []heatmap.Landmark, path string) (Sample, error) {
	imageTensor, err := images.ToCHW(img, d.norm)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "datasets: tensorize %s", path)
	}
	heatmapTensor, err := heatmap.Render(landmarks, d.sigma)
	if err != nil {
		return Sample{}, errors.Wrapf(err, "datasets: render heatmap %s", path)
	}
	return Sample{Image: imageTensor, Heatmap: heatmapTensor}, nil
}
