// Package transforms - Geometric transforms applied to images and their
// landmark annotations together.
package transforms

import (
	"image"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/cspine-ai/go-landmark/heatmap"
)

// Transform rewrites an image and its landmarks in lockstep so annotations
// stay aligned with pixels.
type Transform interface {
	Apply(img image.Image, landmarks []heatmap.Landmark) (image.Image, []heatmap.Landmark, error)
}

// Compose chains transforms left to right.
type Compose []Transform

// Apply runs every transform in order, stopping at the first error.
func (c Compose) Apply(img image.Image, landmarks []heatmap.Landmark) (image.Image, []heatmap.Landmark, error) {
	var err error
	for i, t := range c {
		img, landmarks, err = t.Apply(img, landmarks)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "transforms: step %d", i)
		}
	}
	return img, landmarks, nil
}

// Resize resizes the image to a fixed size and rescales landmarks by the
// same factors.
type Resize struct {
	Width  int
	Height int
}

// Apply resizes using the Lanczos3 algorithm.
func (r Resize) Apply(img image.Image, landmarks []heatmap.Landmark) (image.Image, []heatmap.Landmark, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return nil, nil, errors.Errorf("transforms: invalid resize target %dx%d", r.Width, r.Height)
	}

	bounds := img.Bounds()
	sx := float32(r.Width) / float32(bounds.Dx())
	sy := float32(r.Height) / float32(bounds.Dy())

	resized := resize.Resize(uint(r.Width), uint(r.Height), img, resize.Lanczos3)

	out := make([]heatmap.Landmark, len(landmarks))
	for i, lm := range landmarks {
		out[i] = heatmap.Landmark{
			X:       lm.X * sx,
			Y:       lm.Y * sy,
			Visible: lm.Visible,
		}
	}
	return resized, out, nil
}

// HorizontalFlip mirrors the image left-right and reflects landmark X
// coordinates.
type HorizontalFlip struct{}

// Apply flips the image horizontally.
func (HorizontalFlip) Apply(img image.Image, landmarks []heatmap.Landmark) (image.Image, []heatmap.Landmark, error) {
	flipped := imaging.FlipH(img)
	width := float32(img.Bounds().Dx())

	out := make([]heatmap.Landmark, len(landmarks))
	for i, lm := range landmarks {
		out[i] = heatmap.Landmark{
			X:       width - 1 - lm.X,
			Y:       lm.Y,
			Visible: lm.Visible,
		}
	}
	return flipped, out, nil
}

// RandomHorizontalFlip applies HorizontalFlip with probability P using the
// given source. A nil Rand flips deterministically never (P <= 0) or
// always (P >= 1) and errors otherwise.
type RandomHorizontalFlip struct {
	P    float64
	Rand *rand.Rand
}

// Apply flips with probability P.
func (r RandomHorizontalFlip) Apply(img image.Image, landmarks []heatmap.Landmark) (image.Image, []heatmap.Landmark, error) {
	flip := false
	switch {
	case r.P <= 0:
	case r.P >= 1:
		flip = true
	case r.Rand == nil:
		return nil, nil, errors.New("transforms: RandomHorizontalFlip needs a Rand for fractional P")
	default:
		flip = r.Rand.Float64() < r.P
	}
	if !flip {
		return img, landmarks, nil
	}
	return HorizontalFlip{}.Apply(img, landmarks)
}
