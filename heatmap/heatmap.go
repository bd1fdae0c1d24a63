// Package heatmap - Gaussian heatmap rendering and peak decoding for landmark targets.
package heatmap

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// NumChannels is the number of heatmap channels, one per landmark.
	NumChannels = 24
	// Height is the heatmap height in pixels.
	Height = 64
	// Width is the heatmap width in pixels.
	Width = 32
	// Stride is the downscale factor between image space and heatmap space.
	Stride = 4
	// DefaultSigma is the standard deviation of the rendered Gaussian blobs,
	// in heatmap pixels.
	DefaultSigma = 1.5
)

// Landmark is a single keypoint in image-space pixel coordinates.
type Landmark struct {
	// X is the horizontal coordinate in image space.
	X float32
	// Y is the vertical coordinate in image space.
	Y float32
	// Visible reports whether the landmark was annotated. Invisible
	// landmarks render an all-zero channel.
	Visible bool
}

// Peak is the location of a channel's maximum activation, in heatmap-space
// coordinates.
type Peak struct {
	X     int
	Y     int
	Value float32
}

// Render renders one Gaussian likelihood channel per landmark.
//
// Landmarks are given in image-space coordinates and are divided by Stride
// before rendering. The result is a float32 tensor of shape
// (NumChannels, Height, Width) with a peak value of 1.0 at each visible
// landmark's position.
//
// Arguments:
//   - landmarks: Exactly NumChannels landmarks in image-space coordinates.
//   - sigma: Standard deviation of the blobs in heatmap pixels; values <= 0
//     fall back to DefaultSigma.
//
// Returns:
//   - *tensor.Dense: The rendered (NumChannels, Height, Width) heatmap.
//   - error: An error if the landmark count is wrong.
func Render(landmarks []Landmark, sigma float32) (*tensor.Dense, error) {
	if len(landmarks) != NumChannels {
		return nil, errors.Errorf("heatmap: got %d landmarks, want %d", len(landmarks), NumChannels)
	}
	if sigma <= 0 {
		sigma = DefaultSigma
	}

	data := make([]float32, NumChannels*Height*Width)
	denom := 2 * sigma * sigma
	for c, lm := range landmarks {
		if !lm.Visible {
			continue
		}
		cx := lm.X / Stride
		cy := lm.Y / Stride
		plane := data[c*Height*Width : (c+1)*Height*Width]
		for y := 0; y < Height; y++ {
			dy := float32(y) - cy
			for x := 0; x < Width; x++ {
				dx := float32(x) - cx
				plane[y*Width+x] = math32.Exp(-(dx*dx + dy*dy) / denom)
			}
		}
	}

	return tensor.New(
		tensor.WithShape(NumChannels, Height, Width),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	), nil
}

// Peaks decodes the per-channel argmax locations of a heatmap tensor.
//
// Arguments:
//   - hm: A (channels, height, width) float32 heatmap tensor.
//
// Returns:
//   - []Peak: One peak per channel, in heatmap-space coordinates.
//   - error: An error if the tensor is not a 3D float32 tensor.
func Peaks(hm *tensor.Dense) ([]Peak, error) {
	shape := hm.Shape()
	if len(shape) != 3 {
		return nil, errors.Errorf("heatmap: expected a 3D tensor, got shape %v", shape)
	}
	data, ok := hm.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("heatmap: expected float32 backing, got %T", hm.Data())
	}

	channels, height, width := shape[0], shape[1], shape[2]
	peaks := make([]Peak, channels)
	for c := 0; c < channels; c++ {
		plane := data[c*height*width : (c+1)*height*width]
		best := 0
		for i, v := range plane {
			if v > plane[best] {
				best = i
			}
		}
		peaks[c] = Peak{
			X:     best % width,
			Y:     best / width,
			Value: plane[best],
		}
	}
	return peaks, nil
}
