// Package images - Image decoding and tensor conversion utilities.
package images

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	// Channels is the number of color channels expected by the model input.
	Channels = 3
	// Height is the model input height in pixels.
	Height = 256
	// Width is the model input width in pixels.
	Width = 128
)

// Normalization holds per-channel mean and standard deviation applied during
// tensor conversion. The zero value applies no normalization beyond the
// [0, 1] scaling.
type Normalization struct {
	Mean [Channels]float32
	Std  [Channels]float32
}

// ToCHW converts an image into a float32 tensor of shape
// (Channels, Height, Width), channel-major, with pixel values scaled to
// [0, 1] and optionally normalized.
//
// The image must already be Width x Height; use the transforms package to
// resize beforehand.
//
// Arguments:
//   - img: The image to convert.
//   - norm: Optional per-channel normalization; nil applies none.
//
// Returns:
//   - *tensor.Dense: The converted tensor.
//   - error: An error if the image dimensions do not match.
func ToCHW(img image.Image, norm *Normalization) (*tensor.Dense, error) {
	bounds := img.Bounds()
	if bounds.Dx() != Width || bounds.Dy() != Height {
		return nil, errors.Errorf("images: got %dx%d image, want %dx%d",
			bounds.Dx(), bounds.Dy(), Width, Height)
	}

	channelSize := Height * Width
	data := make([]float32, Channels*channelSize)
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}

	if norm != nil {
		for c := 0; c < Channels; c++ {
			std := norm.Std[c]
			if std == 0 {
				std = 1
			}
			plane := data[c*channelSize : (c+1)*channelSize]
			for i := range plane {
				plane[i] = (plane[i] - norm.Mean[c]) / std
			}
		}
	}

	return tensor.New(
		tensor.WithShape(Channels, Height, Width),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	), nil
}

// ChannelToGray extracts one channel of a CHW float32 tensor as an 8-bit
// grayscale image, scaling values by 255.
//
// Arguments:
//   - t: A (channels, height, width) float32 tensor.
//   - channel: The channel index to extract.
//
// Returns:
//   - *image.Gray: The extracted grayscale image.
//   - error: An error if the tensor shape or channel index is invalid.
func ChannelToGray(t *tensor.Dense, channel int) (*image.Gray, error) {
	shape := t.Shape()
	if len(shape) != 3 {
		return nil, errors.Errorf("images: expected a 3D tensor, got shape %v", shape)
	}
	if channel < 0 || channel >= shape[0] {
		return nil, errors.Errorf("images: channel %d out of range [0, %d)", channel, shape[0])
	}
	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("images: expected float32 backing, got %T", t.Data())
	}

	height, width := shape[1], shape[2]
	gray := image.NewGray(image.Rect(0, 0, width, height))
	plane := data[channel*height*width : (channel+1)*height*width]
	for i, v := range plane {
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		gray.Pix[i] = uint8(v * 255)
	}
	return gray, nil
}

// ReadImage decodes a JPEG or PNG image from disk.
//
// Arguments:
//   - path: Path to the image file.
//
// Returns:
//   - image.Image: The decoded image.
//   - error: An error if reading or decoding fails.
func ReadImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "images: open %s", path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "images: decode %s", path)
	}
	return img, nil
}
