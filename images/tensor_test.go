package images

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"
)

func flatImage(r, g, b uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for y := 0; y < Height; y++ {
		for x := 0; x < Width; x++ {
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// TestToCHWLayout validates the channel-major layout and [0, 1] scaling.
func TestToCHWLayout(t *testing.T) {
	chw, err := ToCHW(flatImage(255, 128, 0), nil)
	require.NoError(t, err, "Conversion of a correctly sized image should succeed")

	assert.Equal(t, []int{Channels, Height, Width}, []int(chw.Shape()), "Tensor should be CHW shaped")

	data := chw.Data().([]float32)
	plane := Height * Width
	assert.InDelta(t, 1.0, data[0], 1e-6, "Red plane should scale 255 to 1")
	assert.InDelta(t, 128.0/255.0, data[plane], 1e-6, "Green plane should scale 128")
	assert.InDelta(t, 0.0, data[2*plane], 1e-6, "Blue plane should scale 0")
}

// TestToCHWNormalization validates per-channel mean/std application and the
// zero-std guard.
func TestToCHWNormalization(t *testing.T) {
	norm := &Normalization{
		Mean: [Channels]float32{0.5, 0.5, 0.5},
		Std:  [Channels]float32{0.5, 0.5, 0}, // zero std must not divide by zero
	}
	chw, err := ToCHW(flatImage(255, 255, 255), norm)
	require.NoError(t, err, "Normalized conversion should succeed")

	data := chw.Data().([]float32)
	plane := Height * Width
	assert.InDelta(t, 1.0, data[0], 1e-6, "(1 - 0.5) / 0.5 should give 1")
	assert.InDelta(t, 0.5, data[2*plane], 1e-6, "A zero std should fall back to 1")
}

// TestToCHWRejectsWrongSize validates the dimension check.
func TestToCHWRejectsWrongSize(t *testing.T) {
	_, err := ToCHW(image.NewRGBA(image.Rect(0, 0, 64, 64)), nil)
	assert.Error(t, err, "An image that is not Width x Height should be rejected")
}

// TestChannelToGray validates extraction, scaling, and clamping.
func TestChannelToGray(t *testing.T) {
	plane := Height * Width
	data := make([]float32, Channels*plane)
	data[0] = 1.5  // clamps to 255
	data[1] = -0.5 // clamps to 0
	data[2] = 0.5
	chw := tensor.New(
		tensor.WithShape(Channels, Height, Width),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data),
	)

	gray, err := ChannelToGray(chw, 0)
	require.NoError(t, err, "Extraction of a valid channel should succeed")

	assert.Equal(t, uint8(255), gray.Pix[0], "Values above 1 should clamp to 255")
	assert.Equal(t, uint8(0), gray.Pix[1], "Values below 0 should clamp to 0")
	assert.Equal(t, uint8(127), gray.Pix[2], "Values in range should scale by 255")

	_, err = ChannelToGray(chw, Channels)
	assert.Error(t, err, "An out-of-range channel should be rejected")
}
