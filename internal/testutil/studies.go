// Package testutil - Helpers for building synthetic annotated studies on disk.
package testutil

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cspine-ai/go-landmark/heatmap"
)

// WriteStudy writes a synthetic study image and its landmark annotation file
// into dir. The image is a two-axis gradient of the given size; landmarks
// are spread down the image's center line.
//
// Arguments:
//   - t: The testing context.
//   - dir: The directory to write into.
//   - name: The study file stem, e.g. "study-001".
//   - width: Image width in pixels.
//   - height: Image height in pixels.
func WriteStudy(t *testing.T, dir, name string, width, height int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		v := uint8(255 * y / height)
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(255 * x / width), G: v, B: v, A: 255})
		}
	}

	f, err := os.Create(filepath.Join(dir, name+".png"))
	if err != nil {
		t.Fatalf("create study image: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		t.Fatalf("encode study image: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close study image: %v", err)
	}

	var sb strings.Builder
	for i := 0; i < heatmap.NumChannels; i++ {
		x := float64(width) / 2
		y := float64(height) * float64(i+1) / float64(heatmap.NumChannels+1)
		fmt.Fprintf(&sb, "%.1f,%.1f\n", x, y)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".csv"), []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write annotation file: %v", err)
	}
}

// WriteStudies writes n synthetic studies into a fresh temp directory and
// returns its path.
func WriteStudies(t *testing.T, n, width, height int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		WriteStudy(t, dir, fmt.Sprintf("study-%03d", i), width, height)
	}
	return dir
}
