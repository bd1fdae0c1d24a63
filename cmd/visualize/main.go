// Command visualize loads one validation batch and writes its first image
// to disk with the ground-truth landmark peaks (and, when a model is given,
// the predicted peaks) overlaid.
package main

import (
	"context"
	"image"
	"image/color"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"

	"github.com/cspine-ai/go-landmark/datamodule"
	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
	"github.com/cspine-ai/go-landmark/inference"
)

var (
	configPath string // Path to the YAML data config
	dataRoot   string // Override for the annotated study directory
	modelPath  string // Optional ONNX landmark model for predicted peaks
	outputPath string // Output image file
	logLevel   string // Log verbosity level
)

var rootCmd = &cobra.Command{
	Use:   "visualize",
	Short: "Overlay landmark heatmap peaks on a validation image",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML data config")
	rootCmd.Flags().StringVar(&dataRoot, "data-root", "", "directory of annotated studies (overrides config)")
	rootCmd.Flags().StringVar(&modelPath, "model", "", "optional ONNX model for predicted peaks")
	rootCmd.Flags().StringVar(&outputPath, "output", "test.png", "output image path")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log verbosity level")
}

func run(ctx context.Context) error {
	cfg := datamodule.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = datamodule.LoadConfig(configPath)
		if err != nil {
			return err
		}
	}
	if dataRoot != "" {
		cfg.DataRoot = dataRoot
	}

	module, err := datamodule.New(cfg)
	if err != nil {
		return err
	}
	if err := module.Setup(datamodule.StageFit); err != nil {
		return err
	}

	loader, err := module.ValDataloader()
	if err != nil {
		return err
	}
	it := loader.Batches(ctx)
	defer it.Close()

	batch, err := it.Next()
	if err != nil {
		return err
	}

	img := firstOf(batch.Images)
	label := firstOf(batch.Heatmaps)

	gray, err := images.ChannelToGray(img, 0)
	if err != nil {
		return err
	}
	mat, err := gocv.NewMatFromBytes(images.Height, images.Width, gocv.MatTypeCV8UC1, gray.Pix)
	if err != nil {
		return err
	}
	defer mat.Close()

	canvas := gocv.NewMat()
	defer canvas.Close()
	gocv.CvtColor(mat, &canvas, gocv.ColorGrayToBGR)

	truthPeaks, err := heatmap.Peaks(label)
	if err != nil {
		return err
	}
	drawPeaks(&canvas, truthPeaks, color.RGBA{R: 0, G: 255, B: 255})

	if modelPath != "" {
		predictor, err := inference.NewPredictor(inference.PredictorConfig{ModelPath: modelPath})
		if err != nil {
			return err
		}
		defer predictor.Close()

		predicted, err := predictor.Predict(img)
		if err != nil {
			return err
		}
		predictedPeaks, err := heatmap.Peaks(predicted)
		if err != nil {
			return err
		}
		drawPeaks(&canvas, predictedPeaks, color.RGBA{R: 255})
	}

	if ok := gocv.IMWrite(outputPath, canvas); !ok {
		logrus.Fatalf("Failed to write %s", outputPath)
	}
	logrus.Infof("Wrote %s", outputPath)
	return nil
}

// firstOf views the first item of a batched (B, C, H, W) tensor as a
// (C, H, W) tensor sharing the same backing.
func firstOf(t *tensor.Dense) *tensor.Dense {
	shape := t.Shape()
	size := shape[1] * shape[2] * shape[3]
	data := t.Data().([]float32)
	return tensor.New(
		tensor.WithShape(shape[1], shape[2], shape[3]),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(data[:size]),
	)
}

// drawPeaks marks each peak at image scale.
func drawPeaks(canvas *gocv.Mat, peaks []heatmap.Peak, c color.RGBA) {
	for _, p := range peaks {
		center := image.Pt(p.X*heatmap.Stride, p.Y*heatmap.Stride)
		gocv.Circle(canvas, center, 2, c, -1)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}
