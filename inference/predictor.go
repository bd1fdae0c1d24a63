// Package inference - ONNX heatmap predictor for trained landmark models.
package inference

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/cspine-ai/go-landmark/heatmap"
	"github.com/cspine-ai/go-landmark/images"
)

// Default tensor names exported by the landmark model.
const (
	DefaultInputName  = "input"
	DefaultOutputName = "output"
)

// Predictor runs a trained landmark model over single samples, producing
// predicted heatmaps. It holds one (1, 3, 256, 128) input tensor and one
// (1, 24, 64, 32) output tensor reused across calls; it is not safe for
// concurrent use.
type Predictor struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

// PredictorConfig configures a Predictor.
type PredictorConfig struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// InputName and OutputName override the model tensor names.
	InputName  string
	OutputName string
	// LibraryPath overrides the ONNX Runtime shared library location.
	LibraryPath string
}

// NewPredictor loads the model and prepares the session.
//
// Arguments:
//   - cfg: Predictor configuration; ModelPath is required.
//
// Returns:
//   - *Predictor: The ready predictor.
//   - error: An error if the runtime or session cannot be initialized.
func NewPredictor(cfg PredictorConfig) (*Predictor, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("inference: model path is required")
	}
	if cfg.InputName == "" {
		cfg.InputName = DefaultInputName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = DefaultOutputName
	}

	if !ort.IsInitialized() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		} else {
			ort.SetSharedLibraryPath(GetSharedLibPath())
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "inference: initialize ORT environment")
		}
	}

	inputShape := ort.NewShape(1, images.Channels, images.Height, images.Width)
	inputTensor, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "inference: create input tensor")
	}

	outputShape := ort.NewShape(1, heatmap.NumChannels, heatmap.Height, heatmap.Width)
	outputTensor, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		inputTensor.Destroy()
		return nil, errors.Wrap(err, "inference: create output tensor")
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "inference: create session options")
	}
	defer options.Destroy()
	options.SetGraphOptimizationLevel(ort.GraphOptimizationLevelEnableExtended)

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, errors.Wrap(err, "inference: create ORT session")
	}

	return &Predictor{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Predict runs the model on one image tensor of shape (3, 256, 128) and
// returns the predicted heatmap tensor of shape (24, 64, 32).
func (p *Predictor) Predict(img *tensor.Dense) (*tensor.Dense, error) {
	if p.session == nil {
		return nil, errors.New("inference: predictor is closed")
	}

	shape := img.Shape()
	if len(shape) != 3 || shape[0] != images.Channels || shape[1] != images.Height || shape[2] != images.Width {
		return nil, errors.Errorf("inference: got image shape %v, want (%d, %d, %d)",
			shape, images.Channels, images.Height, images.Width)
	}
	data, ok := img.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("inference: got %T backing, want []float32", img.Data())
	}
	copy(p.input.GetData(), data)

	if err := p.session.Run(); err != nil {
		return nil, errors.Wrap(err, "inference: run session")
	}

	out := make([]float32, len(p.output.GetData()))
	copy(out, p.output.GetData())
	return tensor.New(
		tensor.WithShape(heatmap.NumChannels, heatmap.Height, heatmap.Width),
		tensor.Of(tensor.Float32),
		tensor.WithBacking(out),
	), nil
}

// Close releases the session and its tensors.
func (p *Predictor) Close() {
	if p.input != nil {
		p.input.Destroy()
		p.input = nil
	}
	if p.output != nil {
		p.output.Destroy()
		p.output = nil
	}
	if p.session != nil {
		p.session.Destroy()
		p.session = nil
	}
}
