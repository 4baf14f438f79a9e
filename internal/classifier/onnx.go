package classifier

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/dudu/emojicam/internal/emotion"
	"github.com/dudu/emojicam/internal/inference"
)

// Config holds classifier configuration
type Config struct {
	ModelPath  string
	InputName  string // discovered from the model when empty
	OutputName string // discovered from the model when empty
	CropSize   int
}

// ONNX runs the 48x48 grayscale emotion CNN through ONNX Runtime
type ONNX struct {
	session  *inference.Session
	cropSize int
}

// NewONNX loads the emotion model. inference.Initialize must have been called.
func NewONNX(cfg Config) (*ONNX, error) {
	if cfg.CropSize <= 0 {
		return nil, fmt.Errorf("crop size must be > 0, got %d", cfg.CropSize)
	}

	input, output := cfg.InputName, cfg.OutputName
	if input == "" || output == "" {
		ins, outs, err := inference.Describe(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		if len(ins) == 0 || len(outs) == 0 {
			return nil, fmt.Errorf("model %s has no inputs or outputs", cfg.ModelPath)
		}
		if input == "" {
			input = ins[0].Name
		}
		if output == "" {
			output = outs[0].Name
		}
	}

	session, err := inference.NewSession(cfg.ModelPath, []string{input}, []string{output})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier session: %w", err)
	}

	return &ONNX{session: session, cropSize: cfg.CropSize}, nil
}

// Classify returns the emotion scores for one face crop
func (c *ONNX) Classify(crop emotion.Crop) (emotion.Prediction, error) {
	if crop.Size != c.cropSize || len(crop.Data) != c.cropSize*c.cropSize {
		return emotion.Prediction{}, fmt.Errorf("crop is %d values of size %d, want %dx%d",
			len(crop.Data), crop.Size, c.cropSize, c.cropSize)
	}

	inputTensor, err := inference.CreateTensor(crop.Shape(), crop.Data)
	if err != nil {
		return emotion.Prediction{}, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := inference.CreateEmptyTensor[float32]([]int64{1, emotion.NumLabels})
	if err != nil {
		return emotion.Prediction{}, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := c.session.Run([]ort.Value{inputTensor}, []ort.Value{outputTensor}); err != nil {
		return emotion.Prediction{}, fmt.Errorf("inference failed: %w", err)
	}

	// GetData aliases tensor memory, copy before Destroy
	scores := make([]float32, emotion.NumLabels)
	copy(scores, outputTensor.GetData())

	return emotion.NewPrediction(scores)
}

// Close releases classifier resources
func (c *ONNX) Close() error {
	return c.session.Destroy()
}
