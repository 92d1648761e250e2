package classifier

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"churn-prediction-api/pipeline"

	ort "github.com/yalue/onnxruntime_go"
)

// sklearn-style exports emit one probability column per class.
const onnxClassColumns = 2

type ONNXOptions struct {
	ModelPath   string
	SpecPath    string
	LibraryPath string
	InputName   string
	OutputName  string
}

// ONNXModel runs an exported classifier whose single float input is the
// encoded design matrix and whose output is [N, 2] class probabilities.
type ONNXModel struct {
	session *ort.DynamicAdvancedSession
	spec    FeatureSpec
}

// SpecPathFor returns the feature spec expected next to an ONNX model.
func SpecPathFor(modelPath string) string {
	return strings.TrimSuffix(modelPath, ".onnx") + ".features.yaml"
}

func LoadONNX(opts ONNXOptions) (*ONNXModel, error) {
	if opts.ModelPath == "" {
		return nil, errors.New("model path is empty")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("model file missing at %s: %w", opts.ModelPath, err)
	}
	if opts.SpecPath == "" {
		opts.SpecPath = SpecPathFor(opts.ModelPath)
	}
	spec, err := LoadFeatureSpec(opts.SpecPath)
	if err != nil {
		return nil, fmt.Errorf("load feature spec: %w", err)
	}

	if lib := strings.TrimSpace(opts.LibraryPath); lib != "" {
		ort.SetSharedLibraryPath(lib)
	} else if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		ort.SetSharedLibraryPath(env)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnxruntime: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &ONNXModel{session: session, spec: spec}, nil
}

func (m *ONNXModel) PredictProba(_ context.Context, records []pipeline.FeatureRecord) ([]float64, error) {
	if m == nil || m.session == nil {
		return nil, errors.New("onnx model not initialized")
	}
	n := len(records)
	if n == 0 {
		return []float64{}, nil
	}

	encoded := m.spec.Encode(records)
	data := make([]float32, len(encoded))
	for i, v := range encoded {
		data[i] = float32(v)
	}

	input, err := ort.NewTensor(ort.NewShape(int64(n), int64(m.spec.Width())), data)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(n), onnxClassColumns))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer output.Destroy()

	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	raw := output.GetData()
	probs := make([]float64, n)
	for i := range probs {
		probs[i] = float64(raw[i*onnxClassColumns+1])
	}
	return probs, nil
}

func (m *ONNXModel) Close() error {
	if m == nil || m.session == nil {
		return nil
	}
	return m.session.Destroy()
}
