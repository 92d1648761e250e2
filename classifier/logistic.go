package classifier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"churn-prediction-api/pipeline"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// LogisticArtifact is the on-disk form of a logistic regression model.
// Coefficients are aligned with Features.Encode output.
type LogisticArtifact struct {
	Version      string      `yaml:"version"`
	Features     FeatureSpec `yaml:"features"`
	Coefficients []float64   `yaml:"coefficients"`
	Intercept    float64     `yaml:"intercept"`
}

type LogisticModel struct {
	version   string
	spec      FeatureSpec
	coef      *mat.VecDense
	intercept float64
}

func NewLogisticModel(a LogisticArtifact) (*LogisticModel, error) {
	if err := a.Features.Validate(); err != nil {
		return nil, err
	}
	if len(a.Coefficients) != a.Features.Width() {
		return nil, fmt.Errorf("%d coefficients for %d encoded features", len(a.Coefficients), a.Features.Width())
	}
	coef := make([]float64, len(a.Coefficients))
	copy(coef, a.Coefficients)
	return &LogisticModel{
		version:   a.Version,
		spec:      a.Features,
		coef:      mat.NewVecDense(len(coef), coef),
		intercept: a.Intercept,
	}, nil
}

// LoadLogistic reads a YAML logistic artifact.
func LoadLogistic(path string) (*LogisticModel, error) {
	if path == "" {
		return nil, errors.New("model path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}
	var a LogisticArtifact
	if err := yaml.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", path, err)
	}
	return NewLogisticModel(a)
}

func (m *LogisticModel) Version() string { return m.version }

// PredictProba scores the whole batch with one matrix-vector product.
func (m *LogisticModel) PredictProba(_ context.Context, records []pipeline.FeatureRecord) ([]float64, error) {
	if len(records) == 0 {
		return []float64{}, nil
	}
	x := mat.NewDense(len(records), m.spec.Width(), m.spec.Encode(records))

	var z mat.VecDense
	z.MulVec(x, m.coef)

	out := make([]float64, len(records))
	for i := range out {
		out[i] = sigmoid(z.AtVec(i) + m.intercept)
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
