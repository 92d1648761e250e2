package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrModelUnavailable = errors.New("model unavailable")
	ErrInvalidOutput    = errors.New("classifier returned invalid output")
)

// Classifier is the trained model. PredictProba returns, for every record,
// the probability of the churn class, index-aligned with the input.
type Classifier interface {
	PredictProba(ctx context.Context, records []FeatureRecord) ([]float64, error)
}

// ClassifierSource hands out the process-wide classifier.
type ClassifierSource interface {
	Classifier(ctx context.Context) (Classifier, error)
}

type Runner struct {
	source ClassifierSource
}

func NewRunner(source ClassifierSource) *Runner {
	return &Runner{source: source}
}

// Run scores a whole batch with a single classifier call.
func (r *Runner) Run(ctx context.Context, records []FeatureRecord) ([]float64, error) {
	if len(records) == 0 {
		return []float64{}, nil
	}

	model, err := r.source.Classifier(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, err)
	}
	if model == nil {
		return nil, ErrModelUnavailable
	}

	probs, err := model.PredictProba(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	if len(probs) != len(records) {
		return nil, fmt.Errorf("%w: %d probabilities for %d rows", ErrInvalidOutput, len(probs), len(records))
	}

	out := make([]float64, len(probs))
	for i, p := range probs {
		if math.IsNaN(p) {
			return nil, fmt.Errorf("%w: NaN probability at row %d", ErrInvalidOutput, i)
		}
		out[i] = math.Max(0, math.Min(1, p))
	}
	return out, nil
}
