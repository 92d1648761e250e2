package classifier

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"churn-prediction-api/config"
	"churn-prediction-api/pipeline"
)

type LoadFunc func(ctx context.Context) (pipeline.Classifier, error)

// Provider holds the process-wide classifier. The load function runs at
// most once, even under concurrent first use; its result, including a
// failure, is kept for the life of the process.
type Provider struct {
	load LoadFunc

	once   sync.Once
	model  pipeline.Classifier
	err    error
	loaded atomic.Bool
}

func NewProvider(load LoadFunc) *Provider {
	return &Provider{load: load}
}

// Static wraps an already constructed classifier.
func Static(c pipeline.Classifier) *Provider {
	return NewProvider(func(context.Context) (pipeline.Classifier, error) { return c, nil })
}

func (p *Provider) Classifier(ctx context.Context) (pipeline.Classifier, error) {
	p.once.Do(func() {
		p.model, p.err = p.load(ctx)
		if p.err == nil && p.model == nil {
			p.err = fmt.Errorf("loader returned no classifier")
		}
		p.loaded.Store(p.err == nil)
	})
	return p.model, p.err
}

// Ready reports whether a load has completed successfully. It never
// triggers a load.
func (p *Provider) Ready() bool {
	return p.loaded.Load()
}

// FromConfig returns the loader for the configured backend.
func FromConfig(cfg config.ModelConfig) LoadFunc {
	return func(context.Context) (pipeline.Classifier, error) {
		switch cfg.Kind {
		case "logistic":
			return LoadLogistic(cfg.Path)
		case "onnx":
			return LoadONNX(ONNXOptions{
				ModelPath:   cfg.Path,
				LibraryPath: cfg.ONNXLibrary,
				InputName:   cfg.ONNXInput,
				OutputName:  cfg.ONNXOutput,
			})
		}
		return nil, fmt.Errorf("unknown model kind %q", cfg.Kind)
	}
}
