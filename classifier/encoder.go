// Package classifier provides the trained churn models behind
// pipeline.Classifier and loads the process-wide instance exactly once.
package classifier

import (
	"errors"
	"fmt"
	"os"

	"churn-prediction-api/pipeline"

	"gopkg.in/yaml.v3"
)

// NumericFeature is a numeric column standardized as (x - Mean) / Scale.
type NumericFeature struct {
	Column string  `yaml:"column"`
	Mean   float64 `yaml:"mean"`
	Scale  float64 `yaml:"scale"`
}

// CategoricalFeature is one-hot encoded over Categories. Unseen values
// encode to all zeros.
type CategoricalFeature struct {
	Column     string   `yaml:"column"`
	Categories []string `yaml:"categories"`
}

// FeatureSpec describes how a FeatureRecord becomes the model's dense input:
// numeric columns first, then each categorical block, in file order.
type FeatureSpec struct {
	Numeric     []NumericFeature     `yaml:"numeric"`
	Categorical []CategoricalFeature `yaml:"categorical"`
}

func (s FeatureSpec) Width() int {
	w := len(s.Numeric)
	for _, c := range s.Categorical {
		w += len(c.Categories)
	}
	return w
}

func (s FeatureSpec) Validate() error {
	if s.Width() == 0 {
		return errors.New("feature spec is empty")
	}
	for _, n := range s.Numeric {
		f, ok := pipeline.Lookup(n.Column)
		if !ok || f.Column != n.Column {
			return fmt.Errorf("unknown numeric column %q", n.Column)
		}
		if f.Kind == pipeline.Categorical {
			return fmt.Errorf("column %q is categorical, not numeric", n.Column)
		}
	}
	for _, c := range s.Categorical {
		f, ok := pipeline.Lookup(c.Column)
		if !ok || f.Column != c.Column {
			return fmt.Errorf("unknown categorical column %q", c.Column)
		}
		if f.Kind != pipeline.Categorical {
			return fmt.Errorf("column %q is numeric, not categorical", c.Column)
		}
		if len(c.Categories) == 0 {
			return fmt.Errorf("column %q has no categories", c.Column)
		}
	}
	return nil
}

// Encode returns the row-major len(records) x Width() design matrix.
func (s FeatureSpec) Encode(records []pipeline.FeatureRecord) []float64 {
	width := s.Width()
	out := make([]float64, len(records)*width)
	for i, rec := range records {
		row := out[i*width : (i+1)*width]
		j := 0
		for _, n := range s.Numeric {
			x := numericValue(rec.Value(n.Column))
			if n.Scale != 0 {
				x = (x - n.Mean) / n.Scale
			}
			row[j] = x
			j++
		}
		for _, c := range s.Categorical {
			v, _ := rec.Value(c.Column).(string)
			for _, cat := range c.Categories {
				if v == cat {
					row[j] = 1
				}
				j++
			}
		}
	}
	return out
}

func numericValue(v any) float64 {
	switch x := v.(type) {
	case int:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

// LoadFeatureSpec reads a standalone feature spec, as shipped next to an
// ONNX model.
func LoadFeatureSpec(path string) (FeatureSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FeatureSpec{}, err
	}
	var spec FeatureSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return FeatureSpec{}, fmt.Errorf("decode feature spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return FeatureSpec{}, err
	}
	return spec, nil
}
