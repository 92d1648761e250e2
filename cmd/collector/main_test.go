package main

import (
	"context"
	"errors"
	"testing"

	"churn-prediction-api/classifier"
	"churn-prediction-api/logger"
	"churn-prediction-api/models"
	"churn-prediction-api/pipeline"
	"churn-prediction-api/services"
)

type fixedModel struct{ p float64 }

func (m fixedModel) PredictProba(_ context.Context, records []pipeline.FeatureRecord) ([]float64, error) {
	out := make([]float64, len(records))
	for i := range out {
		out[i] = m.p
	}
	return out, nil
}

type memorySaver struct {
	rows []models.Prediction
	err  error
}

func (m *memorySaver) SaveAll(_ context.Context, rows []models.Prediction) error {
	if m.err != nil {
		return m.err
	}
	m.rows = append(m.rows, rows...)
	return nil
}

func newTestCollector(p float64, saver *memorySaver) *collector {
	return &collector{
		runner: pipeline.NewRunner(classifier.Static(fixedModel{p: p})),
		saver:  saver,
		cache:  services.Disabled(),
		log:    logger.Nop(),
	}
}

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
		wantErr bool
	}{
		{"single object", `{"customer_id":"A","tenure":3}`, 1, false},
		{"array", `[{"tenure":3},{"tenure":40}]`, 2, false},
		{"array with nulls", `[null,{"tenure":3}]`, 1, false},
		{"empty array", `[]`, 0, true},
		{"blank", "  ", 0, true},
		{"not json", `tenure=3`, 0, true},
		{"scalar", `42`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRecords([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeRecords() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Errorf("decodeRecords() = %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestProcessMessage(t *testing.T) {
	saver := &memorySaver{}
	c := newTestCollector(0.76, saver)

	n, err := c.processMessage(context.Background(),
		[]byte(`[{"customer_id":" C-9 ","tenure":"7","monthly_charges":80.5,"contract":"Month-to-month"},{"tenure":50}]`))
	if err != nil {
		t.Fatalf("processMessage() error = %v", err)
	}
	if n != 2 || len(saver.rows) != 2 {
		t.Fatalf("stored %d/%d rows, want 2", n, len(saver.rows))
	}

	first := saver.rows[0]
	if first.CustomerID == nil || *first.CustomerID != "C-9" {
		t.Errorf("customer id = %v", first.CustomerID)
	}
	if first.Tenure != 7 || first.MonthlyCharges != 80.5 || first.Contract != "Month-to-month" {
		t.Errorf("row = %+v", first)
	}
	if first.Label != string(pipeline.LabelLikelyChurn) || first.BatchID != nil || first.Explanation != nil {
		t.Errorf("row = %+v", first)
	}
	if saver.rows[1].CustomerID != nil {
		t.Errorf("second row customer id = %v, want nil", *saver.rows[1].CustomerID)
	}
}

func TestProcessMessageErrors(t *testing.T) {
	t.Run("bad payload stores nothing", func(t *testing.T) {
		saver := &memorySaver{}
		if _, err := newTestCollector(0.2, saver).processMessage(context.Background(), []byte("{")); err == nil {
			t.Error("want error")
		}
		if len(saver.rows) != 0 {
			t.Errorf("stored %d rows", len(saver.rows))
		}
	})

	t.Run("save failure", func(t *testing.T) {
		saver := &memorySaver{err: errors.New("copy failed")}
		_, err := newTestCollector(0.2, saver).processMessage(context.Background(), []byte(`{"tenure":1}`))
		if !errors.Is(err, services.ErrPersistence) {
			t.Errorf("error = %v, want ErrPersistence", err)
		}
	})

	t.Run("classifier unavailable", func(t *testing.T) {
		c := newTestCollector(0.2, &memorySaver{})
		c.runner = pipeline.NewRunner(classifier.NewProvider(func(context.Context) (pipeline.Classifier, error) {
			return nil, errors.New("no model")
		}))
		if _, err := c.processMessage(context.Background(), []byte(`{"tenure":1}`)); !errors.Is(err, pipeline.ErrModelUnavailable) {
			t.Errorf("error = %v, want ErrModelUnavailable", err)
		}
	})
}
