package observability

import (
	"context"
	"testing"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"
)

func TestClampRatio(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := clampRatio(tt.in); got != tt.want {
			t.Errorf("clampRatio(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitTracingDisabled(t *testing.T) {
	shutdown := InitTracing(context.Background(), logger.Nop(), "test", config.TracingConfig{}, "test")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() = %v", err)
	}
}

func TestInitTracingStdout(t *testing.T) {
	cfg := config.TracingConfig{Enabled: true, SampleRatio: 1}
	shutdown := InitTracing(context.Background(), logger.Nop(), "test", cfg, "test")
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() = %v", err)
	}
}
