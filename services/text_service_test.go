package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/pipeline"
)

func newTestTextService(url string, retries int) *ChatTextService {
	s := NewChatTextService(config.LLMConfig{
		APIKey:     "test-key",
		BaseURL:    url,
		Model:      "test-model",
		TimeoutSec: 5,
		MaxRetries: retries,
	}, logger.Nop())
	s.backoff = time.Millisecond
	return s
}

func chatHandler(t *testing.T, calls *atomic.Int32, statuses []int, content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "test-model" || len(req.Messages) != 1 {
			t.Errorf("request = %+v", req)
		}

		if n <= len(statuses) {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}
}

func TestExplainSingle(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(chatHandler(t, &calls, nil, "  - short tenure\n"))
	defer srv.Close()

	s := newTestTextService(srv.URL, 2)
	got := s.ExplainSingle(context.Background(), map[string]any{"tenure": 2}, 0.81)
	if got != "- short tenure" {
		t.Errorf("ExplainSingle() = %q", got)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestSummarizeBatchRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(chatHandler(t, &calls, []int{503, 429}, "summary text"))
	defer srv.Close()

	s := newTestTextService(srv.URL, 2)
	got := s.SummarizeBatch(context.Background(), pipeline.Outcome{TotalRows: 3, LikelyChurn: 2, Safe: 1})
	if got != "summary text" {
		t.Errorf("SummarizeBatch() = %q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestTextServiceFallbacks(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		content   string
		retries   int
		wantCalls int32
	}{
		{"client error not retried", []int{400}, "x", 3, 1},
		{"server errors exhaust retries", []int{500, 500, 500}, "x", 2, 3},
		{"empty completion", nil, "   ", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(chatHandler(t, &calls, tt.statuses, tt.content))
			defer srv.Close()

			s := newTestTextService(srv.URL, tt.retries)
			if got := s.ExplainSingle(context.Background(), nil, 0.5); got != ExplanationUnavailable {
				t.Errorf("ExplainSingle() = %q, want placeholder", got)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestTextServiceUnconfigured(t *testing.T) {
	s := NewChatTextService(config.LLMConfig{BaseURL: "http://127.0.0.1:1"}, logger.Nop())
	if s.Configured() {
		t.Fatal("Configured() = true without an API key")
	}
	if got := s.ExplainSingle(context.Background(), nil, 0.9); got != ExplanationUnavailable {
		t.Errorf("ExplainSingle() = %q", got)
	}
	if got := s.SummarizeBatch(context.Background(), pipeline.Outcome{}); got != SummaryUnavailable {
		t.Errorf("SummarizeBatch() = %q", got)
	}
}

func TestTextServiceUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := newTestTextService(url, 1)
	if got := s.SummarizeBatch(context.Background(), pipeline.Outcome{}); !strings.Contains(got, "unavailable") {
		t.Errorf("SummarizeBatch() = %q", got)
	}
}

func TestNoText(t *testing.T) {
	var text TextService = NoText{}
	if got := text.ExplainSingle(context.Background(), nil, 0.9); got != ExplanationUnavailable {
		t.Errorf("ExplainSingle() = %q", got)
	}
	if got := text.SummarizeBatch(context.Background(), pipeline.Outcome{}); got != SummaryUnavailable {
		t.Errorf("SummarizeBatch() = %q", got)
	}
}
