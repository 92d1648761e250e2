package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"
	"churn-prediction-api/observability"
	"churn-prediction-api/pipeline"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

const (
	ExplanationUnavailable = "AI explanation is currently unavailable."
	SummaryUnavailable     = "AI summary is currently unavailable."

	maxChatResponseBytes = 1 << 20
)

// TextService produces the narrative text attached to predictions. It
// never fails: any problem yields the matching placeholder.
type TextService interface {
	ExplainSingle(ctx context.Context, features map[string]any, probability float64) string
	SummarizeBatch(ctx context.Context, outcome pipeline.Outcome) string
}

// NoText always answers with the placeholders. Offline tools use it.
type NoText struct{}

func (NoText) ExplainSingle(context.Context, map[string]any, float64) string {
	return ExplanationUnavailable
}

func (NoText) SummarizeBatch(context.Context, pipeline.Outcome) string { return SummaryUnavailable }

// ChatTextService calls an OpenAI-compatible chat completions endpoint.
type ChatTextService struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries uint64
	backoff    time.Duration
	client     *http.Client
	log        *logger.Logger
}

func NewChatTextService(cfg config.LLMConfig, log *logger.Logger) *ChatTextService {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &ChatTextService{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		maxRetries: uint64(retries),
		backoff:    500 * time.Millisecond,
		client:     &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Configured reports whether an API key is set. Without one every call
// returns a placeholder immediately.
func (s *ChatTextService) Configured() bool {
	return s.apiKey != "" && s.baseURL != ""
}

func (s *ChatTextService) ExplainSingle(ctx context.Context, features map[string]any, probability float64) string {
	data, _ := json.Marshal(features)
	prompt := fmt.Sprintf(`You are an analyst. Explain why a telecom customer may or may not churn.

Customer data:
%s

Model churn probability: %.3f

Write 4-6 short bullet points:
- mention key risk signals
- mention what reduces churn risk
- keep simple and non-technical`, data, probability)

	return s.generate(ctx, "explain", prompt, 0.4, ExplanationUnavailable)
}

func (s *ChatTextService) SummarizeBatch(ctx context.Context, outcome pipeline.Outcome) string {
	data, _ := json.Marshal(outcome)
	prompt := fmt.Sprintf(`You are a telecom churn analyst.

Dataset summary:
%s

Explain in 6-8 bullet points:
- %% likely churn customers
- which segments are risky
- common reasons churn occurs
- suggested retention actions
- short actionable insights for business`, data)

	return s.generate(ctx, "summary", prompt, 0.5, SummaryUnavailable)
}

func (s *ChatTextService) generate(ctx context.Context, kind, prompt string, temperature float64, placeholder string) string {
	if !s.Configured() {
		textFallbacks.WithLabelValues(kind).Inc()
		return placeholder
	}

	ctx, span := otel.Tracer(observability.TracerName).Start(ctx, "text."+kind)
	span.SetAttributes(attribute.String("llm.model", s.model))
	defer span.End()

	var text string
	b := retry.WithMaxRetries(s.maxRetries, retry.NewExponential(s.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		out, err := s.complete(ctx, prompt, temperature)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil || strings.TrimSpace(text) == "" {
		if err == nil {
			err = errors.New("empty completion")
		}
		span.RecordError(err)
		s.log.Warn("text service fallback", "kind", kind, "error", err)
		textFallbacks.WithLabelValues(kind).Inc()
		return placeholder
	}
	return strings.TrimSpace(text)
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// complete performs one chat completion. Transport failures, 429 and 5xx
// are marked retryable; other failures are returned as is.
func (s *ChatTextService) complete(ctx context.Context, prompt string, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model:       s.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", err
		}
		return "", retry.RetryableError(fmt.Errorf("call chat api: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxChatResponseBytes+1))
	if err != nil {
		return "", retry.RetryableError(fmt.Errorf("read chat response: %w", err))
	}
	if len(respBody) > maxChatResponseBytes {
		return "", fmt.Errorf("chat response exceeded %d bytes", maxChatResponseBytes)
	}

	if resp.StatusCode >= 400 {
		var errBody chatErrorResponse
		_ = json.Unmarshal(respBody, &errBody)
		err := fmt.Errorf("chat api status %d: %s", resp.StatusCode, errBody.Error.Message)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", retry.RetryableError(err)
		}
		return "", err
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("chat response had no choices")
	}
	return out.Choices[0].Message.Content, nil
}
