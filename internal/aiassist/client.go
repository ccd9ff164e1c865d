package aiassist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
)

const systemPrompt = "You are an xray positioning assistant for chest PA erect. " +
	"Return one concise instruction under 14 words. " +
	"Do not include warnings, disclaimers, or extra explanation."

// InferenceClient calls an OpenAI-compatible chat-completions endpoint to turn
// a metrics snapshot into a single coaching instruction. All calls run through
// a circuit breaker so a degraded model service sheds load quickly instead of
// holding request goroutines for the full timeout.
type InferenceClient struct {
	httpClient *http.Client
	url        string
	accessKey  string
	model      string
	timeout    time.Duration
	breaker    *gobreaker.CircuitBreaker[string]
}

// NewInferenceClient builds a client for the given chat-completions URL.
// timeout bounds each individual request.
func NewInferenceClient(url, accessKey, model string, timeout time.Duration) *InferenceClient {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	c := &InferenceClient{
		httpClient: &http.Client{Timeout: timeout + time.Second},
		url:        url,
		accessKey:  accessKey,
		model:      model,
		timeout:    timeout,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "ai-inference",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return c
}

// Model reports the configured model identifier.
func (c *InferenceClient) Model() string { return c.model }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Instruction asks the model for one positioning instruction. The returned
// string is trimmed and guaranteed non-empty on success.
func (c *InferenceClient) Instruction(ctx context.Context, in AnalyzeInput) (string, error) {
	return c.breaker.Execute(func() (string, error) {
		return c.instruction(ctx, in)
	})
}

func (c *InferenceClient) instruction(ctx context.Context, in AnalyzeInput) (string, error) {
	userPayload, err := json.Marshal(map[string]any{
		"procedure_id": in.ProcedureID,
		"stage_id":     in.StageID,
		"metrics":      in.Metrics,
	})
	if err != nil {
		return "", fmt.Errorf("marshal metrics: %w", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(userPayload)},
		},
		Temperature: 0.1,
		MaxTokens:   40,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.accessKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("inference status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("inference returned no choices")
	}
	instruction := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if instruction == "" {
		return "", fmt.Errorf("inference returned empty content")
	}
	return instruction, nil
}
