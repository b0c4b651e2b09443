package modelrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"esg-rag/internal/domain"
	"esg-rag/internal/infra/httpclient"
)

// Client routes chat completions through the model router service, which
// owns provider selection, API keys and fallback between backing models.
type Client struct {
	BaseURL string
	Model   string
	HTTP    *http.Client
}

// New constructs a client pinned to one routed model.
func New(baseURL, model string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HTTP:    httpclient.NewPooledClient(120 * time.Second),
	}
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float64          `json:"temperature"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, messages []domain.Message, opts domain.GenerateOptions) (string, error) {
	start := time.Now()

	reqBody := chatRequest{
		Model:       c.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		slog.Error("model_router_call_failed",
			slog.String("model", c.Model),
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return "", fmt.Errorf("failed to call model router: %w", domain.ErrLLMUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		slog.Error("model_router_bad_status",
			slog.String("model", c.Model),
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(body)),
		)
		return "", fmt.Errorf("model router returned status %d: %w", resp.StatusCode, domain.ErrLLMUnavailable)
	}

	var respBody chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respBody.Choices) == 0 {
		return "", fmt.Errorf("model router returned no choices")
	}

	slog.Info("model_router_call_completed",
		slog.String("model", c.Model),
		slog.Duration("elapsed", time.Since(start)),
	)

	return respBody.Choices[0].Message.Content, nil
}

var _ domain.LLMClient = (*Client)(nil)
