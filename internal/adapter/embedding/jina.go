package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"esg-rag/internal/domain"
	"esg-rag/internal/infra/httpclient"
)

type JinaEmbedder struct {
	BaseURL string
	APIKey  string
	Model   string
	Dim     int
	Client  *http.Client
}

func NewJinaEmbedder(baseURL, apiKey, model string, dimensions int) *JinaEmbedder {
	return &JinaEmbedder{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Dim:     dimensions,
		Client:  httpclient.NewPooledClient(30 * time.Second),
	}
}

type jinaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type jinaEmbedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (e *JinaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	slog.Info("jina_embed_started",
		slog.Int("text_count", len(texts)),
		slog.String("model", e.Model),
	)
	start := time.Now()

	jsonData, err := json.Marshal(jinaEmbedRequest{Model: e.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", e.BaseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.Client.Do(req)
	if err != nil {
		slog.Error("jina_embed_failed",
			slog.String("error", err.Error()),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("failed to call jina: %w", domain.ErrEmbeddingUnavailable)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		slog.Error("jina_embed_bad_status",
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		return nil, fmt.Errorf("jina returned status %d: %w", resp.StatusCode, domain.ErrEmbeddingUnavailable)
	}

	var respBody jinaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&respBody); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(respBody.Data) != len(texts) {
		return nil, fmt.Errorf("jina returned %d embeddings for %d inputs", len(respBody.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, item := range respBody.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("jina returned out-of-range index %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}

	slog.Info("jina_embed_completed",
		slog.Int("embedding_count", len(out)),
		slog.Duration("elapsed", time.Since(start)),
	)

	return out, nil
}

func (e *JinaEmbedder) Dimensions() int { return e.Dim }

func (e *JinaEmbedder) Name() string {
	return "jina/" + e.Model
}

var _ domain.EmbeddingProvider = (*JinaEmbedder)(nil)
