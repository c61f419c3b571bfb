package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/zentala/bookmark-index/config"
)

const (
	defaultOllamaHost  = "http://localhost:11434"
	defaultOllamaModel = "nomic-embed-text"
)

// ollamaEmbedRequest is the request body for Ollama's /api/embed endpoint.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the response from Ollama's /api/embed endpoint.
type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type OllamaEmbeddingProvider struct {
	host       string
	model      string
	httpClient *http.Client
}

func NewOllamaEmbeddingProvider(cfg config.ProviderConfig) *OllamaEmbeddingProvider {
	host := strings.TrimRight(cfg.BaseURL, "/")
	if host == "" {
		host = defaultOllamaHost
	}
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &OllamaEmbeddingProvider{
		host:       host,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *OllamaEmbeddingProvider) Kind() string {
	return config.ProviderOllama
}

func (p *OllamaEmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, "embed query", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OllamaEmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, "embed documents", texts)
}

func (p *OllamaEmbeddingProvider) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	body, err := json.Marshal(ollamaEmbedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, providerError(p.Kind(), op, fmt.Errorf("marshal embed request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, providerError(p.Kind(), op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError(p.Kind(), op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, providerError(p.Kind(), op, fmt.Errorf("status %d", resp.StatusCode))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, providerError(p.Kind(), op, fmt.Errorf("decode embed response: %w", err))
	}
	if err := checkVectorCount(p.Kind(), len(texts), len(result.Embeddings)); err != nil {
		return nil, err
	}
	for _, vec := range result.Embeddings {
		if len(vec) == 0 {
			return nil, providerError(p.Kind(), op, errors.New("ollama returned empty embeddings"))
		}
	}
	return result.Embeddings, nil
}
