package service

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/sashabaranov/go-openai"
	"github.com/zentala/bookmark-index/config"
)

type OpenAIEmbeddingProvider struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
}

func NewOpenAIEmbeddingProvider(cfg config.ProviderConfig) *OpenAIEmbeddingProvider {
	clientConfig := openai.DefaultConfig(cfg.Credential)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := openai.SmallEmbedding3
	if cfg.Model != "" {
		model = openai.EmbeddingModel(cfg.Model)
	}
	return &OpenAIEmbeddingProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      model,
		dimensions: cfg.Dimensions,
	}
}

func (p *OpenAIEmbeddingProvider) Kind() string {
	return config.ProviderOpenAI
}

func (p *OpenAIEmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.embed(ctx, "embed query", []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (p *OpenAIEmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return p.embed(ctx, "embed documents", texts)
}

func (p *OpenAIEmbeddingProvider) embed(ctx context.Context, op string, texts []string) ([][]float32, error) {
	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input:      texts,
		Model:      p.model,
		Dimensions: p.dimensions,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, providerError(p.Kind(), op, apiErr)
		}
		return nil, providerError(p.Kind(), op, err)
	}
	if err := checkVectorCount(p.Kind(), len(texts), len(resp.Data)); err != nil {
		return nil, err
	}

	// The API tags every vector with the position of its input.
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Index < data[j].Index
	})
	vectors := make([][]float32, len(data))
	for i, d := range data {
		vectors[i] = d.Embedding
	}
	return vectors, nil
}
