package service

import (
	"context"
	"errors"

	"github.com/google/generative-ai-go/genai"
	"github.com/zentala/bookmark-index/config"
	"google.golang.org/api/option"
)

const defaultGeminiEmbeddingModel = "text-embedding-004"

type GeminiEmbeddingProvider struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

func NewGeminiEmbeddingProvider(cfg config.ProviderConfig) (*GeminiEmbeddingProvider, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.Credential)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, providerError(config.ProviderGemini, "init", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultGeminiEmbeddingModel
	}
	return &GeminiEmbeddingProvider{
		client: client,
		model:  client.EmbeddingModel(modelName),
	}, nil
}

func (p *GeminiEmbeddingProvider) Kind() string {
	return config.ProviderGemini
}

func (p *GeminiEmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, providerError(p.Kind(), "embed query", err)
	}
	if resp.Embedding == nil || len(resp.Embedding.Values) == 0 {
		return nil, providerError(p.Kind(), "embed query", errors.New("empty embedding returned"))
	}
	return resp.Embedding.Values, nil
}

func (p *GeminiEmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := p.model.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	resp, err := p.model.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, providerError(p.Kind(), "embed documents", err)
	}
	if err := checkVectorCount(p.Kind(), len(texts), len(resp.Embeddings)); err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil || len(e.Values) == 0 {
			return nil, providerError(p.Kind(), "embed documents", errors.New("empty embedding returned"))
		}
		vectors[i] = e.Values
	}
	return vectors, nil
}

func (p *GeminiEmbeddingProvider) Close() error {
	return p.client.Close()
}
