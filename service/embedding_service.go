package service

import (
	"context"
	"fmt"
	"io"

	"github.com/zentala/bookmark-index/config"
)

// EmbeddingProvider turns text into fixed-length vectors.
//
// EmbedDocuments returns exactly one vector per input, in input order.
// Errors are returned to the caller as is; a provider never substitutes an
// empty vector for a failed one.
type EmbeddingProvider interface {
	Kind() string
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// ProviderFactory builds a provider from its configuration.
type ProviderFactory func(cfg config.ProviderConfig) (EmbeddingProvider, error)

// NewEmbeddingProvider selects the backend named by cfg.Kind.
func NewEmbeddingProvider(cfg config.ProviderConfig) (EmbeddingProvider, error) {
	switch cfg.Kind {
	case config.ProviderOpenAI:
		if cfg.Credential == "" {
			return nil, &ConfigError{Field: "provider.credential", Err: ErrMissingCredential}
		}
		return NewOpenAIEmbeddingProvider(cfg), nil
	case config.ProviderGemini:
		if cfg.Credential == "" {
			return nil, &ConfigError{Field: "provider.credential", Err: ErrMissingCredential}
		}
		return NewGeminiEmbeddingProvider(cfg)
	case config.ProviderOllama:
		return NewOllamaEmbeddingProvider(cfg), nil
	case config.ProviderFake:
		return NewFakeEmbeddingProvider(cfg.Dimensions), nil
	default:
		return nil, &ConfigError{Field: "provider.kind", Err: fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Kind)}
	}
}

func closeProvider(p EmbeddingProvider) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func checkVectorCount(kind string, want, got int) error {
	if want != got {
		return &ProviderError{Kind: kind, Op: "embed documents", Err: fmt.Errorf("expected %d vectors, got %d", want, got)}
	}
	return nil
}
