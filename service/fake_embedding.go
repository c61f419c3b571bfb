package service

import (
	"context"
	"hash/fnv"
	"math"

	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/utils"
)

const defaultFakeDimensions = 64

// FakeEmbeddingProvider derives vectors from hashed keywords. Equal texts
// always get equal vectors and texts sharing words point in similar
// directions, which is enough for tests and offline dry runs.
type FakeEmbeddingProvider struct {
	dimensions int
}

func NewFakeEmbeddingProvider(dimensions int) *FakeEmbeddingProvider {
	if dimensions <= 0 {
		dimensions = defaultFakeDimensions
	}
	return &FakeEmbeddingProvider{dimensions: dimensions}
}

func (p *FakeEmbeddingProvider) Kind() string {
	return config.ProviderFake
}

func (p *FakeEmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError(p.Kind(), "embed query", err)
	}
	return p.vector(text), nil
}

func (p *FakeEmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, providerError(p.Kind(), "embed documents", err)
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vector(text)
	}
	return vectors, nil
}

func (p *FakeEmbeddingProvider) vector(text string) []float32 {
	vec := make([]float64, p.dimensions)
	for _, token := range utils.KeywordTokens(text) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		sign := 1.0
		if sum&1 == 1 {
			sign = -1.0
		}
		vec[(sum>>1)%uint64(p.dimensions)] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, p.dimensions)
	if norm == 0 {
		// Keep the vector non-empty so the document counts as embedded.
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
