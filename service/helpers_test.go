package service

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/types"
)

var errProviderDown = errors.New("provider down")

// memoryStore is an in-process EmbeddingStore that counts writes.
type memoryStore struct {
	mu      sync.Mutex
	docs    []types.IndexedDocument
	saves   int
	clears  int
	closed  int
	saveErr error
}

func (s *memoryStore) LoadAll(ctx context.Context) ([]types.IndexedDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.IndexedDocument(nil), s.docs...), nil
}

func (s *memoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.docs = nil
	return nil
}

func (s *memoryStore) SaveAll(ctx context.Context, docs []types.IndexedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves++
	s.docs = append([]types.IndexedDocument(nil), docs...)
	return nil
}

func (s *memoryStore) Stats(ctx context.Context) (types.StoreStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.ComputeStoreStats(s.docs), nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *memoryStore) snapshot() []types.IndexedDocument {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.IndexedDocument(nil), s.docs...)
}

// recordingProvider wraps the fake provider, records batch sizes and can
// fail a given EmbedDocuments call (1-based).
type recordingProvider struct {
	*FakeEmbeddingProvider

	mu        sync.Mutex
	batches   []int
	queries   int
	closed    int
	failOnDoc int
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{FakeEmbeddingProvider: NewFakeEmbeddingProvider(32)}
}

func (p *recordingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	p.queries++
	p.mu.Unlock()
	return p.FakeEmbeddingProvider.EmbedQuery(ctx, text)
}

func (p *recordingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	p.batches = append(p.batches, len(texts))
	call := len(p.batches)
	p.mu.Unlock()
	if p.failOnDoc > 0 && call == p.failOnDoc {
		return nil, providerError(p.Kind(), "embed documents", errProviderDown)
	}
	return p.FakeEmbeddingProvider.EmbedDocuments(ctx, texts)
}

func (p *recordingProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func (p *recordingProvider) queryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queries
}

func (p *recordingProvider) closeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *recordingProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.batches)
}

func (p *recordingProvider) embedded() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, b := range p.batches {
		n += b
	}
	return n
}

// stubProvider returns preset vectors by exact text.
type stubProvider struct {
	vectors map[string][]float32
}

func (p *stubProvider) Kind() string { return "stub" }

func (p *stubProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, ok := p.vectors[text]
	if !ok {
		return nil, errors.New("no vector for " + text)
	}
	return vec, nil
}

func (p *stubProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.EmbedQuery(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// recordingConfirmer answers with a fixed value and keeps what it was asked.
type recordingConfirmer struct {
	answer bool
	asked  [][]types.FlattenedBookmark
}

func (c *recordingConfirmer) Confirm(ctx context.Context, candidates []types.FlattenedBookmark) (bool, error) {
	c.asked = append(c.asked, candidates)
	return c.answer, nil
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func leaf(id, title, url string) types.BookmarkNode {
	return types.BookmarkNode{ID: id, Title: title, URL: url}
}

func folder(title string, children ...types.BookmarkNode) types.BookmarkNode {
	return types.BookmarkNode{ID: "folder-" + title, Title: title, Children: children}
}

// sampleTree has b1 "Quarterly Report" under Work/Docs.
func sampleTree(b1Title string) []types.BookmarkNode {
	return []types.BookmarkNode{
		folder("",
			folder("Work",
				folder("Docs",
					leaf("b1", b1Title, "https://intranet.example.com/reports/quarterly"),
				),
				leaf("b2", "Team Calendar", "https://calendar.example.com/team"),
			),
			folder("Personal",
				leaf("b3", "Sourdough Bread Recipe", "https://cooking.example.org/bread/sourdough"),
				leaf("b4", "Go Concurrency Patterns", "https://go.dev/talks/concurrency"),
			),
		),
	}
}

func fakeConfig() config.Config {
	return config.Config{
		Provider: config.ProviderConfig{Kind: config.ProviderFake, Dimensions: 32},
		Indexer:  config.IndexerConfig{BatchSize: DefaultBatchSize},
		Search:   config.SearchConfig{DefaultK: 10, OverFetch: DefaultOverFetch},
	}
}
