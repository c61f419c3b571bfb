package service

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/zentala/bookmark-index/config"
	"github.com/zentala/bookmark-index/database"
	"github.com/zentala/bookmark-index/types"
)

type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateIndexing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateIndexing:
		return "indexing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ServiceStats combines store statistics with the facade state.
type ServiceStats struct {
	types.StoreStats
	State    string `json:"state"`
	Provider string `json:"provider,omitempty"`
	Indexed  int    `json:"indexed"`
}

type Option func(*IndexService)

func WithConfirmer(c Confirmer) Option {
	return func(s *IndexService) { s.confirmer = c }
}

func WithLogger(l *log.Logger) Option {
	return func(s *IndexService) { s.logger = l }
}

func WithMetrics(m *Metrics) Option {
	return func(s *IndexService) { s.metrics = m }
}

func WithProviderFactory(f ProviderFactory) Option {
	return func(s *IndexService) { s.factory = f }
}

// IndexOption tunes a single AddBookmarks or RegenerateEmbeddings call.
type IndexOption func(*ProcessOptions)

// ConfirmWith replaces the service confirmer for one call.
func ConfirmWith(c Confirmer) IndexOption {
	return func(o *ProcessOptions) { o.Confirmer = c }
}

// ForceReembed schedules every bookmark of the tree.
func ForceReembed() IndexOption {
	return func(o *ProcessOptions) { o.Force = true }
}

// IndexService is the entry point of the bookmark index. It owns the
// provider, the store and the in-memory index, and moves through
// Uninitialized, Initializing, Ready, Indexing and Closed.
//
// Searches are served while an indexing pass or a re-initialize runs,
// against the index built before it. Only one initialize or indexing
// operation runs at a time.
type IndexService struct {
	cfg       config.Config
	store     database.EmbeddingStore
	confirmer Confirmer
	factory   ProviderFactory
	logger    *log.Logger
	metrics   *Metrics

	mu          sync.RWMutex
	state       State
	providerCfg config.ProviderConfig
	provider    EmbeddingProvider
	processor   *BookmarkProcessor
	engine      *SearchEngine
	index       *MemoryIndex
}

func NewIndexService(cfg config.Config, store database.EmbeddingStore, opts ...Option) *IndexService {
	s := &IndexService{
		cfg:         cfg,
		store:       store,
		factory:     NewEmbeddingProvider,
		providerCfg: cfg.Provider,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.New(log.Writer(), "[INDEX] ", log.LstdFlags)
	}
	return s
}

func (s *IndexService) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Initialize creates the provider and loads the store into memory. Empty
// credential or kind fall back to the configured values. Calling it again
// while Ready with the same provider kind does nothing.
func (s *IndexService) Initialize(ctx context.Context, credential, kind string) error {
	s.mu.Lock()
	providerCfg := s.cfg.Provider
	if kind != "" {
		providerCfg.Kind = kind
	}
	if credential != "" {
		providerCfg.Credential = credential
	}

	switch s.state {
	case StateReady:
		if s.provider != nil && s.provider.Kind() == providerCfg.Kind {
			s.mu.Unlock()
			return nil
		}
	case StateInitializing, StateIndexing:
		s.mu.Unlock()
		return ErrIndexingInProgress
	}
	prev := s.state
	s.state = StateInitializing
	s.mu.Unlock()

	provider, err := s.factory(providerCfg)
	if err != nil {
		s.setState(prev)
		return err
	}
	docs, err := s.store.LoadAll(ctx)
	if err != nil {
		closeProvider(provider)
		s.setState(prev)
		return err
	}
	index, err := BuildMemoryIndex(docs)
	if err != nil {
		closeProvider(provider)
		s.setState(prev)
		return err
	}

	s.mu.Lock()
	oldProvider, oldIndex := s.provider, s.index
	s.providerCfg = providerCfg
	s.install(provider, index)
	s.state = StateReady
	s.mu.Unlock()

	if oldProvider != nil {
		closeProvider(oldProvider)
	}
	oldIndex.Close()
	s.logger.Printf("initialized %s provider with %d document(s)", provider.Kind(), len(docs))
	return nil
}

// install swaps in provider and index. Callers hold s.mu.
func (s *IndexService) install(provider EmbeddingProvider, index *MemoryIndex) {
	s.provider = provider
	s.processor = s.newProcessor(provider)
	s.engine = NewSearchEngine(provider, s.cfg.Search.OverFetch, s.metrics)
	s.index = index
}

func (s *IndexService) newProcessor(provider EmbeddingProvider) *BookmarkProcessor {
	return NewBookmarkProcessor(s.store, provider, s.confirmer, ProcessorConfig{
		BatchSize:    s.cfg.Indexer.BatchSize,
		MaxBookmarks: s.cfg.Indexer.MaxBookmarks,
	}, s.logger, s.metrics)
}

func (s *IndexService) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// begin moves a Ready service to Indexing.
func (s *IndexService) begin() (*BookmarkProcessor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.readyErr(); err != nil {
		return nil, err
	}
	if s.state != StateReady {
		return nil, ErrIndexingInProgress
	}
	s.state = StateIndexing
	return s.processor, nil
}

// end returns to Ready, installing index when it is not nil.
func (s *IndexService) end(index *MemoryIndex) {
	s.mu.Lock()
	old := s.index
	if index != nil {
		s.index = index
	}
	s.state = StateReady
	s.mu.Unlock()
	if index != nil {
		old.Close()
	}
}

// readyErr reports why the service cannot serve requests. Callers hold s.mu.
// While a ready service re-initializes, the previous index keeps serving.
func (s *IndexService) readyErr() error {
	switch s.state {
	case StateUninitialized:
		return ErrNotInitialized
	case StateInitializing:
		if s.engine == nil {
			return ErrNotInitialized
		}
	case StateClosed:
		return ErrClosed
	}
	return nil
}

// reload rebuilds the in-memory index from the store.
func (s *IndexService) reload(ctx context.Context) (*MemoryIndex, error) {
	docs, err := s.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return BuildMemoryIndex(docs)
}

// AddBookmarks indexes tree incrementally and refreshes the in-memory index
// when the store changed. A declined confirmation is reported through
// Summary.Declined, not as an error.
func (s *IndexService) AddBookmarks(ctx context.Context, tree []types.BookmarkNode, opts ...IndexOption) (*ProcessResult, error) {
	processor, err := s.begin()
	if err != nil {
		return nil, err
	}

	var o ProcessOptions
	for _, opt := range opts {
		opt(&o)
	}

	result, err := processor.Process(ctx, tree, o)
	if err != nil || result.Summary.Declined || result.Summary.Embedded == 0 {
		s.end(nil)
		return result, err
	}

	index, err := s.reload(ctx)
	s.end(index)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RegenerateEmbeddings recreates the provider, discards every stored
// embedding and embeds all known bookmarks again. The new provider replaces
// the old one only when the pass succeeds. The store is cleared only after
// confirmation; a provider failure after that point leaves the store with
// fewer documents than before.
func (s *IndexService) RegenerateEmbeddings(ctx context.Context, opts ...IndexOption) (*ProcessResult, error) {
	if _, err := s.begin(); err != nil {
		return nil, err
	}

	docs, err := s.store.LoadAll(ctx)
	if err != nil {
		s.end(nil)
		return nil, err
	}
	bookmarks := make([]types.FlattenedBookmark, len(docs))
	for i, doc := range docs {
		bookmarks[i] = BookmarkFromDocument(doc)
	}

	s.mu.RLock()
	providerCfg := s.providerCfg
	s.mu.RUnlock()
	provider, err := s.factory(providerCfg)
	if err != nil {
		s.end(nil)
		return nil, err
	}

	o := ProcessOptions{Force: true, ClearFirst: true}
	for _, opt := range opts {
		opt(&o)
	}

	result, err := s.newProcessor(provider).ProcessFlattened(ctx, bookmarks, nil, o)
	if err == nil && result.Summary.Declined {
		closeProvider(provider)
		s.end(nil)
		return &ProcessResult{Documents: docs, Summary: result.Summary}, nil
	}

	index, reloadErr := s.reload(ctx)
	if err != nil {
		closeProvider(provider)
		s.end(index)
		return nil, err
	}

	s.mu.Lock()
	oldProvider, oldIndex := s.provider, s.index
	if index == nil {
		index = oldIndex
	}
	s.install(provider, index)
	s.state = StateReady
	s.mu.Unlock()
	closeProvider(oldProvider)
	if index != oldIndex {
		oldIndex.Close()
	}

	if reloadErr != nil {
		return nil, reloadErr
	}
	s.logger.Printf("regenerated %d embedding(s)", result.Summary.Embedded)
	return result, nil
}

// DeleteBookmarks removes documents by bookmark id and returns how many
// were found.
func (s *IndexService) DeleteBookmarks(ctx context.Context, ids ...string) (int, error) {
	if _, err := s.begin(); err != nil {
		return 0, err
	}

	docs, err := s.store.LoadAll(ctx)
	if err != nil {
		s.end(nil)
		return 0, err
	}

	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := make([]types.IndexedDocument, 0, len(docs))
	for _, doc := range docs {
		if _, ok := remove[doc.ID]; !ok {
			kept = append(kept, doc)
		}
	}
	removed := len(docs) - len(kept)
	if removed == 0 {
		s.end(nil)
		return 0, nil
	}

	if err := s.store.SaveAll(ctx, kept); err != nil {
		s.end(nil)
		return 0, err
	}
	index, err := BuildMemoryIndex(kept)
	s.end(index)
	if err != nil {
		return 0, err
	}
	s.logger.Printf("deleted %d bookmark(s)", removed)
	return removed, nil
}

// SimilaritySearch runs the hybrid vector and keyword ranking.
func (s *IndexService) SimilaritySearch(ctx context.Context, query string, k int) ([]types.RankedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyErr(); err != nil {
		return nil, err
	}
	return s.engine.Search(ctx, s.index, query, k)
}

// LexicalSearch ranks bookmarks by full-text relevance only, without a
// provider call.
func (s *IndexService) LexicalSearch(ctx context.Context, query string, k int) ([]types.RankedResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.readyErr(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, ErrInvalidLimit
	}

	hits, err := s.index.LexicalSearch(ctx, query, k)
	if err != nil {
		return nil, err
	}
	results := make([]types.RankedResult, len(hits))
	for i, hit := range hits {
		results[i] = types.RankedResult{
			ID:            hit.Document.ID,
			PageContent:   hit.Document.PageContent,
			Metadata:      hit.Document.Metadata,
			CombinedScore: hit.Score,
			KeywordScore:  hit.Score,
			KeywordWeight: 1,
		}
	}
	return results, nil
}

// Stats reads store statistics. It works before Initialize.
func (s *IndexService) Stats(ctx context.Context) (ServiceStats, error) {
	s.mu.RLock()
	state := s.state
	stats := ServiceStats{State: state.String()}
	if s.provider != nil {
		stats.Provider = s.provider.Kind()
	}
	if s.index != nil {
		stats.Indexed = s.index.Len()
	}
	s.mu.RUnlock()

	if state == StateClosed {
		return stats, ErrClosed
	}
	storeStats, err := s.store.Stats(ctx)
	if err != nil {
		return stats, err
	}
	stats.StoreStats = storeStats
	return stats, nil
}

// Close releases the store handle, the provider and the in-memory index.
// Only Initialize is accepted afterwards.
func (s *IndexService) Close() error {
	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	case StateInitializing, StateIndexing:
		s.mu.Unlock()
		return ErrIndexingInProgress
	}
	provider, index := s.provider, s.index
	s.provider, s.processor, s.engine, s.index = nil, nil, nil, nil
	s.state = StateClosed
	s.mu.Unlock()

	index.Close()
	var err error
	if provider != nil {
		err = closeProvider(provider)
	}
	if storeErr := s.store.Close(); storeErr != nil {
		err = storeErr
	}
	return err
}
