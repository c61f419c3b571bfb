package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zentala/bookmark-index/database"
	"github.com/zentala/bookmark-index/types"
	"github.com/zentala/bookmark-index/utils"
)

// DefaultBatchSize is the number of documents sent to the provider per call.
const DefaultBatchSize = 10

type ProcessorConfig struct {
	// BatchSize is the chunk size for EmbedDocuments. Zero means DefaultBatchSize.
	BatchSize int
	// MaxBookmarks stops traversal after this many leaves. Zero means no cap.
	MaxBookmarks int
}

// ProcessOptions tune a single pass.
type ProcessOptions struct {
	// Force schedules every bookmark, regardless of what the store holds.
	Force bool
	// ClearFirst empties the store after confirmation and before the first
	// provider call.
	ClearFirst bool
	// Confirmer overrides the processor's confirmer for this pass.
	Confirmer Confirmer
}

type ProcessResult struct {
	Documents []types.IndexedDocument
	Summary   types.IndexSummary
}

// BookmarkProcessor diffs a bookmark tree against the store and embeds
// whatever is new or changed.
type BookmarkProcessor struct {
	store        database.EmbeddingStore
	provider     EmbeddingProvider
	confirmer    Confirmer
	batchSize    int
	maxBookmarks int
	logger       *log.Logger
	metrics      *Metrics
	now          func() time.Time
}

func NewBookmarkProcessor(store database.EmbeddingStore, provider EmbeddingProvider, confirmer Confirmer, cfg ProcessorConfig, logger *log.Logger, metrics *Metrics) *BookmarkProcessor {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[PROCESSOR] ", log.LstdFlags)
	}
	return &BookmarkProcessor{
		store:        store,
		provider:     provider,
		confirmer:    confirmer,
		batchSize:    cfg.BatchSize,
		maxBookmarks: cfg.MaxBookmarks,
		logger:       logger,
		metrics:      metrics,
		now:          time.Now,
	}
}

// Flatten walks the tree depth first and returns its leaves with their
// folder paths, honoring the processor's cap.
func (p *BookmarkProcessor) Flatten(tree []types.BookmarkNode) []types.FlattenedBookmark {
	return Flatten(tree, p.maxBookmarks, p.now(), p.logger)
}

// Flatten walks the tree depth first. Folder titles form the slash-joined
// folder path of their descendants. When max is positive the walk stops as
// soon as max leaves were collected. Leaves without an id are skipped, and
// for repeated ids only the first leaf is kept. Leaves without a
// modification time get now.
func Flatten(tree []types.BookmarkNode, max int, now time.Time, logger *log.Logger) []types.FlattenedBookmark {
	w := flattener{max: max, now: now, logger: logger, seen: make(map[string]struct{})}
	w.walk(tree, nil)
	return w.out
}

type flattener struct {
	max    int
	now    time.Time
	logger *log.Logger
	seen   map[string]struct{}
	out    []types.FlattenedBookmark
}

func (w *flattener) full() bool {
	return w.max > 0 && len(w.out) >= w.max
}

func (w *flattener) walk(nodes []types.BookmarkNode, path []string) {
	for _, node := range nodes {
		if w.full() {
			return
		}
		if node.IsFolder() {
			next := path
			if title := strings.TrimSpace(node.Title); title != "" {
				next = append(append([]string(nil), path...), title)
			}
			w.walk(node.Children, next)
			continue
		}
		if node.ID == "" {
			w.logf("skipping bookmark without id: %s", node.URL)
			continue
		}
		if _, dup := w.seen[node.ID]; dup {
			w.logf("skipping duplicate bookmark id %s", node.ID)
			continue
		}
		w.seen[node.ID] = struct{}{}

		b := types.FlattenedBookmark{
			ID:         node.ID,
			Title:      node.Title,
			URL:        node.URL,
			FolderPath: strings.Join(path, "/"),
		}
		if node.Extended != nil {
			b.Description = node.Extended.Description
			b.Tags = node.Extended.Tags
			b.LastModified = node.Extended.LastModified
		}
		if b.LastModified.IsZero() {
			b.LastModified = w.now
		}
		w.out = append(w.out, b)
	}
}

func (w *flattener) logf(format string, args ...interface{}) {
	if w.logger != nil {
		w.logger.Printf(format, args...)
	}
}

// BuildPageContent renders the text that is embedded and fingerprinted for
// a bookmark.
func BuildPageContent(b types.FlattenedBookmark) string {
	parts := []string{
		b.Title,
		b.URL,
		b.FolderPath,
		b.Description,
		strings.Join(b.Tags, " "),
		utils.ExtractKeywords(b.Title),
		utils.ExtractKeywords(b.Description),
		utils.ExtractKeywords(b.FolderPath),
	}
	return utils.Normalize(strings.Join(parts, "\n"))
}

func BuildMetadata(b types.FlattenedBookmark) types.DocumentMetadata {
	return types.DocumentMetadata{
		BookmarkID:   b.ID,
		Title:        b.Title,
		URL:          b.URL,
		FolderPath:   b.FolderPath,
		Description:  b.Description,
		Tags:         b.Tags,
		LastModified: b.LastModified,
	}
}

// BookmarkFromDocument recovers the source bookmark of a stored document.
func BookmarkFromDocument(doc types.IndexedDocument) types.FlattenedBookmark {
	id := doc.Metadata.BookmarkID
	if id == "" {
		id = doc.ID
	}
	return types.FlattenedBookmark{
		ID:           id,
		Title:        doc.Metadata.Title,
		URL:          doc.Metadata.URL,
		FolderPath:   doc.Metadata.FolderPath,
		Description:  doc.Metadata.Description,
		Tags:         doc.Metadata.Tags,
		LastModified: doc.Metadata.LastModified,
	}
}

// Classification is the diff of a flattened tree against stored documents.
type Classification struct {
	New       []types.FlattenedBookmark
	Stale     []types.FlattenedBookmark
	Unchanged []types.FlattenedBookmark
}

// Scheduled returns new then stale bookmarks.
func (c Classification) Scheduled() []types.FlattenedBookmark {
	out := make([]types.FlattenedBookmark, 0, len(c.New)+len(c.Stale))
	out = append(out, c.New...)
	return append(out, c.Stale...)
}

// Classify sorts bookmarks into new, stale and unchanged. Content equality
// after normalization is the only staleness signal; lastModified is carried
// but never compared.
func Classify(bookmarks []types.FlattenedBookmark, existing []types.IndexedDocument, force bool) Classification {
	byID := make(map[string]types.IndexedDocument, len(existing))
	for _, doc := range existing {
		byID[doc.ID] = doc
	}

	var c Classification
	for _, b := range bookmarks {
		doc, ok := byID[b.ID]
		switch {
		case !ok:
			c.New = append(c.New, b)
		case force || !doc.HasEmbedding() || utils.Normalize(doc.PageContent) != BuildPageContent(b):
			c.Stale = append(c.Stale, b)
		default:
			c.Unchanged = append(c.Unchanged, b)
		}
	}
	return c
}

// Process loads the store, flattens tree and runs one indexing pass.
func (p *BookmarkProcessor) Process(ctx context.Context, tree []types.BookmarkNode, opts ProcessOptions) (*ProcessResult, error) {
	existing, err := p.store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return p.ProcessFlattened(ctx, p.Flatten(tree), existing, opts)
}

// ProcessFlattened runs one indexing pass over already flattened bookmarks.
//
// Nothing is written unless every scheduled document was embedded. When the
// confirmer declines, existing is returned untouched and Summary.Declined is
// set. Stored documents absent from bookmarks are kept.
func (p *BookmarkProcessor) ProcessFlattened(ctx context.Context, bookmarks []types.FlattenedBookmark, existing []types.IndexedDocument, opts ProcessOptions) (*ProcessResult, error) {
	c := Classify(bookmarks, existing, opts.Force)
	scheduled := c.Scheduled()

	summary := types.IndexSummary{
		New:       len(c.New),
		Stale:     len(c.Stale),
		Unchanged: len(c.Unchanged),
		Total:     len(existing),
	}

	if len(scheduled) == 0 {
		p.logger.Printf("index up to date: %d unchanged", summary.Unchanged)
		p.metrics.pass(OutcomeUnchanged)
		return &ProcessResult{Documents: existing, Summary: summary}, nil
	}

	confirmer := opts.Confirmer
	if confirmer == nil {
		confirmer = p.confirmer
	}
	if confirmer != nil {
		ok, err := confirmer.Confirm(ctx, scheduled)
		if err != nil {
			p.metrics.pass(OutcomeFailed)
			return nil, fmt.Errorf("confirm embedding pass: %w", err)
		}
		if !ok {
			p.logger.Printf("embedding of %d bookmark(s) declined", len(scheduled))
			p.metrics.pass(OutcomeDeclined)
			summary.Declined = true
			return &ProcessResult{Documents: existing, Summary: summary}, nil
		}
	}

	if opts.ClearFirst {
		if err := p.store.Clear(ctx); err != nil {
			p.metrics.pass(OutcomeFailed)
			return nil, err
		}
	}

	generated, err := p.generate(ctx, scheduled)
	if err != nil {
		p.metrics.pass(OutcomeFailed)
		return nil, err
	}

	merged := mergeDocuments(existing, generated)
	if err := p.store.SaveAll(ctx, merged); err != nil {
		p.metrics.pass(OutcomeFailed)
		return nil, err
	}

	summary.Embedded = len(generated)
	summary.Total = len(merged)
	p.logger.Printf("indexed %d new, %d stale, %d unchanged bookmark(s)", summary.New, summary.Stale, summary.Unchanged)
	p.metrics.pass(OutcomeIndexed)
	return &ProcessResult{Documents: merged, Summary: summary}, nil
}

// generate embeds bookmarks chunk by chunk. A chunk starts only after the
// previous one is merged.
func (p *BookmarkProcessor) generate(ctx context.Context, bookmarks []types.FlattenedBookmark) ([]types.IndexedDocument, error) {
	docs := make([]types.IndexedDocument, 0, len(bookmarks))
	for start := 0; start < len(bookmarks); start += p.batchSize {
		if err := ctx.Err(); err != nil {
			return nil, &GenerationError{Completed: docs, Scheduled: len(bookmarks), Err: err}
		}

		end := start + p.batchSize
		if end > len(bookmarks) {
			end = len(bookmarks)
		}
		chunk := bookmarks[start:end]

		texts := make([]string, len(chunk))
		for i, b := range chunk {
			texts[i] = BuildPageContent(b)
		}

		vectors, err := p.provider.EmbedDocuments(ctx, texts)
		if err == nil {
			err = checkVectorCount(p.provider.Kind(), len(texts), len(vectors))
		}
		p.metrics.providerCall(err)
		if err != nil {
			return nil, &GenerationError{Completed: docs, Scheduled: len(bookmarks), Err: err}
		}

		now := p.now()
		for i, b := range chunk {
			metadata := BuildMetadata(b)
			if metadata.LastModified.IsZero() {
				metadata.LastModified = now
			}
			docs = append(docs, types.IndexedDocument{
				ID:          b.ID,
				Embedding:   vectors[i],
				PageContent: texts[i],
				Metadata:    metadata,
				LastUpdated: now,
			})
		}
		p.metrics.embedded(len(chunk))
		p.logger.Printf("embedded %d/%d bookmark(s)", len(docs), len(bookmarks))
	}
	return docs, nil
}

// mergeDocuments replaces existing documents in place and appends the rest
// in generation order.
func mergeDocuments(existing, generated []types.IndexedDocument) []types.IndexedDocument {
	merged := make([]types.IndexedDocument, len(existing), len(existing)+len(generated))
	copy(merged, existing)

	pos := make(map[string]int, len(existing))
	for i, doc := range existing {
		pos[doc.ID] = i
	}
	for _, doc := range generated {
		if i, ok := pos[doc.ID]; ok {
			merged[i] = doc
			continue
		}
		pos[doc.ID] = len(merged)
		merged = append(merged, doc)
	}
	return merged
}
