package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/zentala/bookmark-index/types"
	"github.com/zentala/bookmark-index/utils"
)

// Candidate is a document found by nearest-neighbour lookup.
type Candidate struct {
	Document types.IndexedDocument
	// Distance is the cosine distance rescaled to [0,1].
	Distance float64
}

// MemoryIndex is the in-memory view of the store used at query time. It is
// never mutated after BuildMemoryIndex returns; a new pass builds a new one.
type MemoryIndex struct {
	docs    []types.IndexedDocument
	norms   []float64
	lexical bleve.Index
}

// BuildMemoryIndex indexes docs for vector and lexical lookup.
func BuildMemoryIndex(docs []types.IndexedDocument) (*MemoryIndex, error) {
	lexical, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create lexical index: %w", err)
	}

	idx := &MemoryIndex{
		docs:    docs,
		norms:   make([]float64, len(docs)),
		lexical: lexical,
	}

	batch := lexical.NewBatch()
	for i, doc := range docs {
		idx.norms[i] = vectorNorm(doc.Embedding)
		if err := batch.Index(doc.ID, lexicalFields(doc)); err != nil {
			lexical.Close()
			return nil, fmt.Errorf("index document %s: %w", doc.ID, err)
		}
	}
	if err := lexical.Batch(batch); err != nil {
		lexical.Close()
		return nil, fmt.Errorf("index documents: %w", err)
	}
	return idx, nil
}

func lexicalFields(doc types.IndexedDocument) map[string]interface{} {
	return map[string]interface{}{
		"title":       doc.Metadata.Title,
		"url":         utils.ExtractKeywordsFromURL(doc.Metadata.URL),
		"folderPath":  strings.ReplaceAll(doc.Metadata.FolderPath, "/", " "),
		"description": doc.Metadata.Description,
		"tags":        strings.Join(doc.Metadata.Tags, " "),
		"content":     doc.PageContent,
	}
}

// Len returns the number of indexed documents.
func (m *MemoryIndex) Len() int {
	return len(m.docs)
}

// Documents returns the indexed documents in store order.
func (m *MemoryIndex) Documents() []types.IndexedDocument {
	return m.docs
}

// NearestNeighbors returns up to n documents ordered by ascending cosine
// distance to vec. Documents without an embedding or with a different
// dimension are skipped. Equal distances keep store order.
func (m *MemoryIndex) NearestNeighbors(vec []float32, n int) []Candidate {
	if n <= 0 || len(vec) == 0 {
		return nil
	}
	qnorm := vectorNorm(vec)

	candidates := make([]Candidate, 0, len(m.docs))
	for i, doc := range m.docs {
		if len(doc.Embedding) != len(vec) {
			continue
		}
		candidates = append(candidates, Candidate{
			Document: doc,
			Distance: cosineDistance(vec, doc.Embedding, qnorm, m.norms[i]),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// LexicalHit is a document matched by the full-text index.
type LexicalHit struct {
	Document types.IndexedDocument
	Score    float64
}

// LexicalSearch ranks documents by bleve relevance over their bookmark
// fields. Title matches weigh most, then tags, then folder names.
func (m *MemoryIndex) LexicalSearch(ctx context.Context, text string, k int) ([]LexicalHit, error) {
	if k <= 0 || len(m.docs) == 0 {
		return nil, nil
	}

	fields := []struct {
		name  string
		boost float64
	}{
		{"title", 3},
		{"tags", 2},
		{"folderPath", 1.5},
		{"url", 1},
		{"description", 1},
		{"content", 0.5},
	}
	queries := make([]query.Query, 0, len(fields))
	for _, f := range fields {
		q := bleve.NewMatchQuery(text)
		q.SetField(f.name)
		q.SetBoost(f.boost)
		queries = append(queries, q)
	}

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery(queries...), k, 0, false)
	res, err := m.lexical.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	byID := make(map[string]int, len(m.docs))
	for i, doc := range m.docs {
		byID[doc.ID] = i
	}
	hits := make([]LexicalHit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, ok := byID[hit.ID]
		if !ok {
			continue
		}
		hits = append(hits, LexicalHit{Document: m.docs[i], Score: hit.Score})
	}
	return hits, nil
}

// Close releases the lexical index.
func (m *MemoryIndex) Close() error {
	if m == nil || m.lexical == nil {
		return nil
	}
	return m.lexical.Close()
}

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// cosineDistance maps cosine similarity [-1,1] onto distance [0,1].
func cosineDistance(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	cos := dot / (na * nb)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (1 - cos) / 2
}
