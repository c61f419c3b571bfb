package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/zentala/bookmark-index/types"
	"github.com/zentala/bookmark-index/utils"
)

const (
	// DefaultOverFetch multiplies k for the vector candidate pool.
	DefaultOverFetch = 3

	titleKeywordWeight   = 0.5
	urlKeywordWeight     = 0.3
	contentKeywordWeight = 0.2

	// Above this keyword score lexical evidence dominates the ranking.
	strongKeywordThreshold = 0.5
	strongKeywordWeight    = 0.7
	weakKeywordWeight      = 0.3
)

// SearchEngine ranks indexed bookmarks by blending vector similarity with
// keyword overlap.
type SearchEngine struct {
	provider  EmbeddingProvider
	overFetch int
	metrics   *Metrics
}

func NewSearchEngine(provider EmbeddingProvider, overFetch int, metrics *Metrics) *SearchEngine {
	if overFetch <= 0 {
		overFetch = DefaultOverFetch
	}
	return &SearchEngine{provider: provider, overFetch: overFetch, metrics: metrics}
}

// Search embeds query, takes the overFetch*k nearest documents and re-ranks
// them by combined score. Equal scores keep vector order.
func (e *SearchEngine) Search(ctx context.Context, index *MemoryIndex, query string, k int) ([]types.RankedResult, error) {
	query = utils.Normalize(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() { e.metrics.observeSearch(time.Since(start).Seconds()) }()

	vec, err := e.provider.EmbedQuery(ctx, query)
	e.metrics.providerCall(err)
	if err != nil {
		return nil, providerError(e.provider.Kind(), "embed query", err)
	}

	candidates := index.NearestNeighbors(vec, e.overFetch*k)
	queryTokens := utils.KeywordTokens(query)

	results := make([]types.RankedResult, 0, len(candidates))
	for _, c := range candidates {
		results = append(results, ScoreCandidate(queryTokens, c))
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CombinedScore > results[j].CombinedScore
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// ScoreCandidate computes the keyword sub-scores and the weighted combined
// score of one vector candidate.
func ScoreCandidate(queryTokens []string, c Candidate) types.RankedResult {
	doc := c.Document
	title := KeywordMatch(queryTokens, utils.KeywordTokens(doc.Metadata.Title))
	url := KeywordMatch(queryTokens, utils.URLKeywordTokens(doc.Metadata.URL))
	content := KeywordMatch(queryTokens, utils.KeywordTokens(doc.PageContent))

	keywordScore := titleKeywordWeight*title + urlKeywordWeight*url + contentKeywordWeight*content
	vectorScore := 1 - c.Distance

	keywordWeight := weakKeywordWeight
	if keywordScore > strongKeywordThreshold {
		keywordWeight = strongKeywordWeight
	}
	vectorWeight := 1 - keywordWeight

	return types.RankedResult{
		ID:                  doc.ID,
		PageContent:         doc.PageContent,
		Metadata:            doc.Metadata,
		CombinedScore:       vectorScore*vectorWeight + keywordScore*keywordWeight,
		VectorScore:         vectorScore,
		KeywordScore:        keywordScore,
		TitleKeywordScore:   title,
		URLKeywordScore:     url,
		ContentKeywordScore: content,
		VectorWeight:        vectorWeight,
		KeywordWeight:       keywordWeight,
	}
}

// KeywordMatch scores how well query tokens cover field tokens: the share
// of exact hits plus half the share of substring hits, capped at 1. A token
// found verbatim also counts as a substring hit.
func KeywordMatch(queryTokens, fieldTokens []string) float64 {
	if len(queryTokens) == 0 || len(fieldTokens) == 0 {
		return 0
	}
	fieldSet := make(map[string]struct{}, len(fieldTokens))
	for _, t := range fieldTokens {
		fieldSet[t] = struct{}{}
	}

	var exact, partial int
	for _, q := range queryTokens {
		if _, ok := fieldSet[q]; ok {
			exact++
		}
		for _, f := range fieldTokens {
			if strings.Contains(f, q) || strings.Contains(q, f) {
				partial++
				break
			}
		}
	}

	n := float64(len(queryTokens))
	score := float64(exact)/n + 0.5*float64(partial)/n
	if score > 1 {
		score = 1
	}
	return score
}
